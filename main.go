package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"

	"github.com/pdok/rastermosaic/config"
	"github.com/pdok/rastermosaic/mosaic"
	"github.com/pdok/rastermosaic/render"
	"github.com/pdok/rastermosaic/tiler"
	"github.com/pdok/rastermosaic/tms20"
)

const CONFIG string = `config`
const ASSETS string = `assets`
const ZOOM string = `z`
const COLUMN string = `x`
const ROW string = `y`
const METHOD string = `method`
const THREADS string = `threads`
const CHUNKSIZE string = `chunksize`
const FLOAT string = `float`
const TILEMATRIXSET string = `tilematrixset`
const TILER string = `tiler`
const TILEROPTIONS string = `tileroptions`
const PATTERN string = `pattern`
const OUTPUT string = `output`
const RAMP string = `ramp`
const OVERWRITE string = `overwrite`
const LISTMETHODS string = `list-methods`

//nolint:funlen
func main() {
	app := cli.NewApp()
	app.Name = "rastermosaic"
	app.Usage = "Composite one map tile from many overlapping raster assets"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    CONFIG,
			Aliases: []string{"c"},
			Usage:   "Job file (.yaml, .yml or .toml). Flags override its values",
			EnvVars: []string{strcase.ToScreamingSnake(CONFIG)},
		},
		&cli.StringFlag{
			Name:    ASSETS,
			Aliases: []string{"a"},
			Usage:   `Assets in priority order. JSON array of strings. E.g.: ["file:///data/2023","file:///data/2022"]`,
			EnvVars: []string{strcase.ToScreamingSnake(ASSETS)},
		},
		&cli.UintFlag{
			Name:    ZOOM,
			Usage:   "Tile matrix (zoom level) of the tile",
			EnvVars: []string{"TILE_Z"},
		},
		&cli.UintFlag{
			Name:    COLUMN,
			Usage:   "Column of the tile",
			EnvVars: []string{"TILE_X"},
		},
		&cli.UintFlag{
			Name:    ROW,
			Usage:   "Row of the tile",
			EnvVars: []string{"TILE_Y"},
		},
		&cli.StringFlag{
			Name:    METHOD,
			Aliases: []string{"m"},
			Usage:   "Pixel selection method, see --" + LISTMETHODS,
			EnvVars: []string{strcase.ToScreamingSnake(METHOD)},
		},
		&cli.IntFlag{
			Name:    THREADS,
			Aliases: []string{"t"},
			Usage:   "Concurrent tile fetches per chunk, 0 or 1 fetches sequentially. Default MAX_THREADS or 5 per CPU",
			EnvVars: []string{strcase.ToScreamingSnake(THREADS)},
		},
		&cli.IntFlag{
			Name:    CHUNKSIZE,
			Usage:   "Assets fetched per chunk, 0 means the thread count",
			EnvVars: []string{strcase.ToScreamingSnake(CHUNKSIZE)},
		},
		&cli.BoolFlag{
			Name:    FLOAT,
			Usage:   "Keep mean and median as floating point instead of the source data type",
			EnvVars: []string{strcase.ToScreamingSnake(FLOAT)},
		},
		&cli.StringFlag{
			Name:    TILEMATRIXSET,
			Aliases: []string{"tms"},
			Usage:   `ID of a (built-in) tile matrix set or path to a tile matrix set JSON file. E.g.: NetherlandsRDNewQuad`,
			EnvVars: []string{strcase.ToScreamingSnake(TILEMATRIXSET)},
		},
		&cli.StringFlag{
			Name:    TILER,
			Usage:   "How assets are read: pyramid (blob bucket URLs) or gpkg (GeoPackage files)",
			EnvVars: []string{strcase.ToScreamingSnake(TILER)},
		},
		&cli.StringFlag{
			Name:    TILEROPTIONS,
			Usage:   `Options for every tiler call. JSON object. E.g.: {"indexes":[1]}`,
			EnvVars: []string{strcase.ToScreamingSnake(TILEROPTIONS)},
		},
		&cli.StringFlag{
			Name:    PATTERN,
			Usage:   "Key of a tile in a pyramid bucket, with {z}, {x}, {y} or {-y}",
			EnvVars: []string{strcase.ToScreamingSnake(PATTERN)},
		},
		&cli.StringFlag{
			Name:    OUTPUT,
			Aliases: []string{"o"},
			Usage:   "Output image. {z}, {x}, {y} and {method} are replaced. E.g.: mosaic_{z}_{x}_{y}.png",
			EnvVars: []string{strcase.ToScreamingSnake(OUTPUT)},
		},
		&cli.StringFlag{
			Name:    RAMP,
			Usage:   `Colour ramp for single band output. Two hex colours. E.g.: #2b83ba,#d7191c`,
			EnvVars: []string{strcase.ToScreamingSnake(RAMP)},
		},
		&cli.BoolFlag{
			Name:    OVERWRITE,
			Usage:   "Overwrite the output if it exists",
			EnvVars: []string{strcase.ToScreamingSnake(OVERWRITE)},
		},
		&cli.BoolFlag{
			Name:  LISTMETHODS,
			Usage: "List the pixel selection methods and exit",
		},
	}

	app.Action = func(c *cli.Context) error {
		if c.Bool(LISTMETHODS) {
			fmt.Println(strings.Join(config.Methods(), "\n"))
			return nil
		}
		job, err := loadJob(c)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, job, c.Bool(OVERWRITE))
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// loadJob reads the job file, if any, and applies the flags that are set on top.
func loadJob(c *cli.Context) (config.Job, error) {
	job := config.Default()
	if c.IsSet(CONFIG) {
		var err error
		if job, err = config.Read(c.String(CONFIG)); err != nil {
			return job, err
		}
	}
	if c.IsSet(ASSETS) {
		if err := json.Unmarshal([]byte(c.String(ASSETS)), &job.Assets); err != nil {
			return job, fmt.Errorf("--%s: %w", ASSETS, err)
		}
	}
	if c.IsSet(TILEROPTIONS) {
		if err := json.Unmarshal([]byte(c.String(TILEROPTIONS)), &job.TilerOptions); err != nil {
			return job, fmt.Errorf("--%s: %w", TILEROPTIONS, err)
		}
	}
	if c.IsSet(ZOOM) {
		job.Z = c.Uint(ZOOM)
	}
	if c.IsSet(COLUMN) {
		job.X = c.Uint(COLUMN)
	}
	if c.IsSet(ROW) {
		job.Y = c.Uint(ROW)
	}
	if c.IsSet(THREADS) {
		threads := c.Int(THREADS)
		job.Threads = &threads
	}
	if c.IsSet(CHUNKSIZE) {
		job.ChunkSize = c.Int(CHUNKSIZE)
	}
	if c.IsSet(FLOAT) {
		job.Float = c.Bool(FLOAT)
	}
	for name, field := range map[string]*string{
		METHOD:        &job.Method,
		TILEMATRIXSET: &job.TileMatrixSet,
		TILER:         &job.Tiler,
		PATTERN:       &job.Pattern,
		OUTPUT:        &job.Output,
		RAMP:          &job.Ramp,
	} {
		if c.IsSet(name) {
			*field = c.String(name)
		}
	}
	return job, job.Validate()
}

func run(ctx context.Context, job config.Job, overwrite bool) error {
	tileMatrixSet, err := loadTileMatrixSet(job.TileMatrixSet)
	if err != nil {
		return err
	}
	tile := job.Tile()
	extent, ok := tileMatrixSet.Extent(tile)
	if !ok {
		return fmt.Errorf("tile %v is not part of tile matrix set %s", tile, tileMatrixSet.ID)
	}

	output := outputPath(job)
	if err = prepareOutput(output, overwrite); err != nil {
		return err
	}

	var source interface {
		mosaic.Tiler
		Close() error
	}
	switch job.Tiler {
	case "gpkg":
		source = tiler.NewGeoPackage(&tileMatrixSet)
	default:
		source = tiler.NewPyramid(&tileMatrixSet, job.Pattern)
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Printf("  closing assets: %v", err)
		}
	}()

	selector, err := job.Selector()
	if err != nil {
		return err
	}
	opts := mosaic.DefaultOptions()
	if job.Threads != nil {
		opts.Threads = *job.Threads
	}
	opts.ChunkSize = job.ChunkSize
	opts.PixelSelection = selector
	opts.TilerOptions = job.TilerOptions

	log.Println("=== start mosaicking ===")
	log.Printf("  tile %v of %s, extent %v", tile, tileMatrixSet.ID, *extent)
	log.Printf("  %d assets, method %s, %d threads", len(job.Assets), job.Method, opts.Threads)

	result, report, err := mosaic.Mosaic(ctx, job.Assets, tile, source, opts)
	if err != nil {
		return err
	}
	logReport(report)
	if result == nil {
		log.Println("  no asset covers the tile, nothing written")
		log.Println("=== done mosaicking ===")
		return nil
	}
	log.Printf("  composite %v", result)

	renderOpts := render.Options{}
	if job.Ramp != "" {
		if renderOpts.Ramp, err = render.ParseRamp(job.Ramp); err != nil {
			return err
		}
	}
	if err = render.Save(output, result, renderOpts); err != nil {
		return err
	}
	log.Printf("  written %s", output)
	log.Println("=== done mosaicking ===")
	return nil
}

func loadTileMatrixSet(idOrPath string) (tms20.TileMatrixSet, error) {
	if strings.HasSuffix(strings.ToLower(idOrPath), ".json") {
		return tms20.LoadJSONTileMatrixSet(idOrPath)
	}
	return tms20.LoadEmbeddedTileMatrixSet(idOrPath)
}

func logReport(report *mosaic.Report) {
	log.Printf("  run %s: %d chunks, %d fetched, %d fed, %d skipped, early exit %v",
		report.RunID, report.Chunks, report.Fetched, report.Fed, len(report.Skipped), report.EarlyExit)
	for _, skipped := range report.Skipped {
		log.Printf("    skipped %d %s: %v", skipped.Index, skipped.Asset, skipped.Err)
	}
}

func outputPath(job config.Job) string {
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(job.Z), 10),
		"{x}", strconv.FormatUint(uint64(job.X), 10),
		"{y}", strconv.FormatUint(uint64(job.Y), 10),
		"{method}", strings.ToLower(job.Method),
	).Replace(job.Output)
}

// prepareOutput refuses to replace an existing output unless overwrite is set.
func prepareOutput(output string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("output %s exists, use --%s to replace it", output, OVERWRITE)
		}
		return nil
	}
	err := os.Remove(output)
	var pathError *os.PathError
	if err != nil && !(errors.As(err, &pathError) && errors.Is(pathError.Err, syscall.ENOENT)) {
		return fmt.Errorf("could not remove output: %w", err)
	}
	return nil
}
