// Package config reads mosaic jobs from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom/slippy"
	"gopkg.in/yaml.v3"

	"github.com/pdok/rastermosaic/render"
	"github.com/pdok/rastermosaic/selection"
)

var ErrUnknownFormat = errors.New("config: unknown file format, use .yaml, .yml or .toml")

// Job is one mosaic run: which assets, which tile, and how to composite them.
type Job struct {
	Assets []string `yaml:"assets" toml:"assets" validate:"required,min=1,dive,required"`
	// TilerOptions is passed to every tiler call, e.g. {"indexes": [1]}.
	TilerOptions map[string]any `yaml:"tiler_options" toml:"tiler_options"`

	Z uint `yaml:"z" toml:"z"`
	X uint `yaml:"x" toml:"x"`
	Y uint `yaml:"y" toml:"y"`

	Method string `yaml:"method" toml:"method" default:"first" validate:"method"`
	// Threads nil means mosaic.MaxThreads().
	Threads   *int `yaml:"threads" toml:"threads" validate:"omitnil,min=0"`
	ChunkSize int  `yaml:"chunk_size" toml:"chunk_size" validate:"min=0"`
	// Float keeps statistics as float64 instead of the source data type.
	Float bool `yaml:"float" toml:"float"`

	TileMatrixSet string `yaml:"tile_matrix_set" toml:"tile_matrix_set" default:"WebMercatorQuad" validate:"required"`
	Tiler         string `yaml:"tiler" toml:"tiler" default:"pyramid" validate:"oneof=pyramid gpkg"`
	Pattern       string `yaml:"pattern" toml:"pattern" default:"{z}/{x}/{y}.png" validate:"required"`

	Output string `yaml:"output" toml:"output" default:"mosaic.png" validate:"required"`
	Ramp   string `yaml:"ramp" toml:"ramp" validate:"omitempty,ramp"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("method", func(fl validator.FieldLevel) bool {
		_, err := selection.New(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("ramp", func(fl validator.FieldLevel) bool {
		_, err := render.ParseRamp(fl.Field().String())
		return err == nil
	})
	return v
}

// Default returns a Job with every default set and no assets.
func Default() Job {
	var job Job
	_ = defaults.Set(&job)
	return job
}

// Load reads and validates a job file.
func Load(path string) (Job, error) {
	job, err := Read(path)
	if err != nil {
		return job, err
	}
	return job, job.Validate()
}

// Read reads a job file without validating it, so it can still be completed.
// The format follows the file extension. Fields missing from the file get their
// defaults.
func Read(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read job file: %w", err)
	}
	job := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &job)
	case ".toml":
		err = toml.Unmarshal(data, &job)
	default:
		return Job{}, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return Job{}, fmt.Errorf("parse job file: %w", err)
	}
	return job, nil
}

func (j Job) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	return nil
}

func (j Job) Tile() slippy.Tile {
	return slippy.Tile{Z: j.Z, X: j.X, Y: j.Y}
}

// Selector returns a fresh selector for the job's method.
func (j Job) Selector() (selection.PixelSelector, error) {
	return selection.New(j.Method, selection.WithEnforceSourceType(!j.Float))
}

// Methods lists the accepted values of Method, aliases included.
func Methods() []string {
	return slices.Concat(selection.Names(), selection.Aliases())
}
