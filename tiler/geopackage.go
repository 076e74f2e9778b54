package tiler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-spatial/geom/encoding/gpkg"
	"github.com/go-spatial/geom/slippy"

	"github.com/pdok/rastermosaic/raster"
	"github.com/pdok/rastermosaic/tms20"
)

// GeoPackage reads tiles from the tiles table of GeoPackage files. An asset is
// a file path, optionally followed by #table. Without a table the first tiles
// table listed in gpkg_contents is used.
type GeoPackage struct {
	tms *tms20.TileMatrixSet

	mu      sync.Mutex
	handles map[string]*gpkg.Handle
}

func NewGeoPackage(tms *tms20.TileMatrixSet) *GeoPackage {
	return &GeoPackage{tms: tms, handles: make(map[string]*gpkg.Handle)}
}

func (g *GeoPackage) Tile(ctx context.Context, asset string, tile slippy.Tile, opts map[string]any) (*raster.Tile, error) {
	if !g.tms.Contains(tile) {
		return nil, fmt.Errorf("%w: %v not in %s", ErrOutsideBounds, tile, g.tms.ID)
	}
	file, table, _ := strings.Cut(asset, "#")
	h, err := g.handle(file)
	if err != nil {
		return nil, err
	}
	table = stringOption(opts, "table", table)
	if table == "" {
		if table, err = defaultTilesTable(ctx, h); err != nil {
			return nil, err
		}
	}

	query := fmt.Sprintf(`SELECT tile_data FROM "%v" WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?;`, table)
	var data []byte
	err = h.QueryRowContext(ctx, query, tile.Z, tile.X, tile.Y).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no row in %s", ErrOutsideBounds, table)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return decode(data, opts)
}

func (g *GeoPackage) handle(file string) (*gpkg.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := g.handles[file]; ok {
		return h, nil
	}
	// gpkg.Open creates missing files
	if _, err := os.Stat(file); err != nil {
		return nil, err
	}
	h, err := gpkg.Open(file)
	if err != nil {
		return nil, fmt.Errorf("error opening GeoPackage: %w", err)
	}
	g.handles[file] = h
	return h, nil
}

func defaultTilesTable(ctx context.Context, h *gpkg.Handle) (string, error) {
	var table string
	err := h.QueryRowContext(ctx,
		`SELECT table_name FROM gpkg_contents WHERE data_type = 'tiles' ORDER BY table_name LIMIT 1;`).Scan(&table)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.New("no tiles table in gpkg_contents")
	}
	return table, err
}

// Close closes every GeoPackage opened so far.
func (g *GeoPackage) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var errs []error
	for file, h := range g.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", file, err))
		}
		delete(g.handles, file)
	}
	return errors.Join(errs...)
}
