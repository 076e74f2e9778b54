package mosaic

import (
	"context"
	"log"
	"os"
	"runtime"
	"strconv"

	"github.com/go-spatial/geom/slippy"

	"github.com/pdok/rastermosaic/raster"
	"github.com/pdok/rastermosaic/selection"
)

// Tiler turns an asset identifier and tile coordinates into a Tile.
// It is called concurrently for different assets and must be safe for that.
// Any error, including the tile lying outside the asset, skips the asset.
type Tiler interface {
	Tile(ctx context.Context, asset string, tile slippy.Tile, opts map[string]any) (*raster.Tile, error)
}

// TilerFunc adapts an ordinary function to the Tiler interface.
type TilerFunc func(ctx context.Context, asset string, tile slippy.Tile, opts map[string]any) (*raster.Tile, error)

func (f TilerFunc) Tile(ctx context.Context, asset string, tile slippy.Tile, opts map[string]any) (*raster.Tile, error) {
	return f(ctx, asset, tile, opts)
}

// Options configures a Mosaic run. The zero value fetches sequentially with the
// First selection method.
type Options struct {
	// PixelSelection merges the fetched tiles. It must be a fresh selector per
	// run. Nil means selection.First.
	PixelSelection selection.PixelSelector

	// ChunkSize is the number of assets fetched per round. Zero means Threads,
	// or all assets when Threads <= 1.
	ChunkSize int

	// Threads is the number of concurrent fetches within a chunk.
	// Values <= 1 fetch sequentially on the calling goroutine.
	Threads int

	// TilerOptions is handed to every Tiler call unchanged.
	TilerOptions map[string]any

	// Logf receives diagnostics such as skipped assets. Nil means log.Printf.
	Logf func(format string, v ...any)
}

// DefaultOptions returns Options with Threads set to MaxThreads.
func DefaultOptions() Options {
	return Options{Threads: MaxThreads()}
}

// MaxThreads reads the MAX_THREADS environment variable and falls back to five
// fetches per CPU.
func MaxThreads() int {
	if v, err := strconv.Atoi(os.Getenv("MAX_THREADS")); err == nil && v >= 0 {
		return v
	}
	return runtime.NumCPU() * 5
}

func (o Options) logf() func(string, ...any) {
	if o.Logf == nil {
		return log.Printf
	}
	return o.Logf
}

func (o Options) chunkSize(assets int) int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	if o.Threads > 1 {
		return o.Threads
	}
	return max(assets, 1)
}
