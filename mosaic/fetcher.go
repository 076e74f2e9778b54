package mosaic

import (
	"context"
	"errors"
	"iter"

	"github.com/go-spatial/geom/slippy"
	"golang.org/x/sync/errgroup"

	"github.com/pdok/rastermosaic/raster"
)

// ErrNoTile is recorded for a Tiler call that returned neither a tile nor an error.
var ErrNoTile = errors.New("mosaic: tiler returned no tile")

// SkippedAsset records an asset whose tile could not be fetched.
type SkippedAsset struct {
	Index int    // position in the asset list
	Asset string // asset identifier
	Err   error
}

type fetchResult struct {
	tile *raster.Tile
	err  error
}

// fetcher fetches the tiles of one chunk at a time.
type fetcher struct {
	tiler        Tiler
	tile         slippy.Tile
	tilerOptions map[string]any
	threads      int
	logf         func(string, ...any)
	report       *Report
}

// chunk yields the successfully fetched tiles of assets in asset-list order,
// keyed by their index in the complete list (offset is the index of assets[0]).
//
// With threads <= 1 the assets are fetched one by one when the consumer asks for
// the next tile, so a consumer that stops early avoids the remaining fetches.
// Otherwise all fetches of the chunk run on a pool of min(threads, len(assets))
// goroutines which is drained before the first tile is yielded.
//
// Failures are logged and recorded on the report, never returned.
func (f *fetcher) chunk(ctx context.Context, assets []string, offset int) iter.Seq2[int, *raster.Tile] {
	return func(yield func(int, *raster.Tile) bool) {
		if f.threads <= 1 {
			for i, asset := range assets {
				tile, err := f.fetch(ctx, asset)
				f.report.Fetched++
				if !f.collect(offset+i, asset, fetchResult{tile, err}) {
					continue
				}
				if !yield(offset+i, tile) {
					return
				}
			}
			return
		}

		results := f.fetchAll(ctx, assets)
		f.report.Fetched += len(assets)
		for i, asset := range assets {
			if !f.collect(offset+i, asset, results[i]) {
				continue
			}
			if !yield(offset+i, results[i].tile) {
				return
			}
		}
	}
}

// fetchAll runs the fetches of a chunk concurrently and returns once all of them
// have resolved. results[i] belongs to assets[i].
func (f *fetcher) fetchAll(ctx context.Context, assets []string) []fetchResult {
	results := make([]fetchResult, len(assets))
	var g errgroup.Group
	g.SetLimit(min(f.threads, len(assets)))
	for i, asset := range assets {
		g.Go(func() error {
			tile, err := f.fetch(ctx, asset)
			results[i] = fetchResult{tile, err}
			return nil
		})
	}
	_ = g.Wait() // workers never fail, errors live in results
	return results
}

func (f *fetcher) fetch(ctx context.Context, asset string) (*raster.Tile, error) {
	tile, err := f.tiler.Tile(ctx, asset, f.tile, f.tilerOptions)
	if err != nil {
		return nil, err
	}
	if tile == nil {
		return nil, ErrNoTile
	}
	return tile, nil
}

// collect books a failed fetch on the report and reports whether r holds a tile.
func (f *fetcher) collect(index int, asset string, r fetchResult) bool {
	if r.err == nil {
		return true
	}
	f.logf("    skipping asset %d %q: %v", index, asset, r.err)
	f.report.Skipped = append(f.report.Skipped, SkippedAsset{Index: index, Asset: asset, Err: r.err})
	return false
}
