// Package mosaic composites the tiles of many overlapping assets into one tile.
//
// Assets are processed in contiguous chunks. The tiles of a chunk are fetched,
// concurrently if requested, and fed to a selection.PixelSelector strictly in
// asset-list order, so the composite is the same for any thread count or chunk
// size. Fetching stops as soon as the selector reports it is done.
package mosaic

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-spatial/geom/slippy"
	"github.com/google/uuid"

	"github.com/pdok/rastermosaic/raster"
	"github.com/pdok/rastermosaic/selection"
	"github.com/pdok/rastermosaic/slicehelp"
)

var (
	ErrInvalidSelector  = errors.New("mosaic: pixel selection is not a usable selector")
	ErrNoTiler          = errors.New("mosaic: no tiler")
	ErrInvalidChunkSize = errors.New("mosaic: chunk size must not be negative")
)

// Report describes what a Mosaic run did.
type Report struct {
	RunID     uuid.UUID
	Assets    int // assets in the list
	Chunks    int // chunks started
	Fetched   int // tiler calls made
	Fed       int // tiles fed to the selector
	Skipped   []SkippedAsset
	EarlyExit bool // stopped because the selector was done
}

// Mosaic builds the composite of assets for tile.
//
// It returns a nil tile and nil error when no asset delivered a tile; that is
// the normal outcome for a tile outside every asset. Errors are returned for an
// unusable configuration, detected before any fetch, for tiles that cannot be
// merged (shape mismatch), and for ctx being done before a chunk starts.
// A chunk that has started is always fetched completely.
func Mosaic(ctx context.Context, assets []string, tile slippy.Tile, tiler Tiler, opts Options) (*raster.Tile, *Report, error) {
	report := &Report{RunID: uuid.New(), Assets: len(assets)}

	selector := opts.PixelSelection
	if selector == nil {
		selector = selection.NewFirst()
	} else if isNilPointer(selector) {
		return nil, report, fmt.Errorf("%w: nil %T", ErrInvalidSelector, selector)
	}
	if tiler == nil || isNilPointer(tiler) {
		return nil, report, ErrNoTiler
	}
	if opts.ChunkSize < 0 {
		return nil, report, fmt.Errorf("%w: %d", ErrInvalidChunkSize, opts.ChunkSize)
	}

	chunkSize := opts.chunkSize(len(assets))
	f := &fetcher{
		tiler:        tiler,
		tile:         tile,
		tilerOptions: opts.TilerOptions,
		threads:      opts.Threads,
		logf:         opts.logf(),
		report:       report,
	}

	for i, chunk := range slicehelp.Chunks(assets, chunkSize) {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		report.Chunks++
		for index, t := range f.chunk(ctx, chunk, i*chunkSize) {
			if err := selector.Feed(t); err != nil {
				return nil, report, fmt.Errorf("mosaic: feed asset %d %q: %w", index, assets[index], err)
			}
			report.Fed++
			if selector.Done() {
				report.EarlyExit = true
				return selector.Result(), report, nil
			}
		}
	}
	return selector.Result(), report, nil
}

// isNilPointer catches typed nils stored in an interface, e.g. (*selection.First)(nil).
func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
