package tiler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-spatial/geom/slippy"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	"github.com/pdok/rastermosaic/raster"
	"github.com/pdok/rastermosaic/tms20"
)

const DefaultPattern = "{z}/{x}/{y}.png"

// Pyramid reads tiles from XYZ pyramids stored in blob buckets. Every asset is
// a bucket URL such as file:///data/ortho or s3://bucket?region=eu-west-1.
// Bucket handles are opened on first use and kept until Close.
type Pyramid struct {
	tms     *tms20.TileMatrixSet
	pattern string

	mu      sync.Mutex
	buckets map[string]*blob.Bucket
}

// NewPyramid returns a Pyramid for tiles of tms. An empty pattern means
// DefaultPattern. Besides {z}, {x} and {y} the pattern may use {-y}, the row
// counted from the bottom.
func NewPyramid(tms *tms20.TileMatrixSet, pattern string) *Pyramid {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Pyramid{tms: tms, pattern: pattern, buckets: make(map[string]*blob.Bucket)}
}

// Tile reads the tile from the asset's bucket. The tiler option "pattern"
// overrides the pattern for a single call.
func (p *Pyramid) Tile(ctx context.Context, asset string, tile slippy.Tile, opts map[string]any) (*raster.Tile, error) {
	if !p.tms.Contains(tile) {
		return nil, fmt.Errorf("%w: %v not in %s", ErrOutsideBounds, tile, p.tms.ID)
	}
	bucket, err := p.bucket(ctx, asset)
	if err != nil {
		return nil, err
	}
	key := p.key(stringOption(opts, "pattern", p.pattern), tile)
	data, err := bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: no %s", ErrOutsideBounds, key)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return decode(data, opts)
}

func (p *Pyramid) bucket(ctx context.Context, asset string) (*blob.Bucket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.buckets[asset]; ok {
		return b, nil
	}
	b, err := blob.OpenBucket(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	p.buckets[asset] = b
	return b, nil
}

func (p *Pyramid) key(pattern string, tile slippy.Tile) string {
	size, _ := p.tms.Size(tile.Z)
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(tile.Z), 10),
		"{x}", strconv.FormatUint(uint64(tile.X), 10),
		"{y}", strconv.FormatUint(uint64(tile.Y), 10),
		"{-y}", strconv.FormatUint(uint64(size.Y-1-tile.Y), 10),
	).Replace(pattern)
}

// Close closes every bucket opened so far.
func (p *Pyramid) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for asset, b := range p.buckets {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", asset, err))
		}
		delete(p.buckets, asset)
	}
	return errors.Join(errs...)
}
