// Package selection implements the pixel selection strategies that decide which
// value wins when several tiles cover the same pixel.
//
// A PixelSelector is fed tiles one at a time, in asset order, by a single
// goroutine. It owns its accumulator; tiles handed to Feed are copied or read,
// never retained by reference.
package selection

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdok/rastermosaic/raster"
	"github.com/pdok/rastermosaic/slicehelp"
)

var ErrUnknownMethod = errors.New("selection: unknown pixel selection method")

// PixelSelector merges a sequence of equally shaped tiles into one composite.
type PixelSelector interface {
	// Feed incorporates t. The first call adopts it.
	Feed(t *raster.Tile) error
	// Done reports that feeding more tiles cannot change the result.
	Done() bool
	// Result returns the composite, or nil when Feed was never called.
	Result() *raster.Tile
}

type options struct {
	enforceSourceType bool
}

type Option func(*options)

// WithEnforceSourceType controls whether Mean and Median cast their result back to
// the data type of the fed tiles (the default) or keep float64 precision.
func WithEnforceSourceType(enforce bool) Option {
	return func(o *options) {
		o.enforceSourceType = enforce
	}
}

func newOptions(opts []Option) options {
	o := options{enforceSourceType: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type constructor func(...Option) PixelSelector

var (
	methods = orderedmap.New[string, constructor]()
	aliases = map[string]string{
		"brightest": "highest",
		"darkest":   "lowest",
	}
)

func init() {
	methods.Set("first", func(...Option) PixelSelector { return NewFirst() })
	methods.Set("last", func(...Option) PixelSelector { return NewLast() })
	methods.Set("highest", func(...Option) PixelSelector { return NewHighest() })
	methods.Set("lowest", func(...Option) PixelSelector { return NewLowest() })
	methods.Set("mean", func(opts ...Option) PixelSelector { return NewMean(opts...) })
	methods.Set("median", func(opts ...Option) PixelSelector { return NewMedian(opts...) })
	methods.Set("stdev", func(...Option) PixelSelector { return NewStdev() })
}

// New returns a fresh selector for the named method. Names are case-insensitive;
// "brightest" and "darkest" are accepted for highest and lowest.
func New(name string, opts ...Option) (PixelSelector, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	newSelector, ok := methods.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownMethod, name, strings.Join(Names(), ", "))
	}
	return newSelector(opts...), nil
}

// Names lists the registered methods in registration order.
func Names() []string {
	return slicehelp.OrderedMapKeys(methods)
}

// Aliases lists the alternative method names, sorted.
func Aliases() []string {
	return slices.Sorted(maps.Keys(aliases))
}
