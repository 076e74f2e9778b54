// Package render turns a composite tile into an image.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/pdok/rastermosaic/mathhelp"
	"github.com/pdok/rastermosaic/raster"
)

// ErrNoData is returned when there is no tile to render.
var ErrNoData = errors.New("render: no data")

// Ramp maps the lowest value of a single band to From and the highest to To,
// blending in between in the CIE L*a*b* space.
type Ramp struct {
	From colorful.Color
	To   colorful.Color
}

var DefaultRamp = Ramp{From: colorful.Color{R: 0, G: 0, B: 0}, To: colorful.Color{R: 1, G: 1, B: 1}}

// ParseRamp reads a ramp written as two hex colours, e.g. "#2b83ba,#d7191c".
func ParseRamp(s string) (Ramp, error) {
	from, to, ok := strings.Cut(s, ",")
	if !ok {
		return Ramp{}, fmt.Errorf("ramp %q: want two colours separated by a comma", s)
	}
	var r Ramp
	var err error
	if r.From, err = colorful.Hex(strings.TrimSpace(from)); err != nil {
		return Ramp{}, fmt.Errorf("ramp %q: %w", s, err)
	}
	if r.To, err = colorful.Hex(strings.TrimSpace(to)); err != nil {
		return Ramp{}, fmt.Errorf("ramp %q: %w", s, err)
	}
	return r, nil
}

func (r Ramp) at(v, lo, hi float64) color.NRGBA {
	c := r.From.BlendLab(r.To, mathhelp.Rescale(v, lo, hi)).Clamped()
	red, green, blue := c.RGB255()
	return color.NRGBA{R: red, G: green, B: blue, A: 255}
}

type Options struct {
	Ramp Ramp
	// Min and Max fix the value range that is stretched over the ramp or the
	// 8 bit colour channels. Nil means the range of the valid values.
	Min, Max *float64
}

// ToImage renders t. Tiles with three or more bands become RGB, anything else
// is drawn by ramping the first band. Invalid pixels are transparent.
func ToImage(t *raster.Tile, opts Options) (*image.NRGBA, error) {
	if t == nil {
		return nil, ErrNoData
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if opts.Ramp == (Ramp{}) {
		opts.Ramp = DefaultRamp
	}
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))

	if t.Bands >= 3 {
		lo, hi := valueRange(t, 3, opts)
		for y := 0; y < t.Height; y++ {
			for x := 0; x < t.Width; x++ {
				if !t.Valid(y, x) {
					continue
				}
				img.SetNRGBA(x, y, color.NRGBA{
					R: channel(t.At(0, y, x), lo, hi),
					G: channel(t.At(1, y, x), lo, hi),
					B: channel(t.At(2, y, x), lo, hi),
					A: 255,
				})
			}
		}
		return img, nil
	}

	lo, hi := valueRange(t, 1, opts)
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			if t.Valid(y, x) {
				img.SetNRGBA(x, y, opts.Ramp.at(t.At(0, y, x), lo, hi))
			}
		}
	}
	return img, nil
}

// valueRange is the range stretched over the output. Uint8 RGB is drawn as is.
func valueRange(t *raster.Tile, bands int, opts Options) (lo, hi float64) {
	switch {
	case bands == 3 && t.DataType == raster.Uint8:
		lo, hi = 0, 255
	case bands == 3 && t.DataType == raster.Uint16:
		lo, hi = 0, 65535
	default:
		lo, hi = math.Inf(1), math.Inf(-1)
		for b := 0; b < bands; b++ {
			for i, v := range t.Band(b) {
				if t.Mask[i] && !math.IsNaN(v) {
					lo, hi = min(lo, v), max(hi, v)
				}
			}
		}
	}
	if opts.Min != nil {
		lo = *opts.Min
	}
	if opts.Max != nil {
		hi = *opts.Max
	}
	return lo, hi
}

func channel(v, lo, hi float64) uint8 {
	return uint8(math.Round(255 * mathhelp.Rescale(v, lo, hi)))
}

// Encode writes t to w as PNG.
func Encode(w io.Writer, t *raster.Tile, opts Options) error {
	img, err := ToImage(t, opts)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, imaging.PNG)
}

// Save writes t to path in the format matching its extension (png, jpg, tif, ...).
func Save(path string, t *raster.Tile, opts Options) error {
	img, err := ToImage(t, opts)
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}
