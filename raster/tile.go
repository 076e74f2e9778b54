// Package raster holds the value type that crosses every boundary of a mosaic run:
// a multi-band numeric grid plus a validity mask shared by all bands.
package raster

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/pdok/rastermosaic/mathhelp"
)

const (
	// MaskInvalid and MaskValid are the wire values of a mask pixel.
	MaskInvalid uint8 = 0
	MaskValid   uint8 = 255
)

var (
	ErrShapeMismatch   = errors.New("raster: tiles differ in shape, band count or data type")
	ErrUnsupportedType = errors.New("raster: unsupported element type")
	ErrInvalidShape    = errors.New("raster: invalid tile shape")
)

// Number is the set of element types a Tile can be built from.
type Number interface {
	constraints.Integer | constraints.Float
}

// Tile is a grid of shape [Bands][Height][Width] with a [Height][Width] mask.
// A true mask entry means the pixel is present (valid) in every band.
type Tile struct {
	Bands    int
	Height   int
	Width    int
	DataType DataType
	// Data is band-major: index = (band*Height + y)*Width + x
	Data []float64
	Mask []bool
}

// New returns a zero-valued tile with every pixel invalid.
func New(dt DataType, bands, height, width int) *Tile {
	return &Tile{
		Bands:    bands,
		Height:   height,
		Width:    width,
		DataType: dt,
		Data:     make([]float64, bands*height*width),
		Mask:     make([]bool, height*width),
	}
}

// FromValues builds a Tile from typed values laid out [bands][height][width]
// and a wire mask (0 = invalid, anything else = valid). A nil mask marks every
// pixel valid.
func FromValues[T Number](bands, height, width int, values []T, mask []uint8) (*Tile, error) {
	dt, err := dataTypeOf[T]()
	if err != nil {
		return nil, err
	}
	if bands < 1 || height < 1 || width < 1 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrInvalidShape, bands, height, width)
	}
	if len(values) != bands*height*width {
		return nil, fmt.Errorf("%w: %d values for %dx%dx%d", ErrInvalidShape, len(values), bands, height, width)
	}
	if mask != nil && len(mask) != height*width {
		return nil, fmt.Errorf("%w: mask of %d for %dx%d", ErrInvalidShape, len(mask), height, width)
	}
	t := New(dt, bands, height, width)
	for i, v := range values {
		t.Data[i] = float64(v)
	}
	for i := range t.Mask {
		t.Mask[i] = mask == nil || mask[i] != MaskInvalid
	}
	return t, nil
}

// Values returns a typed copy of the tile's data.
func Values[T Number](t *Tile) []T {
	values := make([]T, len(t.Data))
	for i, v := range t.Data {
		values[i] = T(v)
	}
	return values
}

func (t *Tile) index(band, y, x int) int {
	return (band*t.Height+y)*t.Width + x
}

func (t *Tile) At(band, y, x int) float64 {
	return t.Data[t.index(band, y, x)]
}

func (t *Tile) Set(band, y, x int, v float64) {
	t.Data[t.index(band, y, x)] = v
}

func (t *Tile) Valid(y, x int) bool {
	return t.Mask[y*t.Width+x]
}

func (t *Tile) SetValid(y, x int, valid bool) {
	t.Mask[y*t.Width+x] = valid
}

// PixelCount is the number of pixels in one band.
func (t *Tile) PixelCount() int {
	return t.Height * t.Width
}

// Band returns the slice of Data holding band b. It shares memory with t.
func (t *Tile) Band(b int) []float64 {
	n := t.PixelCount()
	return t.Data[b*n : (b+1)*n]
}

// Select returns a new tile holding the given bands, numbered from 1.
func (t *Tile) Select(indexes ...int) (*Tile, error) {
	if len(indexes) == 0 {
		return t.Clone(), nil
	}
	out := New(t.DataType, len(indexes), t.Height, t.Width)
	for i, index := range indexes {
		if index < 1 || index > t.Bands {
			return nil, fmt.Errorf("%w: band %d of %d", ErrInvalidShape, index, t.Bands)
		}
		copy(out.Band(i), t.Band(index-1))
	}
	copy(out.Mask, t.Mask)
	return out, nil
}

func (t *Tile) Clone() *Tile {
	c := *t
	c.Data = append([]float64(nil), t.Data...)
	c.Mask = append([]bool(nil), t.Mask...)
	return &c
}

// Validate checks that the backing slices match the declared shape.
func (t *Tile) Validate() error {
	if t.Bands < 1 || t.Height < 1 || t.Width < 1 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidShape, t.Bands, t.Height, t.Width)
	}
	if len(t.Data) != t.Bands*t.Height*t.Width || len(t.Mask) != t.Height*t.Width {
		return fmt.Errorf("%w: %d values and %d mask entries for %dx%dx%d",
			ErrInvalidShape, len(t.Data), len(t.Mask), t.Bands, t.Height, t.Width)
	}
	return nil
}

// SameShape reports ErrShapeMismatch when other cannot be merged with t.
func (t *Tile) SameShape(other *Tile) error {
	if t.Bands != other.Bands || t.Height != other.Height || t.Width != other.Width || t.DataType != other.DataType {
		return fmt.Errorf("%w: %dx%dx%d %v vs %dx%dx%d %v", ErrShapeMismatch,
			t.Bands, t.Height, t.Width, t.DataType,
			other.Bands, other.Height, other.Width, other.DataType)
	}
	return nil
}

// ValidCount is the number of valid pixels.
func (t *Tile) ValidCount() int {
	n := 0
	for _, valid := range t.Mask {
		n += mathhelp.Bool2int(valid)
	}
	return n
}

// Full reports whether no pixel is invalid.
func (t *Tile) Full() bool {
	for _, valid := range t.Mask {
		if !valid {
			return false
		}
	}
	return true
}

// Coverage is the fraction of valid pixels.
func (t *Tile) Coverage() float64 {
	if len(t.Mask) == 0 {
		return 0
	}
	return float64(t.ValidCount()) / float64(len(t.Mask))
}

// MaskBytes returns the mask in its wire form: 0 invalid, 255 valid.
func (t *Tile) MaskBytes() []uint8 {
	m := make([]uint8, len(t.Mask))
	for i, valid := range t.Mask {
		if valid {
			m[i] = MaskValid
		}
	}
	return m
}

func (t *Tile) String() string {
	return fmt.Sprintf("Tile(%dx%dx%d %v, %.1f%% valid)", t.Bands, t.Height, t.Width, t.DataType, 100*t.Coverage())
}
