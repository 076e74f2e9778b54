package raster

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// FromImage converts a decoded image into a Tile.
// Grayscale images become a single band, everything else three (RGB) bands.
// A fully transparent pixel is invalid; any other alpha counts as valid.
func FromImage(img image.Image) *Tile {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	switch src := img.(type) {
	case *image.Gray:
		t := New(Uint8, 1, height, width)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				t.Set(0, y, x, float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y))
				t.SetValid(y, x, true)
			}
		}
		return t
	case *image.Gray16:
		t := New(Uint16, 1, height, width)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				t.Set(0, y, x, float64(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
				t.SetValid(y, x, true)
			}
		}
		return t
	case *image.RGBA64, *image.NRGBA64:
		t := New(Uint16, 3, height, width)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := color.NRGBA64Model.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA64)
				t.Set(0, y, x, float64(c.R))
				t.Set(1, y, x, float64(c.G))
				t.Set(2, y, x, float64(c.B))
				t.SetValid(y, x, c.A != 0)
			}
		}
		return t
	}

	nrgba := imaging.Clone(img)
	t := New(Uint8, 3, height, width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := nrgba.NRGBAAt(x, y)
			t.Set(0, y, x, float64(c.R))
			t.Set(1, y, x, float64(c.G))
			t.Set(2, y, x, float64(c.B))
			t.SetValid(y, x, c.A != 0)
		}
	}
	return t
}
