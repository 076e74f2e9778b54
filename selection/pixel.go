package selection

import (
	"fmt"

	"github.com/pdok/rastermosaic/raster"
)

// replaceFunc decides per pixel and band whether the incoming value replaces the
// accumulated one.
type replaceFunc func(accValid, newValid bool, accV, newV float64) bool

func validate(t *raster.Tile) error {
	if t == nil {
		return fmt.Errorf("%w: nil tile", raster.ErrInvalidShape)
	}
	return t.Validate()
}

// adopt validates t and returns the private copy a selector keeps as accumulator.
func adopt(t *raster.Tile) (*raster.Tile, error) {
	if err := validate(t); err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// merge folds t into acc in place. A pixel is valid afterwards when it was valid
// in either tile.
func merge(acc, t *raster.Tile, replace replaceFunc) error {
	if err := validate(t); err != nil {
		return err
	}
	if err := acc.SameShape(t); err != nil {
		return err
	}
	n := acc.PixelCount()
	for i := 0; i < n; i++ {
		accValid, newValid := acc.Mask[i], t.Mask[i]
		for b := 0; b < acc.Bands; b++ {
			idx := b*n + i
			if replace(accValid, newValid, acc.Data[idx], t.Data[idx]) {
				acc.Data[idx] = t.Data[idx]
			}
		}
		acc.Mask[i] = accValid || newValid
	}
	return nil
}

func result(acc *raster.Tile) *raster.Tile {
	if acc == nil {
		return nil
	}
	return acc.Clone()
}

// First keeps the first valid pixel seen. It is done as soon as every pixel
// is valid.
type First struct {
	tile *raster.Tile
}

func NewFirst() *First {
	return &First{}
}

func (s *First) Feed(t *raster.Tile) (err error) {
	if s.tile == nil {
		s.tile, err = adopt(t)
		return err
	}
	return merge(s.tile, t, func(accValid, newValid bool, _, _ float64) bool {
		return !accValid && newValid
	})
}

func (s *First) Done() bool {
	return s.tile != nil && s.tile.Full()
}

func (s *First) Result() *raster.Tile {
	return result(s.tile)
}

// Last keeps the most recently fed valid pixel.
type Last struct {
	tile *raster.Tile
}

func NewLast() *Last {
	return &Last{}
}

func (s *Last) Feed(t *raster.Tile) (err error) {
	if s.tile == nil {
		s.tile, err = adopt(t)
		return err
	}
	return merge(s.tile, t, func(accValid, newValid bool, _, _ float64) bool {
		return newValid || !accValid
	})
}

func (s *Last) Done() bool {
	return false
}

func (s *Last) Result() *raster.Tile {
	return result(s.tile)
}

// Highest keeps the highest valid value per pixel and band.
// Equal values keep the earlier tile's value.
type Highest struct {
	tile *raster.Tile
}

func NewHighest() *Highest {
	return &Highest{}
}

func (s *Highest) Feed(t *raster.Tile) (err error) {
	if s.tile == nil {
		s.tile, err = adopt(t)
		return err
	}
	return merge(s.tile, t, func(accValid, newValid bool, accV, newV float64) bool {
		return (newV > accV && newValid) || !accValid
	})
}

func (s *Highest) Done() bool {
	return false
}

func (s *Highest) Result() *raster.Tile {
	return result(s.tile)
}

// Lowest keeps the lowest valid value per pixel and band.
// Equal values keep the earlier tile's value.
type Lowest struct {
	tile *raster.Tile
}

func NewLowest() *Lowest {
	return &Lowest{}
}

func (s *Lowest) Feed(t *raster.Tile) (err error) {
	if s.tile == nil {
		s.tile, err = adopt(t)
		return err
	}
	return merge(s.tile, t, func(accValid, newValid bool, accV, newV float64) bool {
		return (newV < accV && newValid) || !accValid
	})
}

func (s *Lowest) Done() bool {
	return false
}

func (s *Lowest) Result() *raster.Tile {
	return result(s.tile)
}
