package selection

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/pdok/rastermosaic/raster"
)

// stack keeps every fed tile; the statistic is only computed when a result is
// requested.
type stack struct {
	tiles []*raster.Tile
}

func (s *stack) push(t *raster.Tile) error {
	if err := validate(t); err != nil {
		return err
	}
	if len(s.tiles) > 0 {
		if err := s.tiles[0].SameShape(t); err != nil {
			return err
		}
	}
	s.tiles = append(s.tiles, t.Clone())
	return nil
}

// reduce applies statistic to the valid values of every pixel and band. A pixel
// without any valid value stays invalid. When enforce is set the values are cast
// to the data type of the stacked tiles, otherwise the result is Float64.
func (s *stack) reduce(statistic func(values []float64) float64, enforce bool) *raster.Tile {
	if len(s.tiles) == 0 {
		return nil
	}
	first := s.tiles[0]
	dt := raster.Float64
	if enforce {
		dt = first.DataType
	}
	out := raster.New(dt, first.Bands, first.Height, first.Width)
	n := first.PixelCount()
	values := make([]float64, 0, len(s.tiles))
	for i := 0; i < n; i++ {
		for b := 0; b < first.Bands; b++ {
			values = values[:0]
			for _, t := range s.tiles {
				if t.Mask[i] {
					values = append(values, t.Data[b*n+i])
				}
			}
			if len(values) == 0 {
				break
			}
			v := statistic(values)
			if enforce {
				v = dt.Cast(v)
			}
			out.Data[b*n+i] = v
			out.Mask[i] = true
		}
	}
	return out
}

func mean(values []float64) float64 {
	return stat.Mean(values, nil)
}

// median averages the two middle values of an even count. It sorts values in place.
func median(values []float64) float64 {
	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}

// popStdDev is the population (biased) standard deviation.
func popStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(values, nil)
	return std
}

// Mean computes the per-pixel mean of all valid values.
type Mean struct {
	stack
	enforceSourceType bool
}

func NewMean(opts ...Option) *Mean {
	return &Mean{enforceSourceType: newOptions(opts).enforceSourceType}
}

func (s *Mean) Feed(t *raster.Tile) error {
	return s.push(t)
}

func (s *Mean) Done() bool {
	return false
}

func (s *Mean) Result() *raster.Tile {
	return s.reduce(mean, s.enforceSourceType)
}

// Median computes the per-pixel median of all valid values.
type Median struct {
	stack
	enforceSourceType bool
}

func NewMedian(opts ...Option) *Median {
	return &Median{enforceSourceType: newOptions(opts).enforceSourceType}
}

func (s *Median) Feed(t *raster.Tile) error {
	return s.push(t)
}

func (s *Median) Done() bool {
	return false
}

func (s *Median) Result() *raster.Tile {
	return s.reduce(median, s.enforceSourceType)
}

// Stdev computes the per-pixel population standard deviation. The result is
// always Float64.
type Stdev struct {
	stack
}

func NewStdev() *Stdev {
	return &Stdev{}
}

func (s *Stdev) Feed(t *raster.Tile) error {
	return s.push(t)
}

func (s *Stdev) Done() bool {
	return false
}

func (s *Stdev) Result() *raster.Tile {
	return s.reduce(popStdDev, false)
}
