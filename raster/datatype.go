package raster

import (
	"fmt"
	"math"
	"reflect"

	"github.com/pdok/rastermosaic/mathhelp"
)

// DataType is the numeric element type of the source a Tile was read from.
// Values are always held as float64, which is exact for every supported type.
type DataType uint8

const (
	Uint8 DataType = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Float32
	Float64
)

var dataTypeNames = [...]string{
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
}

func (dt DataType) String() string {
	if int(dt) < len(dataTypeNames) {
		return dataTypeNames[dt]
	}
	return fmt.Sprintf("DataType(%d)", uint8(dt))
}

func (dt DataType) Integral() bool {
	return dt != Float32 && dt != Float64
}

// Range returns the smallest and largest value representable by dt.
func (dt DataType) Range() (lo, hi float64) {
	switch dt {
	case Uint8:
		return 0, math.MaxUint8
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	default:
		return -math.MaxFloat64, math.MaxFloat64
	}
}

// Cast converts v the way a conversion to the element type would:
// integral types truncate toward zero (saturating at the type's range),
// Float32 rounds to the nearest float32.
func (dt DataType) Cast(v float64) float64 {
	if math.IsNaN(v) {
		if dt.Integral() {
			return 0
		}
		return v
	}
	switch dt {
	case Float64:
		return v
	case Float32:
		return float64(float32(v))
	default:
		lo, hi := dt.Range()
		return mathhelp.Clamp(math.Trunc(v), lo, hi)
	}
}

// dataTypeOf maps a Go element type onto a DataType, following the underlying kind
// so that named types (e.g. `type Elevation int16`) are accepted as well.
func dataTypeOf[T Number]() (DataType, error) {
	var zero T
	switch kind := reflect.TypeOf(zero).Kind(); kind {
	case reflect.Uint8:
		return Uint8, nil
	case reflect.Int8:
		return Int8, nil
	case reflect.Uint16:
		return Uint16, nil
	case reflect.Int16:
		return Int16, nil
	case reflect.Uint32:
		return Uint32, nil
	case reflect.Int32:
		return Int32, nil
	case reflect.Float32:
		return Float32, nil
	case reflect.Float64:
		return Float64, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedType, kind)
	}
}
