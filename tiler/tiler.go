// Package tiler provides mosaic.Tiler implementations reading pre-rendered
// image tiles: an XYZ pyramid in a blob bucket and the tiles table of a GeoPackage.
//
// Both understand the tiler option "indexes": an int or list of ints selecting
// bands, numbered from 1.
package tiler

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/pdok/rastermosaic/raster"
)

// ErrOutsideBounds is returned for a tile that an asset does not cover.
var ErrOutsideBounds = errors.New("tiler: tile outside asset bounds")

// decode turns encoded image bytes into a tile and applies the tiler options.
func decode(data []byte, opts map[string]any) (*raster.Tile, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	t := raster.FromImage(img)
	indexes, err := indexesOption(opts)
	if err != nil {
		return nil, err
	}
	if len(indexes) == 0 {
		return t, nil
	}
	return t.Select(indexes...)
}

func indexesOption(opts map[string]any) ([]int, error) {
	raw, ok := opts["indexes"]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case int:
		return []int{v}, nil
	case []int:
		return v, nil
	case float64:
		return []int{int(v)}, nil
	case []any:
		indexes := make([]int, len(v))
		for i, e := range v {
			switch n := e.(type) {
			case int:
				indexes[i] = n
			case float64:
				indexes[i] = int(n)
			default:
				return nil, fmt.Errorf("tiler: option indexes[%d] is a %T, not a number", i, e)
			}
		}
		return indexes, nil
	}
	return nil, fmt.Errorf("tiler: option indexes is a %T, not a number or list", raw)
}

func stringOption(opts map[string]any, key, fallback string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
