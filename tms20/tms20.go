// Package tms20 implements the parts of the OGC Tile Matrix Set standard (v2.0)
// needed to address tiles: loading a tile matrix set and translating tile
// coordinates to native coordinates.
// See https://www.ogc.org/standard/tms/
package tms20

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"
	"github.com/perimeterx/marshmallow"
)

var (
	//go:embed tilematrixsets/*.json
	embeddedTileMatrixSetsJSONFS embed.FS

	embeddedTileMatrixSetsMu    sync.Mutex
	embeddedTileMatrixSetsCache = make(map[string]TileMatrixSet)

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// EmbeddedIDs lists the ids of the tile matrix sets shipped with this package.
func EmbeddedIDs() []string {
	files, _ := fs.Glob(embeddedTileMatrixSetsJSONFS, "tilematrixsets/*.json")
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(path.Base(f), ".json"))
	}
	return ids
}

// LoadEmbeddedTileMatrixSet loads one of the EmbeddedIDs. Loaded sets are cached.
func LoadEmbeddedTileMatrixSet(id string) (TileMatrixSet, error) {
	embeddedTileMatrixSetsMu.Lock()
	defer embeddedTileMatrixSetsMu.Unlock()
	if cached, ok := embeddedTileMatrixSetsCache[id]; ok {
		return cached, nil
	}
	tmsJSON, err := embeddedTileMatrixSetsJSONFS.ReadFile("tilematrixsets/" + id + ".json")
	if err != nil {
		return TileMatrixSet{}, fmt.Errorf("unknown tile matrix set %q, known are %v", id, EmbeddedIDs())
	}
	tms, err := ParseTileMatrixSet(tmsJSON)
	if err != nil {
		return tms, fmt.Errorf("tile matrix set %q: %w", id, err)
	}
	embeddedTileMatrixSetsCache[id] = tms
	return tms, nil
}

// LoadJSONTileMatrixSet loads a tile matrix set from a JSON file on disk.
func LoadJSONTileMatrixSet(p string) (TileMatrixSet, error) {
	tmsJSON, err := os.ReadFile(p)
	if err != nil {
		return TileMatrixSet{}, err
	}
	return ParseTileMatrixSet(tmsJSON)
}

func ParseTileMatrixSet(data []byte) (TileMatrixSet, error) {
	var tms TileMatrixSet
	err := json.Unmarshal(data, &tms)
	return tms, err
}

// TileMatrixSet is a definition of a tile matrix set following the Tile Matrix Set standard.
type TileMatrixSet struct {
	// Tile matrix set identifier
	ID string `json:"id,omitempty"`
	// Title of this tile matrix set, normally used for display to a human
	Title string `json:"title,omitempty"`
	// Reference to an official source for this TileMatrixSet
	URI         string   `validate:"omitempty,uri" json:"uri,omitempty"`
	OrderedAxes []string `validate:"omitempty,min=1" json:"orderedAxes,omitempty"`
	// Coordinate Reference System (CRS)
	CRS CRS `json:"-"`
	// Minimum bounding rectangle surrounding the tile matrix set, in the supported CRS
	BoundingBox *TwoDBoundingBox `json:"boundingBox,omitempty"`
	// Scale levels keyed by their integer id
	TileMatrices map[int]TileMatrix `validate:"required,min=1" json:"-"`
}

func (tms *TileMatrixSet) UnmarshalJSON(data []byte) error {
	if err := defaults.Set(tms); err != nil {
		return err
	}
	specials, err := marshmallow.Unmarshal(data, tms, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}

	rawCrs, ok := specials["crs"]
	if !ok {
		return errors.New(`missing key "crs"`)
	}
	if tms.CRS, err = parseCRS(rawCrs); err != nil {
		return err
	}

	rawTileMatrices, ok := specials["tileMatrices"]
	if !ok {
		return errors.New(`missing key "tileMatrices"`)
	}
	if tms.TileMatrices, err = parseTileMatrices(rawTileMatrices); err != nil {
		return err
	}
	return validate.Struct(tms)
}

func parseTileMatrices(raw any) (map[int]TileMatrix, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.New(`"tileMatrices" should be an array`)
	}
	tileMatrices := make(map[int]TileMatrix, len(list))
	for _, rawTileMatrix := range list {
		var tm TileMatrix
		if err := tm.UnmarshalJSONFromMap(rawTileMatrix); err != nil {
			return nil, err
		}
		id, err := strconv.Atoi(tm.ID)
		if err != nil {
			return nil, fmt.Errorf("only integer-like ids are supported for tile matrices: %w", err)
		}
		tileMatrices[id] = tm
	}
	return tileMatrices, nil
}

var (
	crsURIRegexURL = regexp.MustCompile("https?://.+/def/crs/(?P<authority>[^/]+)/[^/]+/(?P<code>[^/]+)$")
	crsURIRegexURN = regexp.MustCompile("^urn:ogc:def:crs:(?P<authority>[^:]+)::(?P<code>[^:]+)$")
)

// CRS identifies a coordinate reference system by authority and code. It is
// read from a URI (plain string or {"uri": ...}) or from the id of a ProjJSON
// {"wkt": ...} object.
type CRS struct {
	Description   string
	URI           string
	AuthorityName string `validate:"required"`
	AuthorityCode string `validate:"required"`
}

func parseCRS(raw any) (CRS, error) {
	var crs CRS
	var m map[string]any
	switch v := raw.(type) {
	case string:
		m = map[string]any{"uri": v}
	case map[string]any:
		m = v
	default:
		return crs, fmt.Errorf(`wrong type key "crs": %T`, raw)
	}
	if d, ok := m["description"].(string); ok {
		crs.Description = d
	}

	switch {
	case m["uri"] != nil:
		uri, ok := m["uri"].(string)
		if !ok {
			return crs, fmt.Errorf(`uri property is not a string but a %T`, m["uri"])
		}
		parts := crsURIRegexURL.FindStringSubmatch(uri)
		if parts == nil {
			parts = crsURIRegexURN.FindStringSubmatch(uri)
		}
		if parts == nil {
			return crs, fmt.Errorf(`could not parse crs uri "%v"`, uri)
		}
		crs.URI, crs.AuthorityName, crs.AuthorityCode = uri, parts[1], parts[2]
	case m["wkt"] != nil:
		wkt, ok := m["wkt"].(map[string]any)
		if !ok {
			return crs, fmt.Errorf(`wkt property is not an object but a %T`, m["wkt"])
		}
		id, ok := wkt["id"].(map[string]any)
		if !ok {
			return crs, errors.New(`could not parse wkt as ProjJSON, no "id" object`)
		}
		crs.AuthorityName, _ = id["authority"].(string)
		if code, ok := id["code"]; ok && code != nil {
			crs.AuthorityCode = fmt.Sprint(code) // string or number
		}
	default:
		return crs, errors.New(`crs needs either a "uri" or a "wkt" property`)
	}
	return crs, validate.Struct(crs)
}

// TwoDBoundingBox is the minimum bounding rectangle surrounding a 2D resource.
type TwoDBoundingBox struct {
	LowerLeft  TwoDPoint `json:"lowerLeft"`
	UpperRight TwoDPoint `json:"upperRight"`
	CRS        *CRS      `json:"-"`
}

func (bb *TwoDBoundingBox) UnmarshalJSON(data []byte) error {
	specials, err := marshmallow.Unmarshal(data, bb, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}
	if rawCrs, ok := specials["crs"]; ok {
		crs, err := parseCRS(rawCrs)
		if err != nil {
			return err
		}
		bb.CRS = &crs
	}
	return nil
}

// A 2D Point in the CRS indicated elsewhere
type TwoDPoint [2]float64

type CornerOfOrigin string

const (
	TopLeft    CornerOfOrigin = "topLeft"
	BottomLeft CornerOfOrigin = "bottomLeft"
)

// A tile matrix, usually corresponding to a particular zoom level of a TileMatrixSet.
type TileMatrix struct {
	// Identifier selecting one of the scales defined in the TileMatrixSet
	ID               string  `validate:"required" json:"id"`
	ScaleDenominator float64 `validate:"required,gt=0" json:"scaleDenominator"`
	CellSize         float64 `validate:"required,gt=0" json:"cellSize"`
	// The corner used as the origin for numbering tile rows and columns.
	CornerOfOrigin CornerOfOrigin `default:"topLeft" validate:"oneof=topLeft bottomLeft" json:"cornerOfOrigin,omitempty"`
	// Position in CRS coordinates of the corner of origin
	PointOfOrigin TwoDPoint `json:"pointOfOrigin"`
	TileWidth     uint      `validate:"required,min=1" json:"tileWidth"`
	TileHeight    uint      `validate:"required,min=1" json:"tileHeight"`
	MatrixWidth   uint      `validate:"required,min=1" json:"matrixWidth"`
	MatrixHeight  uint      `validate:"required,min=1" json:"matrixHeight"`
}

func (tm *TileMatrix) UnmarshalJSONFromMap(data any) error {
	if err := defaults.Set(tm); err != nil {
		return err
	}
	dataMap, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf(`tile matrix is not an object but a %T`, data)
	}
	if _, err := marshmallow.UnmarshalFromJSONMap(dataMap, tm); err != nil {
		return err
	}
	if tm.CornerOfOrigin == "" {
		tm.CornerOfOrigin = TopLeft
	}
	return validate.Struct(tm)
}

func (tm TileMatrix) tileSpan() (float64, float64) {
	return float64(tm.TileWidth) * tm.CellSize, float64(tm.TileHeight) * tm.CellSize
}

func (tms *TileMatrixSet) SRID() (uint, error) {
	code, err := strconv.ParseUint(tms.CRS.AuthorityCode, 10, 64)
	if err != nil {
		return 0, fmt.Errorf(`could not parse crs authority code: %w`, err)
	}
	return uint(code), nil
}

// Size returns the number of tiles at zoom as the X and Y of a tile.
func (tms *TileMatrixSet) Size(zoom uint) (*slippy.Tile, bool) {
	tm, ok := tms.TileMatrices[int(zoom)]
	if !ok {
		return nil, false
	}
	return slippy.NewTile(zoom, tm.MatrixWidth, tm.MatrixHeight), true
}

// Contains reports whether tile is a tile of this set.
func (tms *TileMatrixSet) Contains(tile slippy.Tile) bool {
	tm, ok := tms.TileMatrices[int(tile.Z)]
	return ok && tile.X < tm.MatrixWidth && tile.Y < tm.MatrixHeight
}

// ToNative returns the top left corner of tile. Tiles one past the last column
// or row are accepted so their corner can close an extent.
func (tms *TileMatrixSet) ToNative(tile *slippy.Tile) (geom.Point, bool) {
	tm, ok := tms.TileMatrices[int(tile.Z)]
	if !ok || tile.X > tm.MatrixWidth || tile.Y > tm.MatrixHeight {
		return geom.Point{}, false
	}
	spanX, spanY := tm.tileSpan()
	x := tm.PointOfOrigin[0] + float64(tile.X)*spanX
	switch tm.CornerOfOrigin {
	case BottomLeft:
		return geom.Point{x, tm.PointOfOrigin[1] + float64(tile.Y+1)*spanY}, true
	default:
		return geom.Point{x, tm.PointOfOrigin[1] - float64(tile.Y)*spanY}, true
	}
}

// Extent returns the native bounds of tile.
func (tms *TileMatrixSet) Extent(tile slippy.Tile) (*geom.Extent, bool) {
	if !tms.Contains(tile) {
		return nil, false
	}
	topLeft, _ := tms.ToNative(&tile)
	spanX, spanY := tms.TileMatrices[int(tile.Z)].tileSpan()
	return &geom.Extent{topLeft[0], topLeft[1] - spanY, topLeft[0] + spanX, topLeft[1]}, true
}
