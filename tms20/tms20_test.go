package tms20

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/slippy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedTileMatrixSet(t *testing.T) {
	tests := []struct {
		id     string
		srid   uint
		levels int
	}{
		{id: "NetherlandsRDNewQuad", srid: 28992, levels: 17},
		{id: "WebMercatorQuad", srid: 3857, levels: 25},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := LoadEmbeddedTileMatrixSet(tt.id)
			require.NoErrorf(t, err, "LoadEmbeddedTileMatrixSet() error = %v", err)
			assert.Equal(t, tt.id, got.ID)
			assert.Len(t, got.TileMatrices, tt.levels)
			assert.Equal(t, "EPSG", got.CRS.AuthorityName)
			srid, err := got.SRID()
			require.NoError(t, err)
			assert.Equal(t, tt.srid, srid)
			require.NotNil(t, got.BoundingBox)
			require.NotNil(t, got.BoundingBox.CRS)
			assert.Equal(t, got.CRS.AuthorityCode, got.BoundingBox.CRS.AuthorityCode)
			for _, tm := range got.TileMatrices {
				assert.Equal(t, TopLeft, tm.CornerOfOrigin)
			}
		})
	}

	assert.ElementsMatch(t, []string{"NetherlandsRDNewQuad", "WebMercatorQuad"}, EmbeddedIDs())

	_, err := LoadEmbeddedTileMatrixSet("EuropeanETRS89_LAEAQuad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WebMercatorQuad")
}

func TestLoadJSONTileMatrixSet(t *testing.T) {
	got, err := LoadJSONTileMatrixSet(filepath.Join("testdata", "BottomLeftDoubleHeight.json"))
	require.NoError(t, err)
	assert.Equal(t, BottomLeft, got.TileMatrices[0].CornerOfOrigin)
	assert.Equal(t, []string{"Lat", "Lon"}, got.OrderedAxes)
	srid, err := got.SRID()
	require.NoError(t, err)
	assert.Equal(t, uint(1), srid)

	_, err = LoadJSONTileMatrixSet(filepath.Join("testdata", "NoMatrices.json"))
	require.Error(t, err)

	_, err = LoadJSONTileMatrixSet(filepath.Join("testdata", "doesnotexist.json"))
	require.Error(t, err)
}

func TestParseTileMatrixSet_CRS(t *testing.T) {
	matrices := `"tileMatrices": [{"id": "0", "scaleDenominator": 1, "cellSize": 1, "pointOfOrigin": [0, 0],
		"tileWidth": 256, "tileHeight": 256, "matrixWidth": 1, "matrixHeight": 1}]`
	tests := []struct {
		name    string
		crs     string
		code    string
		wantErr bool
	}{
		{name: "uri string", crs: `"http://www.opengis.net/def/crs/EPSG/0/28992"`, code: "28992"},
		{name: "urn string", crs: `"urn:ogc:def:crs:EPSG::3035"`, code: "3035"},
		{name: "uri object", crs: `{"uri": "https://www.opengis.net/def/crs/EPSG/0/3857", "description": "mercator"}`, code: "3857"},
		{name: "wkt with string code", crs: `{"wkt": {"id": {"authority": "EPSG", "code": "2193"}}}`, code: "2193"},
		{name: "unparsable uri", crs: `"EPSG:28992"`, wantErr: true},
		{name: "wkt without id", crs: `{"wkt": {"name": "custom"}}`, wantErr: true},
		{name: "neither", crs: `{"referenceSystem": {}}`, wantErr: true},
		{name: "number", crs: `28992`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTileMatrixSet([]byte(fmt.Sprintf(`{"crs": %s, %s}`, tt.crs, matrices)))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, got.CRS.AuthorityCode)
			// a matrix without cornerOfOrigin gets the default
			assert.Equal(t, TopLeft, got.TileMatrices[0].CornerOfOrigin)
		})
	}
}

func TestTileMatrixSet_Size(t *testing.T) {
	type args struct {
		zoom uint
	}
	type want struct {
		ok   bool
		tile *slippy.Tile
	}
	tests := []struct {
		id string
		args
		want
	}{
		{id: "NetherlandsRDNewQuad",
			args: args{0},
			want: want{ok: true, tile: &slippy.Tile{Z: 0, X: 1, Y: 1}}},
		{id: "NetherlandsRDNewQuad",
			args: args{1},
			want: want{ok: true, tile: &slippy.Tile{Z: 1, X: 2, Y: 2}}},
		{id: "NetherlandsRDNewQuad",
			args: args{99},
			want: want{ok: false, tile: nil}},
		{id: "BottomLeftDoubleHeight",
			args: args{0},
			want: want{ok: true, tile: &slippy.Tile{Z: 0, X: 2, Y: 4}}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v.Size(%v)", tt.id, tt.zoom), func(t *testing.T) {
			tms := loadTestOrEmbeddedTileMatrixSet(t, tt.id)
			tile, ok := tms.Size(tt.args.zoom)
			require.Equal(t, tt.ok, ok)
			if ok {
				require.Equal(t, tt.tile, tile)
			}
		})
	}
}

func TestTileMatrixSet_Contains(t *testing.T) {
	tms := loadTestOrEmbeddedTileMatrixSet(t, "WebMercatorQuad")
	tests := []struct {
		tile slippy.Tile
		want bool
	}{
		{slippy.Tile{Z: 0, X: 0, Y: 0}, true},
		{slippy.Tile{Z: 0, X: 1, Y: 0}, false},
		{slippy.Tile{Z: 9, X: 511, Y: 511}, true},
		{slippy.Tile{Z: 9, X: 150, Y: 512}, false},
		{slippy.Tile{Z: 25, X: 0, Y: 0}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tms.Contains(tt.tile), "%v", tt.tile)
	}
}

func TestTileMatrixSet_ToNative(t *testing.T) {
	tests := []struct {
		id   string
		tile slippy.Tile
		ok   bool
		pt   geom.Point
	}{
		{"NetherlandsRDNewQuad", slippy.Tile{Z: 1, X: 1, Y: 1}, true, geom.Point{155000, 463000.0}}, // centroid of extent
		{"NetherlandsRDNewQuad", slippy.Tile{Z: 0, X: 1, Y: 1}, true, geom.Point{595401.92, 22598.08}},
		{"NetherlandsRDNewQuad", slippy.Tile{Z: 0, X: 2, Y: 0}, false, geom.Point{}},
		{"NetherlandsRDNewQuad", slippy.Tile{Z: 30, X: 0, Y: 0}, false, geom.Point{}},
		{"BottomLeftDoubleHeight", slippy.Tile{Z: 0, X: 1, Y: 1}, true, geom.Point{256.0, 512.0}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v.ToNative(%v)", tt.id, tt.tile), func(t *testing.T) {
			tms := loadTestOrEmbeddedTileMatrixSet(t, tt.id)
			point, ok := tms.ToNative(&tt.tile)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.pt.X(), point.X(), 1e-6)
				assert.InDelta(t, tt.pt.Y(), point.Y(), 1e-6)
			}
		})
	}
}

func TestTileMatrixSet_Extent(t *testing.T) {
	tests := []struct {
		id   string
		tile slippy.Tile
		want *geom.Extent
	}{
		{"NetherlandsRDNewQuad", slippy.Tile{Z: 0, X: 0, Y: 0}, &geom.Extent{-285401.92, 22598.08, 595401.92, 903401.92}},
		{"WebMercatorQuad", slippy.Tile{Z: 1, X: 1, Y: 0}, &geom.Extent{0, 0, 20037508.3427892, 20037508.3427892}},
		{"BottomLeftDoubleHeight", slippy.Tile{Z: 0, X: 0, Y: 3}, &geom.Extent{0, 768, 256, 1024}},
		{"BottomLeftDoubleHeight", slippy.Tile{Z: 0, X: 2, Y: 0}, nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v.Extent(%v)", tt.id, tt.tile), func(t *testing.T) {
			tms := loadTestOrEmbeddedTileMatrixSet(t, tt.id)
			got, ok := tms.Extent(tt.tile)
			if tt.want == nil {
				require.False(t, ok)
				return
			}
			require.True(t, ok)
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-6)
			}
		})
	}
}

func loadTestOrEmbeddedTileMatrixSet(t *testing.T, id string) TileMatrixSet {
	t.Helper()
	tms, err := LoadJSONTileMatrixSet(filepath.Join("testdata", id+".json"))
	if err != nil {
		tms, err = LoadEmbeddedTileMatrixSet(id)
	}
	require.NoError(t, err)
	return tms
}
