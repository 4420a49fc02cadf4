package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestHaversine(t *testing.T) {
	// Austin to Dallas is roughly 290km.
	d := Haversine(30.2672, -97.7431, 32.7767, -96.7970)
	assert.InDelta(t, 290, d, 10)

	assert.InDelta(t, 0, Haversine(30, -97, 30, -97), 1e-9)

	// One degree of latitude is ~111.19km.
	assert.InDelta(t, 111.19, Haversine(0, 0, 1, 0), 0.05)
}

func TestLineLengthKM(t *testing.T) {
	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 1, 0, 2})
	assert.InDelta(t, 222.39, LineLengthKM(ls), 0.1)
	assert.Zero(t, LineLengthKM(nil))
}

func TestMultiLineLengthKM(t *testing.T) {
	mls := geom.NewMultiLineString(geom.XY)
	require.NoError(t, mls.Push(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 1})))
	require.NoError(t, mls.Push(geom.NewLineStringFlat(geom.XY, []float64{5, 0, 5, 1})))
	assert.InDelta(t, 222.39, MultiLineLengthKM(mls), 0.1)
	assert.Zero(t, MultiLineLengthKM(nil))
}

func TestParseBBox(t *testing.T) {
	b, err := ParseBBox("-84.0, 35.4, -83.0, 35.8")
	require.NoError(t, err)
	assert.Equal(t, BBox{MinLng: -84, MinLat: 35.4, MaxLng: -83, MaxLat: 35.8}, b)
	assert.Equal(t, "-84,35.4,-83,35.8", b.String())
	assert.Equal(t, "35.4,-84,35.8,-83", b.Overpass())
}

func TestParseBBox_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"too few", "1,2,3", "4 comma-separated"},
		{"not a number", "a,2,3,4", "parse bbox value"},
		{"inverted lng", "10,0,5,1", "min_lng must be < max_lng"},
		{"inverted lat", "0,10,1,5", "min_lat must be < max_lat"},
		{"out of range", "-200,0,1,1", "longitude must be within"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBBox(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBBoxContainsAndCenter(t *testing.T) {
	b := BBox{MinLng: 0, MinLat: 0, MaxLng: 2, MaxLat: 4}
	assert.True(t, b.Contains(1, 1))
	assert.True(t, b.Contains(4, 2))
	assert.False(t, b.Contains(5, 1))

	lat, lng := b.Center()
	assert.InDelta(t, 2, lat, 1e-9)
	assert.InDelta(t, 1, lng, 1e-9)
}

func TestBBoxOf(t *testing.T) {
	ls := geom.NewLineStringFlat(geom.XY, []float64{-1, 2, 3, -4})
	assert.Equal(t, BBox{MinLng: -1, MinLat: -4, MaxLng: 3, MaxLat: 2}, BBoxOf(ls))
	assert.Equal(t, BBox{}, BBoxOf(geom.NewMultiLineString(geom.XY)))
}

func TestTiles(t *testing.T) {
	b := BBox{MinLng: 0, MinLat: 0, MaxLng: 1.2, MaxLat: 0.8}
	tiles := Tiles(b, 0.5)
	require.Len(t, tiles, 6)

	// Row-major from the south-west corner.
	assert.Equal(t, BBox{MinLng: 0, MinLat: 0, MaxLng: 0.5, MaxLat: 0.5}, tiles[0])
	assert.Equal(t, BBox{MinLng: 0.5, MinLat: 0, MaxLng: 1, MaxLat: 0.5}, tiles[1])
	assert.InDelta(t, 1.2, tiles[2].MaxLng, 1e-9)
	assert.InDelta(t, 0.5, tiles[3].MinLat, 1e-9)
	assert.InDelta(t, 0.8, tiles[5].MaxLat, 1e-9)
}

func TestTiles_ExactMultipleHasNoSlivers(t *testing.T) {
	tests := []struct {
		name string
		b    BBox
		size float64
		want int
	}{
		{"one cell", BBox{MinLng: 1, MinLat: 1, MaxLng: 1.1, MaxLat: 1.1}, 0.1, 1},
		{"three by three", BBox{MinLng: 0, MinLat: 0, MaxLng: 0.3, MaxLat: 0.3}, 0.1, 9},
		{"smokies quarter degrees", BBox{MinLng: -84, MinLat: 35.4, MaxLng: -83.5, MaxLat: 35.9}, 0.25, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiles := Tiles(tt.b, tt.size)
			require.Len(t, tiles, tt.want)
			for _, tile := range tiles {
				assert.NoError(t, tile.Validate(), "tile %s", tile)
			}
			last := tiles[len(tiles)-1]
			assert.InDelta(t, tt.b.MaxLng, last.MaxLng, 1e-9)
			assert.InDelta(t, tt.b.MaxLat, last.MaxLat, 1e-9)
		})
	}
}

func TestTiles_NoSplit(t *testing.T) {
	b := BBox{MinLng: 0, MinLat: 0, MaxLng: 1, MaxLat: 1}
	assert.Equal(t, []BBox{b}, Tiles(b, 0))
	assert.Equal(t, []BBox{b}, Tiles(b, 5))
}

func TestSample(t *testing.T) {
	// ~11.1km north-south line.
	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 0.1})

	pts := Sample(ls, 1000, 0)
	require.Len(t, pts, 13)
	assert.Equal(t, Point{Lat: 0, Lng: 0}, pts[0])
	assert.Equal(t, Point{Lat: 0.1, Lng: 0}, pts[len(pts)-1])
	assert.InDelta(t, 0.008993, pts[1].Lat, 1e-4)
}

func TestSample_Downsample(t *testing.T) {
	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 0.1})
	pts := Sample(ls, 100, 5)
	require.Len(t, pts, 5)
	assert.Equal(t, Point{Lat: 0, Lng: 0}, pts[0])
	assert.Equal(t, Point{Lat: 0.1, Lng: 0}, pts[4])
}

func TestSample_Endpoints(t *testing.T) {
	ls := geom.NewLineStringFlat(geom.XY, []float64{1, 1, 1.0001, 1})
	pts := Sample(ls, 1000, 0)
	require.Len(t, pts, 2)
	assert.Equal(t, Point{Lat: 1, Lng: 1}, pts[0])
	assert.Equal(t, Point{Lat: 1, Lng: 1.0001}, pts[1])

	assert.Nil(t, Sample(nil, 100, 0))
}

func TestNewMultiLineAndEWKB(t *testing.T) {
	chains := [][]geom.Coord{
		{{0, 0}, {0, 1}},
		{{1, 1}},
		{{2, 2}, {2, 3}, {2, 4}},
	}
	mls, err := NewMultiLine(chains)
	require.NoError(t, err)
	assert.Equal(t, 2, mls.NumLineStrings())
	assert.Equal(t, SRID, mls.SRID())

	data, err := EncodeEWKB(mls)
	require.NoError(t, err)
	// Little-endian byte order marker.
	assert.Equal(t, byte(1), data[0])

	back, err := DecodeMultiLine(data)
	require.NoError(t, err)
	assert.Equal(t, 2, back.NumLineStrings())
	assert.Equal(t, SRID, back.SRID())
	assert.Equal(t, 3, Longest(back).NumCoords())
}

func TestDecodeMultiLine_PromotesLineString(t *testing.T) {
	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}).SetSRID(SRID)
	data, err := EncodeEWKB(ls)
	require.NoError(t, err)

	mls, err := DecodeMultiLine(data)
	require.NoError(t, err)
	assert.Equal(t, 1, mls.NumLineStrings())
}

func TestDecodeMultiLine_Errors(t *testing.T) {
	_, err := DecodeMultiLine([]byte{0x01, 0x02})
	assert.Error(t, err)

	pt, err := EncodeEWKB(geom.NewPointFlat(geom.XY, []float64{1, 2}).SetSRID(SRID))
	require.NoError(t, err)
	_, err = DecodeMultiLine(pt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported geometry")
}

func TestLongest_Empty(t *testing.T) {
	assert.Nil(t, Longest(geom.NewMultiLineString(geom.XY)))
}

func TestBBoxIntersectsAndUnion(t *testing.T) {
	a := BBox{MinLng: -84, MinLat: 35, MaxLng: -83, MaxLat: 36}
	b := BBox{MinLng: -83, MinLat: 35.5, MaxLng: -82, MaxLat: 37}
	c := BBox{MinLng: -81, MinLat: 35, MaxLng: -80, MaxLat: 36}

	assert.True(t, a.Intersects(b), "shared edge counts")
	assert.False(t, a.Intersects(c))
	assert.Equal(t, BBox{MinLng: -84, MinLat: 35, MaxLng: -82, MaxLat: 37}, a.Union(b))
}

func TestTileBBox(t *testing.T) {
	world := TileBBox(0, 0, 0)
	assert.InDelta(t, -180, world.MinLng, 1e-9)
	assert.InDelta(t, 180, world.MaxLng, 1e-9)
	assert.InDelta(t, 85.0511, world.MaxLat, 1e-4)
	assert.InDelta(t, -85.0511, world.MinLat, 1e-4)

	// Zoom 10 tile over the Smokies.
	tile := TileBBox(10, 274, 403)
	assert.True(t, tile.Contains(35.6, -83.5))
	assert.InDelta(t, 360.0/1024, tile.MaxLng-tile.MinLng, 1e-9)
}
