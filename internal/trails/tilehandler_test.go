package trails

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trailscout/internal/geo"
)

func serveTile(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTileHandler_BadRequests(t *testing.T) {
	h := NewTileHandler(newMock(t), DefaultLayers(), nil)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"too few parts", "/tiles/trails/1/2", http.StatusBadRequest},
		{"missing extension", "/tiles/trails/1/0/0.png", http.StatusBadRequest},
		{"unknown layer", "/tiles/roads/10/1/1.pbf", http.StatusNotFound},
		{"non-numeric", "/tiles/trails/ten/1/1.pbf", http.StatusBadRequest},
		{"x outside grid", "/tiles/trails/2/4/0.pbf", http.StatusBadRequest},
		{"negative y", "/tiles/trails/2/0/-1.pbf", http.StatusBadRequest},
		{"below min zoom", "/tiles/trails/3/0/0.pbf", http.StatusNoContent},
		{"above max zoom", "/tiles/trails/17/0/0.pbf", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveTile(h, tt.path)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestTileHandler_GeneratesAndCaches(t *testing.T) {
	mock := newMock(t)
	cache := NewTileCache(16, time.Minute)
	h := NewTileHandler(mock, DefaultLayers(), cache)
	tile := []byte{0x1a, 0x01}

	mock.ExpectQuery(`ST_AsMVT\(q, 'trails'`).
		WithArgs(10, 275, 400).
		WillReturnRows(pgxmock.NewRows([]string{"st_asmvt"}).AddRow(tile))

	rec := serveTile(h, "/tiles/trails/10/275/400.pbf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))
	assert.Equal(t, "application/vnd.mapbox-vector-tile", rec.Header().Get("Content-Type"))
	assert.Equal(t, tile, rec.Body.Bytes())

	// Second request is served from cache without touching the database.
	rec = serveTile(h, "/tiles/trails/10/275/400.pbf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
	assert.Equal(t, tile, rec.Body.Bytes())

	assert.NoError(t, mock.ExpectationsWereMet())

	h.InvalidateArea(LayerTrails, geo.TileBBox(10, 275, 400))
	assert.Zero(t, cache.Len())
}

func TestTileHandler_DatabaseError(t *testing.T) {
	mock := newMock(t)
	h := NewTileHandler(mock, DefaultLayers(), nil)

	mock.ExpectQuery(`ST_AsMVT`).WillReturnError(errTest)

	rec := serveTile(h, "/tiles/trailheads/12/100/100.pbf")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTileHandler_InvalidateWithoutCache(t *testing.T) {
	h := NewTileHandler(newMock(t), DefaultLayers(), nil)
	assert.NotPanics(t, func() {
		h.InvalidateArea(LayerTrails, geo.BBox{MinLng: -84, MinLat: 35, MaxLng: -83, MaxLat: 36})
	})
}

func TestValidTile(t *testing.T) {
	assert.True(t, validTile(0, 0, 0))
	assert.False(t, validTile(0, 1, 0))
	assert.True(t, validTile(3, 7, 7))
	assert.False(t, validTile(3, 8, 7))
	assert.False(t, validTile(25, 0, 0))
	assert.False(t, validTile(-1, 0, 0))
}
