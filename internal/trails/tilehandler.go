package trails

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/db"
	"github.com/sells-group/trailscout/internal/geo"
)

// TileHandler serves MVT vector tiles at /tiles/{layer}/{z}/{x}/{y}.pbf.
type TileHandler struct {
	pool   db.Pool
	layers map[string]LayerConfig
	cache  *TileCache
}

// NewTileHandler creates a tile handler. cache may be nil.
func NewTileHandler(pool db.Pool, layers map[string]LayerConfig, cache *TileCache) *TileHandler {
	return &TileHandler{
		pool:   pool,
		layers: layers,
		cache:  cache,
	}
}

// ServeHTTP implements http.Handler.
func (h *TileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tiles/")
	parts := strings.Split(path, "/")
	if len(parts) != 4 || !strings.HasSuffix(parts[3], ".pbf") {
		http.Error(w, "invalid tile path", http.StatusBadRequest)
		return
	}

	name := parts[0]
	layer, ok := h.layers[name]
	if !ok {
		http.Error(w, "unknown layer", http.StatusNotFound)
		return
	}

	z, zerr := strconv.Atoi(parts[1])
	x, xerr := strconv.Atoi(parts[2])
	y, yerr := strconv.Atoi(strings.TrimSuffix(parts[3], ".pbf"))
	if zerr != nil || xerr != nil || yerr != nil || !validTile(z, x, y) {
		http.Error(w, "invalid tile coordinates", http.StatusBadRequest)
		return
	}

	if z < layer.MinZoom || z > layer.MaxZoom {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if h.cache != nil {
		if cached := h.cache.Get(name, z, x, y); cached != nil {
			writeTile(w, cached, "hit")
			return
		}
	}

	tile, err := GenerateMVT(r.Context(), h.pool, name, layer, z, x, y)
	if err != nil {
		zap.L().Error("trails: tile generation failed",
			zap.String("layer", name),
			zap.Int("z", z), zap.Int("x", x), zap.Int("y", y),
			zap.Error(err),
		)
		http.Error(w, "tile generation failed", http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		h.cache.Put(name, z, x, y, tile)
	}
	writeTile(w, tile, "miss")
}

// InvalidateArea drops cached tiles of layer overlapping area. It is safe to
// call with caching disabled.
func (h *TileHandler) InvalidateArea(layer string, area geo.BBox) {
	if h.cache != nil {
		h.cache.InvalidateArea(layer, area)
	}
}

func writeTile(w http.ResponseWriter, tile []byte, cache string) {
	w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
	w.Header().Set("X-Cache", cache)
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(tile)
}

// validTile checks x and y against the 2^z grid.
func validTile(z, x, y int) bool {
	if z < 0 || z > 24 || x < 0 || y < 0 {
		return false
	}
	n := 1 << z
	return x < n && y < n
}
