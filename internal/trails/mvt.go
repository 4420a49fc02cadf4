package trails

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trailscout/internal/db"
)

// LayerConfig defines how a table maps to an MVT tile layer.
type LayerConfig struct {
	Table      string `json:"table"`
	GeomColumn string `json:"geom_column"`
	Columns    string `json:"columns"`
	IsPoint    bool   `json:"is_point"`
	MinZoom    int    `json:"min_zoom"`
	MaxZoom    int    `json:"max_zoom"`
}

// Layer names.
const (
	LayerTrails     = "trails"
	LayerTrailheads = "trailheads"
)

var validMVTTables = map[string]bool{
	"trails.trails": true,
}

var layerNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// DefaultLayers returns the tile layers served at /tiles.
func DefaultLayers() map[string]LayerConfig {
	return map[string]LayerConfig{
		LayerTrails: {
			Table:      "trails.trails",
			GeomColumn: "geom",
			Columns:    "id::text AS id, name, difficulty, route_type, length_km",
			MinZoom:    6,
			MaxZoom:    16,
		},
		LayerTrailheads: {
			Table:      "trails.trails",
			GeomColumn: "ST_SetSRID(ST_MakePoint(start_lng, start_lat), 4326)",
			Columns:    "id::text AS id, name, difficulty",
			IsPoint:    true,
			MinZoom:    10,
			MaxZoom:    18,
		},
	}
}

// GenerateMVT renders one tile of layer. Geometries are stored in 4326 and
// projected to web mercator for encoding.
func GenerateMVT(ctx context.Context, pool db.Pool, name string, layer LayerConfig, z, x, y int) ([]byte, error) {
	if !validMVTTables[layer.Table] {
		return nil, eris.Errorf("trails: invalid MVT table %q", layer.Table)
	}
	if !layerNameRe.MatchString(name) {
		return nil, eris.Errorf("trails: invalid MVT layer name %q", name)
	}

	sql := fmt.Sprintf(`
		SELECT ST_AsMVT(q, '%s', 4096, 'geom') FROM (
			SELECT %s,
				ST_AsMVTGeom(
					ST_Transform(%s, 3857),
					ST_TileEnvelope($1, $2, $3),
					4096, 256, true
				) AS geom
			FROM %s
			WHERE %s && ST_Transform(ST_TileEnvelope($1, $2, $3), 4326)
		) q`,
		name,
		layer.Columns,
		layer.GeomColumn,
		layer.Table,
		layer.GeomColumn,
	)

	var tile []byte
	if err := pool.QueryRow(ctx, sql, z, x, y).Scan(&tile); err != nil {
		return nil, eris.Wrap(err, "trails: generate MVT")
	}
	return tile, nil
}
