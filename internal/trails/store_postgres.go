package trails

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/trailscout/internal/db"
	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/model"
)

// trailColumns are the write columns for UpsertTrails, in row order.
var trailColumns = []string{
	"name", "search_key", "source", "source_id", "difficulty", "route_type",
	"length_km", "elevation_gain_m", "elevation_loss_m", "start_lat", "start_lng",
	"surface", "tags", "geom", "properties",
}

const selectTrail = `
	SELECT id::text, name, source, source_id, difficulty, route_type,
	       length_km, elevation_gain_m, elevation_loss_m, start_lat, start_lng,
	       ST_XMin(geom), ST_YMin(geom), ST_XMax(geom), ST_YMax(geom),
	       surface, tags, properties, created_at, updated_at`

// PostgresStore implements Store on PostGIS.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// UpsertTrails implements Store.
func (s *PostgresStore) UpsertTrails(ctx context.Context, trails []model.Trail) (int64, error) {
	rows := make([][]any, 0, len(trails))
	for _, t := range trails {
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		rows = append(rows, []any{
			t.Name, model.SearchKey(t.Name), t.Source, t.SourceID,
			string(t.Difficulty), string(t.RouteType),
			t.LengthKM, t.ElevationGainM, t.ElevationLossM, t.StartLat, t.StartLng,
			t.Surface, tags, t.Geometry, normalizeProperties(t.Properties),
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:         "trails.trails",
		Columns:       trailColumns,
		ConflictKeys:  []string{"source", "source_id"},
		Touch:         "updated_at",
		SkipUnchanged: true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "trails: upsert trails")
	}
	return n, nil
}

// GetTrail implements Store.
func (s *PostgresStore) GetTrail(ctx context.Context, id string) (*model.Trail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	sql := selectTrail + `, ST_AsGeoJSON(geom, 6)
		FROM trails.trails WHERE id = $1`

	var t model.Trail
	var geojson []byte
	sc := newTrailScan(&t)
	if err := s.pool.QueryRow(ctx, sql, id).Scan(append(sc.dest(), &geojson)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "trails: get trail")
	}
	sc.finish()
	t.GeoJSON = json.RawMessage(geojson)
	return &t, nil
}

// ListInBBox implements Store.
func (s *PostgresStore) ListInBBox(ctx context.Context, bbox geo.BBox, limit, offset int) ([]model.Trail, error) {
	sql := selectTrail + `
		FROM trails.trails
		WHERE geom && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY name, id
		LIMIT $5 OFFSET $6`
	rows, err := s.pool.Query(ctx, sql, bbox.MinLng, bbox.MinLat, bbox.MaxLng, bbox.MaxLat, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "trails: list in bbox")
	}
	return collectTrails(rows)
}

// Nearby implements Store.
func (s *PostgresStore) Nearby(ctx context.Context, lat, lng, radiusKM float64, limit int) ([]model.Trail, error) {
	sql := selectTrail + `
		FROM trails.trails
		WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY geom <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)
		LIMIT $4`
	rows, err := s.pool.Query(ctx, sql, lng, lat, radiusKM*1000, limit)
	if err != nil {
		return nil, eris.Wrap(err, "trails: nearby")
	}
	return collectTrails(rows)
}

// Search implements Store.
func (s *PostgresStore) Search(ctx context.Context, query string, limit int) ([]model.Trail, error) {
	key := model.SearchKey(query)
	if key == "" {
		return nil, nil
	}
	sql := selectTrail + `
		FROM trails.trails
		WHERE search_key LIKE '%' || $1 || '%'
		ORDER BY (search_key LIKE $1 || '%') DESC, length(name), name, id
		LIMIT $2`
	rows, err := s.pool.Query(ctx, sql, escapeLike(key), limit)
	if err != nil {
		return nil, eris.Wrap(err, "trails: search")
	}
	return collectTrails(rows)
}

// AddReview implements Store.
func (s *PostgresStore) AddReview(ctx context.Context, r *model.Review) error {
	if r.Rating < 1 || r.Rating > 5 {
		return eris.Errorf("trails: rating %d must be between 1 and 5", r.Rating)
	}
	if _, err := uuid.Parse(r.TrailID); err != nil {
		return ErrNotFound
	}

	sql := `
		INSERT INTO trails.reviews (trail_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (trail_id, user_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			comment = EXCLUDED.comment,
			created_at = now()
		RETURNING id::text, created_at`
	err := s.pool.QueryRow(ctx, sql, r.TrailID, r.UserID, r.Rating, r.Comment).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return eris.Wrap(err, "trails: add review")
	}
	return nil
}

// ListReviews implements Store.
func (s *PostgresStore) ListReviews(ctx context.Context, trailID string, limit, offset int) ([]model.Review, error) {
	if _, err := uuid.Parse(trailID); err != nil {
		return nil, ErrNotFound
	}
	sql := `
		SELECT id::text, trail_id::text, user_id, rating, comment, created_at
		FROM trails.reviews
		WHERE trail_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, sql, trailID, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "trails: list reviews")
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.TrailID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "trails: scan review row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RatingSummaries implements Store.
func (s *PostgresStore) RatingSummaries(ctx context.Context, ids []string) (map[string]model.RatingSummary, error) {
	out := make(map[string]model.RatingSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	sql := `
		SELECT trail_id::text, count(*), avg(rating)::float8
		FROM trails.reviews
		WHERE trail_id = ANY($1::uuid[])
		GROUP BY trail_id`
	rows, err := s.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, eris.Wrap(err, "trails: rating summaries")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int64
		var avg float64
		if err := rows.Scan(&id, &count, &avg); err != nil {
			return nil, eris.Wrap(err, "trails: scan rating row")
		}
		out[id] = model.RatingSummary{TrailID: id, Count: int(count), Average: avg}
	}
	return out, rows.Err()
}

// GetPreferences implements Store.
func (s *PostgresStore) GetPreferences(ctx context.Context, userID string) (*model.Preferences, error) {
	var data []byte
	var p model.Preferences
	err := s.pool.QueryRow(ctx,
		"SELECT data, updated_at FROM trails.preferences WHERE user_id = $1", userID,
	).Scan(&data, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "trails: get preferences")
	}
	updated := p.UpdatedAt
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "trails: decode preferences")
	}
	p.UserID = userID
	p.UpdatedAt = updated
	return &p, nil
}

// UpsertPreferences implements Store.
func (s *PostgresStore) UpsertPreferences(ctx context.Context, p *model.Preferences) error {
	if p.UserID == "" {
		return eris.New("trails: preferences require a user id")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "trails: encode preferences")
	}
	sql := `
		INSERT INTO trails.preferences (user_id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = now()
		RETURNING updated_at`
	if err := s.pool.QueryRow(ctx, sql, p.UserID, data).Scan(&p.UpdatedAt); err != nil {
		return eris.Wrap(err, "trails: upsert preferences")
	}
	return nil
}

// trailScan holds scan targets for columns that need conversion.
type trailScan struct {
	t          *model.Trail
	difficulty string
	routeType  string
	properties []byte
}

func newTrailScan(t *model.Trail) *trailScan {
	return &trailScan{t: t}
}

func (sc *trailScan) dest() []any {
	t := sc.t
	return []any{
		&t.ID, &t.Name, &t.Source, &t.SourceID, &sc.difficulty, &sc.routeType,
		&t.LengthKM, &t.ElevationGainM, &t.ElevationLossM, &t.StartLat, &t.StartLng,
		&t.BBox.MinLng, &t.BBox.MinLat, &t.BBox.MaxLng, &t.BBox.MaxLat,
		&t.Surface, &t.Tags, &sc.properties, &t.CreatedAt, &t.UpdatedAt,
	}
}

func (sc *trailScan) finish() {
	sc.t.Difficulty = model.Difficulty(sc.difficulty)
	sc.t.RouteType = model.RouteType(sc.routeType)
	sc.t.SearchKey = model.SearchKey(sc.t.Name)
	if len(sc.properties) > 0 {
		sc.t.Properties = json.RawMessage(sc.properties)
	}
}

func collectTrails(rows pgx.Rows) ([]model.Trail, error) {
	defer rows.Close()

	var out []model.Trail
	for rows.Next() {
		var t model.Trail
		sc := newTrailScan(&t)
		if err := rows.Scan(sc.dest()...); err != nil {
			return nil, eris.Wrap(err, "trails: scan trail row")
		}
		sc.finish()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "trails: iterate trail rows")
	}
	return out, nil
}

// normalizeProperties returns valid JSON for the properties column.
func normalizeProperties(p json.RawMessage) []byte {
	if len(p) == 0 || !json.Valid(p) {
		return []byte("{}")
	}
	return p
}

// escapeLike escapes LIKE wildcards in s.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
