// Package trails persists trails, reviews and user preferences in PostGIS and
// serves them as vector tiles.
package trails

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/model"
)

// ErrNotFound is returned when a trail or stored preference does not exist.
var ErrNotFound = eris.New("trails: not found")

// Store reads and writes trail data.
type Store interface {
	// UpsertTrails inserts or updates trails keyed on (source, source_id).
	UpsertTrails(ctx context.Context, trails []model.Trail) (int64, error)

	// GetTrail returns a trail with its GeoJSON geometry.
	GetTrail(ctx context.Context, id string) (*model.Trail, error)

	// ListInBBox returns trails intersecting bbox, ordered by name.
	ListInBBox(ctx context.Context, bbox geo.BBox, limit, offset int) ([]model.Trail, error)

	// Nearby returns trails within radiusKM of a point, nearest first.
	Nearby(ctx context.Context, lat, lng, radiusKM float64, limit int) ([]model.Trail, error)

	// Search matches trail names by folded prefix or substring.
	Search(ctx context.Context, query string, limit int) ([]model.Trail, error)

	// AddReview stores a user's review, replacing any earlier one for the trail.
	AddReview(ctx context.Context, r *model.Review) error

	// ListReviews returns a trail's reviews, newest first.
	ListReviews(ctx context.Context, trailID string, limit, offset int) ([]model.Review, error)

	// RatingSummaries aggregates reviews for the given trail IDs.
	RatingSummaries(ctx context.Context, ids []string) (map[string]model.RatingSummary, error)

	// GetPreferences returns a user's stored preferences.
	GetPreferences(ctx context.Context, userID string) (*model.Preferences, error)

	// UpsertPreferences stores a user's preferences.
	UpsertPreferences(ctx context.Context, p *model.Preferences) error
}
