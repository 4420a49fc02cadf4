package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trailscout/internal/geo"
)

// Difficulty is a normalized trail difficulty grade.
type Difficulty string

const (
	DifficultyUnknown  Difficulty = ""
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
	DifficultyExpert   Difficulty = "expert"
)

// Rank orders difficulties from 1 (easy) to 4 (expert). Unknown is 0.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyModerate:
		return 2
	case DifficultyHard:
		return 3
	case DifficultyExpert:
		return 4
	default:
		return 0
	}
}

// Valid reports whether d is a known grade or unknown.
func (d Difficulty) Valid() bool {
	return d == DifficultyUnknown || d.Rank() > 0
}

// ParseDifficulty parses a difficulty name, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return DifficultyUnknown, eris.Errorf("model: unknown difficulty %q", s)
	}
	return d, nil
}

// RouteType describes the shape of a trail.
type RouteType string

const (
	RouteTypeUnknown      RouteType = ""
	RouteTypeLoop         RouteType = "loop"
	RouteTypeOutAndBack   RouteType = "out_and_back"
	RouteTypePointToPoint RouteType = "point_to_point"
	RouteTypeNetwork      RouteType = "network"
)

// Valid reports whether r is a known route type or unknown.
func (r RouteType) Valid() bool {
	switch r {
	case RouteTypeUnknown, RouteTypeLoop, RouteTypeOutAndBack, RouteTypePointToPoint, RouteTypeNetwork:
		return true
	}
	return false
}

// ParseRouteType parses a route type name, case-insensitively.
func ParseRouteType(s string) (RouteType, error) {
	r := RouteType(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return RouteTypeUnknown, eris.Errorf("model: unknown route type %q", s)
	}
	return r, nil
}

// Trail sources.
const (
	SourceOSM       = "osm"
	SourceShapefile = "shapefile"
)

// Trail is a hiking trail with its geometry and derived attributes.
type Trail struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	SearchKey      string          `json:"-"`
	Source         string          `json:"source"`
	SourceID       string          `json:"source_id"`
	Difficulty     Difficulty      `json:"difficulty,omitempty"`
	RouteType      RouteType       `json:"route_type,omitempty"`
	LengthKM       float64         `json:"length_km"`
	ElevationGainM *float64        `json:"elevation_gain_m,omitempty"`
	ElevationLossM *float64        `json:"elevation_loss_m,omitempty"`
	StartLat       float64         `json:"start_lat"`
	StartLng       float64         `json:"start_lng"`
	BBox           geo.BBox        `json:"bbox"`
	Surface        string          `json:"surface,omitempty"`
	Tags           []string        `json:"tags"`
	Geometry       []byte          `json:"-"` // EWKB MultiLineString, SRID 4326
	GeoJSON        json.RawMessage `json:"geometry,omitempty"`
	Properties     json.RawMessage `json:"properties,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// HasTag reports whether the trail carries tag.
func (t *Trail) HasTag(tag string) bool {
	for _, x := range t.Tags {
		if x == tag {
			return true
		}
	}
	return false
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
