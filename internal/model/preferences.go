package model

import "time"

// Preferences describe what a user is looking for in a trail. Zero values
// mean "no preference".
type Preferences struct {
	UserID            string     `json:"user_id,omitempty"`
	Lat               float64    `json:"lat" validate:"gte=-90,lte=90"`
	Lng               float64    `json:"lng" validate:"gte=-180,lte=180"`
	MaxDistanceKM     float64    `json:"max_distance_km,omitempty" validate:"gte=0"`
	Difficulty        Difficulty `json:"difficulty,omitempty" validate:"omitempty,oneof=easy moderate hard expert"`
	MinLengthKM       float64    `json:"min_length_km,omitempty" validate:"gte=0"`
	MaxLengthKM       float64    `json:"max_length_km,omitempty" validate:"omitempty,gte=0,gtefield=MinLengthKM"`
	MaxElevationGainM float64    `json:"max_elevation_gain_m,omitempty" validate:"gte=0"`
	RouteType         RouteType  `json:"route_type,omitempty" validate:"omitempty,oneof=loop out_and_back point_to_point network"`
	Tags              []string   `json:"tags,omitempty"`
	Profile           string     `json:"profile,omitempty"`
	Limit             int        `json:"limit,omitempty" validate:"gte=0,lte=1000"`
	UpdatedAt         time.Time  `json:"updated_at,omitempty"`
}
