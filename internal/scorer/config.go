// Package scorer ranks candidate trails against a hiker's preferences.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trailscout/internal/config"
)

// DefaultConfig returns a config.ScorerConfig with sensible defaults.
// Weights sum to 100.
func DefaultConfig() config.ScorerConfig {
	return config.ScorerConfig{
		// Weights (sum = 100).
		DistanceWeight:   20,
		DifficultyWeight: 20,
		LengthWeight:     15,
		ElevationWeight:  10,
		RatingWeight:     15,
		TagsWeight:       10,
		RouteTypeWeight:  5,
		PopularityWeight: 5,

		// Bayesian rating prior.
		RatingPrior:       3.0,
		RatingPriorWeight: 5,

		// Thresholds.
		MinScore:             0,
		DefaultMaxDistanceKM: 50,
		DefaultLimit:         20,
		MaxLimit:             100,
		MaxCandidates:        500,
	}
}

// WeightSum returns the sum of all component weights.
func WeightSum(c config.ScorerConfig) float64 {
	return c.DistanceWeight + c.DifficultyWeight + c.LengthWeight +
		c.ElevationWeight + c.RatingWeight + c.TagsWeight +
		c.RouteTypeWeight + c.PopularityWeight
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	weights := []struct {
		name string
		w    float64
	}{
		{"distance_weight", c.DistanceWeight},
		{"difficulty_weight", c.DifficultyWeight},
		{"length_weight", c.LengthWeight},
		{"elevation_weight", c.ElevationWeight},
		{"rating_weight", c.RatingWeight},
		{"tags_weight", c.TagsWeight},
		{"route_type_weight", c.RouteTypeWeight},
		{"popularity_weight", c.PopularityWeight},
	}
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	// Allow tolerance for floating-point.
	sum := WeightSum(c)
	if math.Abs(sum-100) > 1 {
		errs = append(errs, fmt.Sprintf("weights should sum to 100, got %.1f", sum))
	}

	if c.MinScore < 0 || c.MinScore > 100 {
		errs = append(errs, "min_score must be between 0 and 100")
	}
	if c.DefaultMaxDistanceKM <= 0 {
		errs = append(errs, "default_max_distance_km must be > 0")
	}
	if c.RatingPrior < 1 || c.RatingPrior > 5 {
		errs = append(errs, "rating_prior must be between 1 and 5")
	}
	if c.RatingPriorWeight < 0 {
		errs = append(errs, "rating_prior_weight must be >= 0")
	}
	if c.DefaultLimit < 0 || c.MaxLimit < 0 {
		errs = append(errs, "limits must be >= 0")
	}
	if c.MaxLimit > 0 && c.DefaultLimit > c.MaxLimit {
		errs = append(errs, "default_limit must be <= max_limit")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
