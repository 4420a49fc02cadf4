package scorer

import (
	"math"
	"sort"

	"github.com/sells-group/trailscout/internal/config"
	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/model"
)

// Candidate is a trail under consideration together with its review stats.
type Candidate struct {
	Trail  model.Trail
	Rating model.RatingSummary
}

// Breakdown holds the per-component sub-scores of a Result, each in [0,1].
type Breakdown struct {
	Distance   float64 `json:"distance"`
	Difficulty float64 `json:"difficulty"`
	Length     float64 `json:"length"`
	Elevation  float64 `json:"elevation"`
	Rating     float64 `json:"rating"`
	Tags       float64 `json:"tags"`
	RouteType  float64 `json:"route_type"`
	Popularity float64 `json:"popularity"`
}

// Result is a scored trail.
type Result struct {
	Trail      model.Trail         `json:"trail"`
	Score      float64             `json:"score"`
	DistanceKM float64             `json:"distance_km"`
	Rating     model.RatingSummary `json:"rating"`
	Breakdown  Breakdown           `json:"breakdown"`
}

// Scorer computes weighted recommendation scores.
type Scorer struct {
	cfg config.ScorerConfig
}

// New creates a Scorer using cfg. Callers should validate cfg first.
func New(cfg config.ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() config.ScorerConfig {
	return s.cfg
}

// MaxDistance returns the effective search radius for p in km.
func (s *Scorer) MaxDistance(p *model.Preferences) float64 {
	if p.MaxDistanceKM > 0 {
		return p.MaxDistanceKM
	}
	return s.cfg.DefaultMaxDistanceKM
}

// Limit returns the effective result count for a requested limit.
func (s *Scorer) Limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	return limit
}

// Score computes the score for a single candidate. maxCount is the largest
// review count among all candidates and drives the popularity component.
// ok is false when the trail lies beyond the search radius.
func (s *Scorer) Score(p *model.Preferences, c Candidate, maxCount int) (Result, bool) {
	t := c.Trail
	maxDist := s.MaxDistance(p)
	d := geo.Haversine(p.Lat, p.Lng, t.StartLat, t.StartLng)
	if d > maxDist {
		return Result{}, false
	}

	b := Breakdown{
		Distance:   scoreDistance(d, maxDist),
		Difficulty: scoreDifficulty(p.Difficulty, t.Difficulty),
		Length:     scoreLength(t.LengthKM, p.MinLengthKM, p.MaxLengthKM),
		Elevation:  scoreElevation(t.ElevationGainM, p.MaxElevationGainM),
		Rating:     scoreRating(c.Rating, s.cfg.RatingPrior, s.cfg.RatingPriorWeight),
		Tags:       scoreTags(p.Tags, t.Tags),
		RouteType:  scoreRouteType(p.RouteType, t.RouteType),
		Popularity: scorePopularity(c.Rating.Count, maxCount),
	}

	total := b.Distance*s.cfg.DistanceWeight +
		b.Difficulty*s.cfg.DifficultyWeight +
		b.Length*s.cfg.LengthWeight +
		b.Elevation*s.cfg.ElevationWeight +
		b.Rating*s.cfg.RatingWeight +
		b.Tags*s.cfg.TagsWeight +
		b.RouteType*s.cfg.RouteTypeWeight +
		b.Popularity*s.cfg.PopularityWeight

	// Normalize to 0-100 scale.
	if sum := WeightSum(s.cfg); sum > 0 {
		total = total / sum * 100
	}

	return Result{
		Trail:      t,
		Score:      round2(clamp(total, 0, 100)),
		DistanceKM: round2(d),
		Rating:     c.Rating,
		Breakdown:  b,
	}, true
}

// Rank scores every candidate, drops those outside the radius or below
// min_score, and returns the best first, truncated to the effective limit.
func (s *Scorer) Rank(p *model.Preferences, candidates []Candidate) []Result {
	maxCount := 0
	for _, c := range candidates {
		if c.Rating.Count > maxCount {
			maxCount = c.Rating.Count
		}
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		r, ok := s.Score(p, c, maxCount)
		if !ok || r.Score < s.cfg.MinScore {
			continue
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DistanceKM != b.DistanceKM {
			return a.DistanceKM < b.DistanceKM
		}
		return a.Trail.ID < b.Trail.ID
	})

	if limit := s.Limit(p.Limit); limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func scoreDistance(d, maxDist float64) float64 {
	if maxDist <= 0 {
		return 1
	}
	return clamp(1-d/maxDist, 0, 1)
}

func scoreDifficulty(want, have model.Difficulty) float64 {
	if want == "" {
		return 1
	}
	if have == "" {
		return 0.5
	}
	switch diff := want.Rank() - have.Rank(); {
	case diff == 0:
		return 1
	case diff == 1 || diff == -1:
		return 0.5
	default:
		return 0
	}
}

func scoreLength(length, minKM, maxKM float64) float64 {
	switch {
	case minKM > 0 && length < minKM:
		return clamp(length/minKM, 0, 1)
	case maxKM > 0 && length > maxKM:
		return clamp(maxKM/length, 0, 1)
	default:
		return 1
	}
}

func scoreElevation(gain *float64, maxGain float64) float64 {
	if maxGain <= 0 {
		return 1
	}
	if gain == nil {
		return 0.5
	}
	if *gain <= maxGain {
		return 1
	}
	return clamp(maxGain / *gain, 0, 1)
}

// scoreRating maps the Bayesian mean rating onto [0,1].
func scoreRating(r model.RatingSummary, prior, priorWeight float64) float64 {
	n := float64(r.Count)
	if priorWeight+n == 0 {
		return clamp((prior-1)/4, 0, 1)
	}
	mean := (priorWeight*prior + r.Sum()) / (priorWeight + n)
	return clamp((mean-1)/4, 0, 1)
}

// scoreTags is the Jaccard similarity of the preferred and trail tag sets.
func scoreTags(want, have []string) float64 {
	if len(want) == 0 {
		return 1
	}
	a := make(map[string]bool, len(want))
	for _, t := range want {
		a[t] = true
	}
	union := len(a)
	inter := 0
	seen := make(map[string]bool, len(have))
	for _, t := range have {
		if seen[t] {
			continue
		}
		seen[t] = true
		if a[t] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func scoreRouteType(want, have model.RouteType) float64 {
	if want == "" || want == have {
		return 1
	}
	return 0
}

func scorePopularity(count, maxCount int) float64 {
	if maxCount <= 0 {
		return 0
	}
	return clamp(math.Log1p(float64(count))/math.Log1p(float64(maxCount)), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
