// Package recommend turns a user's preferences into a ranked list of nearby
// trails.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/metrics"
	"github.com/sells-group/trailscout/internal/model"
	"github.com/sells-group/trailscout/internal/scorer"
	"github.com/sells-group/trailscout/internal/trails"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidationError lists every problem found in a set of preferences.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "recommend: invalid preferences: " + strings.Join(e.Problems, "; ")
}

// ValidatePreferences checks coordinate ranges, non-negative limits, the
// length range, and that difficulty and route type are known values.
func ValidatePreferences(p *model.Preferences) error {
	err := getValidator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "recommend: validate preferences")
	}
	ve := &ValidationError{}
	for _, fe := range verrs {
		ve.Problems = append(ve.Problems, describe(fe))
	}
	return ve
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// Response is the outcome of a recommendation request.
type Response struct {
	Profile    string          `json:"profile"`
	Candidates int             `json:"candidates"`
	Results    []scorer.Result `json:"results"`
}

// Service produces trail recommendations.
type Service struct {
	store    trails.Store
	profiles *scorer.Profiles
}

// NewService creates a recommendation service. profiles select scoring
// weights per request.
func NewService(store trails.Store, profiles *scorer.Profiles) *Service {
	return &Service{store: store, profiles: profiles}
}

// Recommend validates p, loads candidates within the search radius, and
// ranks them.
func (s *Service) Recommend(ctx context.Context, p *model.Preferences) (*Response, error) {
	start := time.Now()
	defer func() { metrics.ObserveRecommendation(time.Since(start)) }()

	if err := ValidatePreferences(p); err != nil {
		return nil, err
	}

	cfg, err := s.profiles.Resolve(p.Profile)
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	sc := scorer.New(cfg)

	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 500
	}
	cands, err := s.store.Nearby(ctx, p.Lat, p.Lng, sc.MaxDistance(p), maxCandidates)
	if err != nil {
		return nil, eris.Wrap(err, "recommend: load candidates")
	}

	ids := make([]string, len(cands))
	for i := range cands {
		ids[i] = cands[i].ID
	}
	ratings, err := s.store.RatingSummaries(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "recommend: load ratings")
	}

	scored := make([]scorer.Candidate, len(cands))
	for i, t := range cands {
		r := ratings[t.ID]
		r.TrailID = t.ID
		scored[i] = scorer.Candidate{Trail: t, Rating: r}
	}

	results := sc.Rank(p, scored)

	profile := p.Profile
	if profile == "" {
		profile = scorer.DefaultProfile
	}
	zap.L().Debug("recommend: ranked trails",
		zap.String("profile", profile),
		zap.Int("candidates", len(cands)),
		zap.Int("results", len(results)),
	)

	return &Response{Profile: profile, Candidates: len(cands), Results: results}, nil
}

// ForUser recommends using the user's stored preferences, located at
// lat/lng. Users without stored preferences get the defaults.
func (s *Service) ForUser(ctx context.Context, userID string, lat, lng float64) (*Response, error) {
	p, err := s.store.GetPreferences(ctx, userID)
	switch {
	case errors.Is(err, trails.ErrNotFound):
		p = &model.Preferences{UserID: userID}
	case err != nil:
		return nil, eris.Wrap(err, "recommend: load preferences")
	}
	p.Lat = lat
	p.Lng = lng
	return s.Recommend(ctx, p)
}
