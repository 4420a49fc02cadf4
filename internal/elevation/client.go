// Package elevation looks up terrain heights from an Open-Elevation
// compatible API and derives elevation gain and loss along trails.
package elevation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/trailscout/internal/config"
	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/resilience"
)

const (
	serviceName = "elevation"

	// Elevation changes smaller than this are treated as noise.
	hysteresisM = 2.0
)

// Profiler computes an elevation profile for a line.
type Profiler interface {
	Profile(ctx context.Context, line *geom.LineString) (Profile, error)
}

// Profile summarizes elevation along a line.
type Profile struct {
	GainM   float64 `json:"gain_m"`
	LossM   float64 `json:"loss_m"`
	MinM    float64 `json:"min_m"`
	MaxM    float64 `json:"max_m"`
	Samples int     `json:"samples"`
}

// Client queries an elevation lookup service.
type Client struct {
	http         *http.Client
	baseURL      string
	policy       resilience.Policy
	batchSize    int
	sampleMeters float64
	maxSamples   int
	concurrency  int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPolicy overrides the retry policy.
func WithPolicy(p resilience.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// NewClient creates an elevation client from config.
func NewClient(cfg config.ElevationConfig, opts ...Option) *Client {
	timeout := cfg.TimeoutSecs
	if timeout <= 0 {
		timeout = 30
	}
	policy := resilience.PolicyFromConfig(cfg.Retry)
	policy.OnRetry = resilience.RetryLogger(serviceName, "lookup")

	c := &Client{
		http:         &http.Client{Timeout: time.Duration(timeout) * time.Second},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		policy:       policy,
		batchSize:    cfg.BatchSize,
		sampleMeters: cfg.SampleMeters,
		maxSamples:   cfg.MaxSamples,
		concurrency:  cfg.Concurrency,
	}
	if c.batchSize <= 0 {
		c.batchSize = 50
	}
	if c.sampleMeters <= 0 {
		c.sampleMeters = 100
	}
	if c.maxSamples <= 1 {
		c.maxSamples = 200
	}
	if c.concurrency <= 0 {
		c.concurrency = 1
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type lookupRequest struct {
	Locations []geo.Point `json:"locations"`
}

type lookupResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

// Lookup returns the elevation in meters for each point, in order. Batches
// run concurrently up to the configured limit.
func (c *Client) Lookup(ctx context.Context, pts []geo.Point) ([]float64, error) {
	out := make([]float64, len(pts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for start := 0; start < len(pts); start += c.batchSize {
		end := min(start+c.batchSize, len(pts))
		g.Go(func() error {
			elev, err := resilience.DoVal(gctx, c.policy, func(ctx context.Context) ([]float64, error) {
				return c.lookupBatch(ctx, pts[start:end])
			})
			if err != nil {
				return err
			}
			copy(out[start:end], elev)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "elevation: lookup")
	}
	return out, nil
}

func (c *Client) lookupBatch(ctx context.Context, pts []geo.Point) ([]float64, error) {
	body, err := json.Marshal(lookupRequest{Locations: pts})
	if err != nil {
		return nil, eris.Wrap(err, "elevation: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/lookup", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "elevation: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "elevation: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resilience.StatusError(serviceName, resp)
	}

	var lr lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, eris.Wrap(err, "elevation: decode response")
	}
	if len(lr.Results) != len(pts) {
		return nil, eris.Errorf("elevation: got %d results for %d locations", len(lr.Results), len(pts))
	}

	elev := make([]float64, len(lr.Results))
	for i, r := range lr.Results {
		elev[i] = r.Elevation
	}
	return elev, nil
}

// Profile samples line and accumulates gain and loss.
func (c *Client) Profile(ctx context.Context, line *geom.LineString) (Profile, error) {
	pts := geo.Sample(line, c.sampleMeters, c.maxSamples)
	if len(pts) < 2 {
		return Profile{}, eris.New("elevation: line too short to profile")
	}

	elev, err := c.Lookup(ctx, pts)
	if err != nil {
		return Profile{}, err
	}

	p := Summarize(elev)
	zap.L().Debug("elevation profile",
		zap.Int("samples", p.Samples),
		zap.Float64("gain_m", p.GainM),
		zap.Float64("loss_m", p.LossM),
	)
	return p, nil
}

// Summarize computes gain, loss and range from an elevation series.
// Changes under the hysteresis threshold do not count until they add up.
func Summarize(elev []float64) Profile {
	p := Profile{Samples: len(elev)}
	if len(elev) == 0 {
		return p
	}

	ref := elev[0]
	p.MinM, p.MaxM = elev[0], elev[0]
	for _, e := range elev[1:] {
		p.MinM = min(p.MinM, e)
		p.MaxM = max(p.MaxM, e)

		switch d := e - ref; {
		case d >= hysteresisM:
			p.GainM += d
			ref = e
		case d <= -hysteresisM:
			p.LossM -= d
			ref = e
		}
	}
	return p
}
