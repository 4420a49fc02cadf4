package osm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/trailscout/internal/config"
	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/metrics"
	"github.com/sells-group/trailscout/internal/resilience"
)

const serviceName = "overpass"

// Fetcher retrieves raw OSM data for a bounding box.
type Fetcher interface {
	Fetch(ctx context.Context, bbox geo.BBox) (*Response, error)
}

// Client talks to an Overpass API endpoint.
type Client struct {
	http        *http.Client
	url         string
	userAgent   string
	timeoutSecs int
	throttle    *Throttle
	breaker     *resilience.CircuitBreaker
	policy      resilience.Policy
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

// WithBreaker overrides the circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithThrottle overrides the request throttle, e.g. to share one across clients.
func WithThrottle(t *Throttle) Option {
	return func(c *Client) { c.throttle = t }
}

// NewClient creates an Overpass client from config.
func NewClient(cfg config.OSMConfig, opts ...Option) *Client {
	timeout := cfg.TimeoutSecs
	if timeout <= 0 {
		timeout = 180
	}
	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 1
	}

	policy := resilience.PolicyFromConfig(cfg.Retry)
	policy.OnRetry = resilience.RetryLogger(serviceName, "fetch")

	bc := resilience.BreakerConfigFrom(serviceName, cfg.Circuit)
	bc.OnStateChange = func(name string, from, to resilience.CircuitState) {
		zap.L().Warn("osm: circuit breaker state change",
			zap.String("service", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		metrics.SetCircuitState(name, int(to))
	}

	c := &Client{
		// Overpass holds the connection for up to the query timeout.
		http:        &http.Client{Timeout: time.Duration(timeout+30) * time.Second},
		url:         cfg.OverpassURL,
		userAgent:   cfg.UserAgent,
		timeoutSecs: timeout,
		throttle:    NewThrottle(rate.Limit(ratePerSec), 1),
		breaker:     resilience.NewCircuitBreaker(bc),
		policy:      policy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch runs the trail query for bbox. Transient failures are retried.
func (c *Client) Fetch(ctx context.Context, bbox geo.BBox) (*Response, error) {
	query := BuildQuery(bbox, c.timeoutSecs)
	resp, err := resilience.DoVal(ctx, c.policy, func(ctx context.Context) (*Response, error) {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "osm: wait for throttle")
		}
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*Response, error) {
			return c.do(ctx, query)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "osm: fetch bbox %s", bbox)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, query string) (*Response, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "osm: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	out, err := c.roundTrip(req)
	metrics.RecordOverpassRequest(err, time.Since(start))
	return out, err
}

func (c *Client) roundTrip(req *http.Request) (*Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "osm: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests {
			c.throttle.Throttled(resilience.ParseRetryAfter(resp.Header.Get("Retry-After")))
		}
		return nil, resilience.StatusError(serviceName, resp)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "osm: decode response")
	}

	// Overpass reports query timeouts and memory exhaustion as a remark on a 200.
	if strings.Contains(out.Remark, "runtime error") {
		return nil, resilience.NewTransientError(eris.Errorf("osm: overpass %s", out.Remark), resp.StatusCode)
	}

	c.throttle.Succeeded()
	return &out, nil
}
