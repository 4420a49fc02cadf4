package osm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trailscout/internal/config"
	"github.com/sells-group/trailscout/internal/geo"
	"github.com/sells-group/trailscout/internal/resilience"
)

var testBBox = geo.BBox{MinLng: -84, MinLat: 35.4, MaxLng: -83.5, MaxLat: 35.8}

func fastPolicy(attempts int) resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	cfg := config.OSMConfig{
		OverpassURL: url,
		UserAgent:   "trailscout-test",
		TimeoutSecs: 5,
		RatePerSec:  1000,
	}
	return NewClient(cfg, append([]Option{WithPolicy(fastPolicy(3))}, opts...)...)
}

const sampleJSON = `{
  "version": 0.6,
  "generator": "Overpass API",
  "elements": [
    {"type": "node", "id": 1, "lat": 35.5, "lon": -83.9},
    {"type": "node", "id": 2, "lat": 35.51, "lon": -83.9},
    {"type": "way", "id": 10, "nodes": [1, 2], "tags": {"highway": "path", "sac_scale": "hiking", "name": "Creek Path"}}
  ]
}`

func TestClientFetch_Success(t *testing.T) {
	var gotQuery, gotUA, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostForm.Get("data")
		gotUA = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Fetch(context.Background(), testBBox)
	require.NoError(t, err)
	require.Len(t, resp.Elements, 3)
	assert.Equal(t, TypeWay, resp.Elements[2].Type)
	assert.Equal(t, []int64{1, 2}, resp.Elements[2].Nodes)

	assert.Contains(t, gotQuery, "[out:json][timeout:5]")
	assert.Contains(t, gotQuery, "(35.4,-84,35.8,-83.5)")
	assert.Equal(t, "trailscout-test", gotUA)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
}

func TestClientFetch_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).Fetch(context.Background(), testBBox)
	require.NoError(t, err)
	assert.Len(t, resp.Elements, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientFetch_PermanentStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Fetch(context.Background(), testBBox)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientFetch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Fetch(context.Background(), testBBox)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientFetch_RateLimitedSlowsDown(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	th := NewThrottle(100, 1)
	_, err := newTestClient(t, srv.URL, WithThrottle(th)).Fetch(context.Background(), testBBox)
	require.NoError(t, err)
	// Halved on 429, then grown 20% on success.
	assert.InDelta(t, 60, float64(th.Rate()), 1e-9)
}

func TestClientFetch_RuntimeRemarkIsTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"elements": [], "remark": "runtime error: Query timed out in \"query\" at line 3 after 180 seconds."}`))
			return
		}
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).Fetch(context.Background(), testBBox)
	require.NoError(t, err)
	assert.Len(t, resp.Elements, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientFetch_MalformedJSON(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"elements": [oops]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Fetch(context.Background(), testBBox)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientFetch_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:             "overpass-test",
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	c := newTestClient(t, srv.URL, WithBreaker(cb), WithPolicy(fastPolicy(2)))

	_, err := c.Fetch(context.Background(), testBBox)
	require.Error(t, err)
	assert.Equal(t, resilience.CircuitOpen, cb.State())

	_, err = c.Fetch(context.Background(), testBBox)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(t, srv.URL).Fetch(ctx, testBBox)
	require.Error(t, err)
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(testBBox, 180)
	assert.True(t, strings.HasPrefix(q, "[out:json][timeout:180];"))
	assert.Contains(t, q, `relation["type"="route"]["route"~"^(hiking|foot)$"](35.4,-84,35.8,-83.5);`)
	assert.Contains(t, q, `way["highway"="path"]["sac_scale"]["name"](35.4,-84,35.8,-83.5);`)
	assert.Contains(t, q, "(._;>>;);")
	assert.Contains(t, q, "out body;")
}

func TestThrottle_RateBounds(t *testing.T) {
	th := NewThrottle(4, 1)
	for i := 0; i < 10; i++ {
		th.Succeeded()
	}
	assert.InDelta(t, 8, float64(th.Rate()), 1e-9)

	for i := 0; i < 10; i++ {
		th.Throttled(0)
	}
	assert.InDelta(t, 1, float64(th.Rate()), 1e-9)
}

func TestThrottle_Cooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	th := NewThrottle(1000, 1)
	th.now = func() time.Time { return now }

	th.Throttled(30 * time.Second)
	assert.Equal(t, 30*time.Second, th.cooldownLeft())

	// A shorter Retry-After never pulls the cooldown in.
	th.Throttled(5 * time.Second)
	assert.Equal(t, 30*time.Second, th.cooldownLeft())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)

	now = now.Add(31 * time.Second)
	assert.NoError(t, th.Wait(context.Background()))
}
