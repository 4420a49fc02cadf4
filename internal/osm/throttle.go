package osm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Throttle paces Overpass requests. The rate halves on every 429 and creeps
// back up by 20% per success, staying within [base/4, base*2]. A Retry-After
// on a 429 also opens a cooldown that every caller sharing the Throttle waits
// out, so parallel imports in serve mode back off together.
type Throttle struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	base     rate.Limit
	current  rate.Limit
	cooldown time.Time
	now      func() time.Time
}

// NewThrottle starts at perSec requests per second with the given burst.
func NewThrottle(perSec rate.Limit, burst int) *Throttle {
	return &Throttle{
		limiter: rate.NewLimiter(perSec, burst),
		base:    perSec,
		current: perSec,
		now:     time.Now,
	}
}

// Wait blocks until any cooldown has passed and the limiter grants a slot.
func (t *Throttle) Wait(ctx context.Context) error {
	if d := t.cooldownLeft(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return t.limiter.Wait(ctx)
}

// Succeeded speeds the throttle up after a good response.
func (t *Throttle) Succeeded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setRate(min(t.current*1.2, t.base*2))
}

// Throttled slows down after a 429. retryAfter, when positive, extends the
// shared cooldown.
func (t *Throttle) Throttled(retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setRate(max(t.current/2, t.base/4))
	if retryAfter > 0 {
		if until := t.now().Add(retryAfter); until.After(t.cooldown) {
			t.cooldown = until
		}
	}
	zap.L().Warn("osm: overpass rate limited",
		zap.Float64("rate_per_sec", float64(t.current)),
		zap.Duration("retry_after", retryAfter),
	)
}

// Rate reports the current requests per second.
func (t *Throttle) Rate() rate.Limit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Throttle) cooldownLeft() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cooldown.Sub(t.now())
}

func (t *Throttle) setRate(r rate.Limit) {
	t.current = r
	t.limiter.SetLimit(r)
}
