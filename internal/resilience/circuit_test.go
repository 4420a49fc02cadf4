package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trailscout/internal/config"
)

var errFlaky = NewTransientError(errors.New("overpass: 504"), 504)

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return errFlaky })
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "overpass", FailureThreshold: 3, ResetTimeout: time.Minute})

	trip(cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())

	trip(cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "overpass")
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 3})
	trip(cb, 2)
	assert.Equal(t, 2, cb.Failures())

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(context.Background(), func(context.Context) error {
		return errors.New("overpass: unexpected status 400")
	})
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: 100 * time.Millisecond})
	cb.now = func() time.Time { return now }

	trip(cb, 2)
	require.Equal(t, CircuitOpen, cb.State())

	cb.now = func() time.Time { return now.Add(200 * time.Millisecond) }
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: 100 * time.Millisecond})
	cb.now = func() time.Time { return now }
	trip(cb, 2)

	later := now.Add(200 * time.Millisecond)
	cb.now = func() time.Time { return later }
	trip(cb, 1)

	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, 3, cb.Failures())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	type change struct {
		name     string
		from, to CircuitState
	}
	var got []change
	cb := NewCircuitBreaker(BreakerConfig{
		Name:             "elevation",
		FailureThreshold: 1,
		OnStateChange: func(name string, from, to CircuitState) {
			got = append(got, change{name, from, to})
		},
	})

	trip(cb, 1)
	cb.Reset()

	require.Len(t, got, 2)
	assert.Equal(t, change{"elevation", CircuitClosed, CircuitOpen}, got[0])
	assert.Equal(t, change{"elevation", CircuitOpen, CircuitClosed}, got[1])
}

func TestExecuteVal_ReturnsValue(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{})
	v, err := ExecuteVal(context.Background(), cb, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestBreakerConfigFrom(t *testing.T) {
	bc := BreakerConfigFrom("overpass", config.CircuitConfig{FailureThreshold: 7, ResetTimeoutSecs: 90})
	assert.Equal(t, "overpass", bc.Name)
	assert.Equal(t, 7, bc.FailureThreshold)
	assert.Equal(t, 90*time.Second, bc.ResetTimeout)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
