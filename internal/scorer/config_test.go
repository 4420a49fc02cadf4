package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(cfg))
	assert.InDelta(t, 100, WeightSum(cfg), 0.001)
}

func TestValidateConfig(t *testing.T) {
	t.Run("negative weight", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TagsWeight = -10
		cfg.DistanceWeight = 40
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tags_weight must be >= 0")
	})

	t.Run("sum off", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DistanceWeight = 50
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weights should sum to 100, got 130.0")
	})

	t.Run("within tolerance", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DistanceWeight = 20.8
		assert.NoError(t, ValidateConfig(cfg))
	})

	t.Run("collects every violation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MinScore = 101
		cfg.DefaultMaxDistanceKM = 0
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min_score must be between 0 and 100")
		assert.Contains(t, err.Error(), "default_max_distance_km must be > 0")
	})

	t.Run("limits", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DefaultLimit = 200
		err := ValidateConfig(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "default_limit must be <= max_limit")
	})
}
