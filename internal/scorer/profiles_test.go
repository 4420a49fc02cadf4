package scorer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestBuiltinProfiles_Valid(t *testing.T) {
	for name, w := range builtinProfiles {
		assert.NoError(t, ValidateConfig(w.Apply(DefaultConfig())), name)
	}
}

func TestProfiles_Resolve(t *testing.T) {
	p, err := NewProfiles(DefaultConfig(), "")
	require.NoError(t, err)

	cfg, err := p.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = p.Resolve("family")
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.DistanceWeight)
	assert.Equal(t, 0.0, cfg.RouteTypeWeight)
	// Non-weight settings carry over from the base.
	assert.Equal(t, DefaultConfig().DefaultLimit, cfg.DefaultLimit)

	_, err = p.Resolve("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "nope"`)

	assert.Equal(t, []string{"default", "challenge", "family"}, p.Names())
}

func TestProfiles_FromFile(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  scenic:
    distance_weight: 10
    difficulty_weight: 10
    length_weight: 10
    elevation_weight: 10
    rating_weight: 30
    tags_weight: 30
  family:
    distance_weight: 50
    difficulty_weight: 50
`)
	p, err := NewProfiles(DefaultConfig(), path)
	require.NoError(t, err)

	cfg, err := p.Resolve("scenic")
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.TagsWeight)

	cfg, err = p.Resolve("family")
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.DistanceWeight)
	assert.Equal(t, 0.0, cfg.LengthWeight)
}

func TestProfiles_InvalidFile(t *testing.T) {
	t.Run("bad weights", func(t *testing.T) {
		path := writeProfiles(t, "profiles:\n  broken:\n    distance_weight: 10\n")
		_, err := NewProfiles(DefaultConfig(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `profile "broken"`)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := writeProfiles(t, "profiles: [not a map")
		_, err := NewProfiles(DefaultConfig(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scorer: parse profiles")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewProfiles(DefaultConfig(), filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("reserved name", func(t *testing.T) {
		path := writeProfiles(t, "profiles:\n  default:\n    distance_weight: 100\n")
		_, err := NewProfiles(DefaultConfig(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reserved")
	})
}
