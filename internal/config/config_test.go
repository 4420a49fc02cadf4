package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "trailscout.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.OSM.OverpassURL)
	assert.Equal(t, 180, cfg.OSM.TimeoutSecs)
	assert.InDelta(t, 0.5, cfg.OSM.TileSizeDeg, 1e-9)
	assert.Equal(t, 5, cfg.OSM.Retry.MaxAttempts)
	assert.Equal(t, 2000, cfg.OSM.Retry.InitialBackoffMs)
	assert.Equal(t, 120, cfg.OSM.Circuit.ResetTimeoutSecs)
	assert.False(t, cfg.Elevation.Enabled)
	assert.Equal(t, 50, cfg.Elevation.BatchSize)
	assert.Equal(t, 500, cfg.Import.BatchSize)
	assert.Equal(t, 2000, cfg.Tiles.CacheEntries)

	s := cfg.Scorer
	sum := s.DistanceWeight + s.DifficultyWeight + s.LengthWeight + s.ElevationWeight +
		s.RatingWeight + s.TagsWeight + s.RouteTypeWeight + s.PopularityWeight
	assert.InDelta(t, 100, sum, 1e-9)
	assert.InDelta(t, 50, s.DefaultMaxDistanceKM, 1e-9)
	assert.Equal(t, 20, s.DefaultLimit)
	assert.Equal(t, 100, s.MaxLimit)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
database:
  url: postgres://localhost/trails
log:
  level: debug
  format: console
server:
  port: 9090
scorer:
  distance_weight: 30
import:
  regions:
    smokies: "-84.0,35.4,-83.0,35.8"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/trails", cfg.Database.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 30, cfg.Scorer.DistanceWeight, 1e-9)
	assert.Equal(t, "-84.0,35.4,-83.0,35.8", cfg.Import.Regions["smokies"])
	// Defaults still apply for unset values.
	assert.InDelta(t, 20, cfg.Scorer.DifficultyWeight, 1e-9)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))
	t.Setenv("TRAIL_LOG_LEVEL", "warn")
	t.Setenv("TRAIL_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [oops"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Database.URL = "postgres://localhost/trails"
	cfg.Server.Port = 8080
	cfg.OSM.OverpassURL = "https://overpass.example/api/interpreter"
	cfg.OSM.TileSizeDeg = 0.5
	cfg.Import.BatchSize = 500
	return cfg
}

func TestValidate(t *testing.T) {
	for _, mode := range []string{"serve", "import", "score", "export", "migrate"} {
		assert.NoError(t, validConfig().Validate(mode), mode)
	}
}

func TestValidate_Serve(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Database.URL = ""

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.Contains(t, err.Error(), "database.url is required")
}

func TestValidate_Import(t *testing.T) {
	cfg := validConfig()
	cfg.OSM.OverpassURL = ""
	cfg.Import.BatchSize = 0
	cfg.Elevation.Enabled = true

	err := cfg.Validate("import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "osm.overpass_url is required")
	assert.Contains(t, err.Error(), "import.batch_size must be > 0")
	assert.Contains(t, err.Error(), "elevation.base_url is required")
}

func TestValidate_StoreDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validConfig().Validate("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}
