// Package config loads trailscout configuration from config.yaml, TRAIL_*
// environment variables and built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	OSM       OSMConfig       `yaml:"osm" mapstructure:"osm"`
	Elevation ElevationConfig `yaml:"elevation" mapstructure:"elevation"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Tiles     TilesConfig     `yaml:"tiles" mapstructure:"tiles"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
}

// StoreConfig configures the import-run bookkeeping backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DatabaseConfig configures the PostGIS database holding trails.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RetryConfig holds retry settings for an external HTTP dependency.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig holds circuit breaker settings.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// OSMConfig configures the Overpass API client and tiling.
type OSMConfig struct {
	OverpassURL string        `yaml:"overpass_url" mapstructure:"overpass_url"`
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TileSizeDeg float64       `yaml:"tile_size_deg" mapstructure:"tile_size_deg"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Retry       RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// ElevationConfig configures optional elevation enrichment.
type ElevationConfig struct {
	Enabled      bool        `yaml:"enabled" mapstructure:"enabled"`
	BaseURL      string      `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs  int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BatchSize    int         `yaml:"batch_size" mapstructure:"batch_size"`
	SampleMeters float64     `yaml:"sample_meters" mapstructure:"sample_meters"`
	MaxSamples   int         `yaml:"max_samples" mapstructure:"max_samples"`
	Concurrency  int         `yaml:"concurrency" mapstructure:"concurrency"`
	Retry        RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ScorerConfig holds recommendation scoring weights and limits.
// Weights sum to 100.
type ScorerConfig struct {
	DistanceWeight   float64 `yaml:"distance_weight" mapstructure:"distance_weight"`
	DifficultyWeight float64 `yaml:"difficulty_weight" mapstructure:"difficulty_weight"`
	LengthWeight     float64 `yaml:"length_weight" mapstructure:"length_weight"`
	ElevationWeight  float64 `yaml:"elevation_weight" mapstructure:"elevation_weight"`
	RatingWeight     float64 `yaml:"rating_weight" mapstructure:"rating_weight"`
	TagsWeight       float64 `yaml:"tags_weight" mapstructure:"tags_weight"`
	RouteTypeWeight  float64 `yaml:"route_type_weight" mapstructure:"route_type_weight"`
	PopularityWeight float64 `yaml:"popularity_weight" mapstructure:"popularity_weight"`

	RatingPrior       float64 `yaml:"rating_prior" mapstructure:"rating_prior"`
	RatingPriorWeight float64 `yaml:"rating_prior_weight" mapstructure:"rating_prior_weight"`

	MinScore             float64 `yaml:"min_score" mapstructure:"min_score"`
	DefaultMaxDistanceKM float64 `yaml:"default_max_distance_km" mapstructure:"default_max_distance_km"`
	DefaultLimit         int     `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit             int     `yaml:"max_limit" mapstructure:"max_limit"`
	MaxCandidates        int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	ProfilesPath         string  `yaml:"profiles_path" mapstructure:"profiles_path"`
}

// TilesConfig configures the vector tile cache.
type TilesConfig struct {
	CacheEntries int `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLSecs int `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// ImportConfig configures import batching and named regions.
// Regions map a name to "minLng,minLat,maxLng,maxLat".
type ImportConfig struct {
	BatchSize int               `yaml:"batch_size" mapstructure:"batch_size"`
	Regions   map[string]string `yaml:"regions" mapstructure:"regions"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "trailscout.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_min", 600)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("osm.overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("osm.user_agent", "trailscout/1.0")
	v.SetDefault("osm.timeout_secs", 180)
	v.SetDefault("osm.tile_size_deg", 0.5)
	v.SetDefault("osm.rate_per_sec", 1.0)
	v.SetDefault("osm.retry.max_attempts", 5)
	v.SetDefault("osm.retry.initial_backoff_ms", 2000)
	v.SetDefault("osm.retry.max_backoff_ms", 60000)
	v.SetDefault("osm.retry.multiplier", 2.0)
	v.SetDefault("osm.retry.jitter_fraction", 0.25)
	v.SetDefault("osm.circuit.failure_threshold", 5)
	v.SetDefault("osm.circuit.reset_timeout_secs", 120)

	v.SetDefault("elevation.enabled", false)
	v.SetDefault("elevation.base_url", "https://api.open-elevation.com")
	v.SetDefault("elevation.timeout_secs", 30)
	v.SetDefault("elevation.batch_size", 50)
	v.SetDefault("elevation.sample_meters", 100.0)
	v.SetDefault("elevation.max_samples", 200)
	v.SetDefault("elevation.concurrency", 2)
	v.SetDefault("elevation.retry.max_attempts", 3)
	v.SetDefault("elevation.retry.initial_backoff_ms", 500)
	v.SetDefault("elevation.retry.max_backoff_ms", 10000)
	v.SetDefault("elevation.retry.multiplier", 2.0)
	v.SetDefault("elevation.retry.jitter_fraction", 0.25)

	v.SetDefault("scorer.distance_weight", 20)
	v.SetDefault("scorer.difficulty_weight", 20)
	v.SetDefault("scorer.length_weight", 15)
	v.SetDefault("scorer.elevation_weight", 10)
	v.SetDefault("scorer.rating_weight", 15)
	v.SetDefault("scorer.tags_weight", 10)
	v.SetDefault("scorer.route_type_weight", 5)
	v.SetDefault("scorer.popularity_weight", 5)
	v.SetDefault("scorer.rating_prior", 3.0)
	v.SetDefault("scorer.rating_prior_weight", 5.0)
	v.SetDefault("scorer.min_score", 0)
	v.SetDefault("scorer.default_max_distance_km", 50.0)
	v.SetDefault("scorer.default_limit", 20)
	v.SetDefault("scorer.max_limit", 100)
	v.SetDefault("scorer.max_candidates", 500)

	v.SetDefault("tiles.cache_entries", 2000)
	v.SetDefault("tiles.cache_ttl_secs", 600)
	v.SetDefault("import.batch_size", 500)
}

// Validate checks the settings a given command needs. Mode is one of
// "serve", "import", "score", "export" or "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Database.URL == "" {
			errs = append(errs, "database.url is required")
		}
	case "import":
		if c.Database.URL == "" {
			errs = append(errs, "database.url is required")
		}
		if c.OSM.OverpassURL == "" {
			errs = append(errs, "osm.overpass_url is required")
		}
		if c.OSM.TileSizeDeg < 0 {
			errs = append(errs, "osm.tile_size_deg must be >= 0")
		}
		if c.Import.BatchSize <= 0 {
			errs = append(errs, "import.batch_size must be > 0")
		}
		if c.Elevation.Enabled && c.Elevation.BaseURL == "" {
			errs = append(errs, "elevation.base_url is required when elevation is enabled")
		}
	case "score", "export", "migrate":
		if c.Database.URL == "" {
			errs = append(errs, "database.url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
