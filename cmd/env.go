package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/db"
	"github.com/sells-group/trailscout/internal/elevation"
	"github.com/sells-group/trailscout/internal/importer"
	"github.com/sells-group/trailscout/internal/osm"
	"github.com/sells-group/trailscout/internal/scorer"
	"github.com/sells-group/trailscout/internal/store"
	"github.com/sells-group/trailscout/internal/trails"
)

// appEnv holds the connections a command needs.
type appEnv struct {
	Pool   *pgxpool.Pool
	Trails *trails.PostgresStore
	Runs   store.Store
}

// Close releases all connections.
func (e *appEnv) Close() {
	if e.Runs != nil {
		if err := e.Runs.Close(); err != nil {
			zap.L().Warn("close run store", zap.Error(err))
		}
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
}

func poolConfig() db.PoolConfig {
	return db.PoolConfig{MaxConns: cfg.Database.MaxConns, MinConns: cfg.Database.MinConns}
}

// initEnv validates config for mode, connects to PostGIS and opens the run
// store. withRuns controls whether the run store is opened and migrated.
func initEnv(ctx context.Context, mode string, withRuns bool) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.Database.URL, poolConfig())
	if err != nil {
		return nil, eris.Wrap(err, "connect trails database")
	}
	env := &appEnv{Pool: pool, Trails: trails.NewPostgresStore(pool)}

	if withRuns {
		runs, err := initRunStore(ctx)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Runs = runs
	}
	return env, nil
}

// initRunStore opens and migrates the import-run store.
func initRunStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store, poolConfig())
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate run store")
	}
	return st, nil
}

// newImporter wires the Overpass client, optional elevation enrichment and
// tile invalidation into an importer.
func newImporter(env *appEnv, inv importer.Invalidator) *importer.Importer {
	opts := []importer.Option{
		importer.WithTileSize(cfg.OSM.TileSizeDeg),
		importer.WithBatchSize(cfg.Import.BatchSize),
	}
	if cfg.Elevation.Enabled {
		opts = append(opts, importer.WithElevation(elevation.NewClient(cfg.Elevation)))
	}
	if inv != nil {
		opts = append(opts, importer.WithInvalidator(inv))
	}
	return importer.New(osm.NewClient(cfg.OSM), env.Trails, env.Runs, opts...)
}

// loadProfiles builds the scoring profiles from config.
func loadProfiles() (*scorer.Profiles, error) {
	if err := scorer.ValidateConfig(cfg.Scorer); err != nil {
		return nil, err
	}
	return scorer.NewProfiles(cfg.Scorer, cfg.Scorer.ProfilesPath)
}
