// Package store persists import-run bookkeeping in SQLite or Postgres.
package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trailscout/internal/config"
	"github.com/sells-group/trailscout/internal/db"
	"github.com/sells-group/trailscout/internal/model"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = eris.New("store: run not found")

// defaultListLimit caps ListRuns when no limit is given.
const defaultListLimit = 100

// Store defines the persistence interface for import runs.
type Store interface {
	CreateRun(ctx context.Context, source, region string) (*model.ImportRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunProgress(ctx context.Context, runID string, p model.RunProgress) error
	FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.ImportRun, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.ImportRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, poolCfg db.PoolConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "trailscout.db"
		}
		st, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := NewPostgres(ctx, cfg.DatabaseURL, poolCfg)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func notFound(runID string) error {
	return eris.Wrap(ErrRunNotFound, fmt.Sprintf("run %s", runID))
}

func checkFinishStatus(status model.RunStatus) error {
	if !status.Terminal() {
		return eris.Errorf("store: finish run with non-terminal status %q", status)
	}
	return nil
}
