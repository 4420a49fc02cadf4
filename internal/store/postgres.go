package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/trailscout/internal/db"
	"github.com/sells-group/trailscout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not close the pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS import_runs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source          TEXT NOT NULL,
	region          TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'queued',
	tiles_total     INTEGER NOT NULL DEFAULT 0,
	tiles_done      INTEGER NOT NULL DEFAULT 0,
	tiles_failed    INTEGER NOT NULL DEFAULT 0,
	trails_imported INTEGER NOT NULL DEFAULT 0,
	trails_skipped  INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ,
	finished_at     TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);
CREATE INDEX IF NOT EXISTS idx_import_runs_created_at ON import_runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source, region string) (*model.ImportRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, source, region, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, source, region, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.ImportRun{
		ID:        id,
		Source:    source,
		Region:    region,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, updated_at = $2,
			started_at = CASE WHEN $1 = 'running' THEN COALESCE(started_at, $2) ELSE started_at END
		WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	return checkTag(tag, err, "update run status", runID)
}

func (s *PostgresStore) UpdateRunProgress(ctx context.Context, runID string, p model.RunProgress) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET tiles_total = $1, tiles_done = $2, tiles_failed = $3,
			trails_imported = $4, trails_skipped = $5, updated_at = $6
		WHERE id = $7`,
		p.TilesTotal, p.TilesDone, p.TilesFailed, p.TrailsImported, p.TrailsSkipped,
		time.Now().UTC(), runID,
	)
	return checkTag(tag, err, "update run progress", runID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	if err := checkFinishStatus(status); err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, error = $2, finished_at = $3, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, now, runID,
	)
	return checkTag(tag, err, "finish run", runID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	r, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM import_runs WHERE id = $1`,
		runID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.ImportRun, error) {
	query := `SELECT ` + runColumns + ` FROM import_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func checkTag(tag pgconn.CommandTag, err error, op, runID string) error {
	if err != nil {
		return eris.Wrapf(err, "postgres: %s %s", op, runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound(runID)
	}
	return nil
}
