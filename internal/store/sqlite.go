package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/trailscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS import_runs (
	id              TEXT PRIMARY KEY,
	source          TEXT NOT NULL,
	region          TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'queued',
	tiles_total     INTEGER NOT NULL DEFAULT 0,
	tiles_done      INTEGER NOT NULL DEFAULT 0,
	tiles_failed    INTEGER NOT NULL DEFAULT 0,
	trails_imported INTEGER NOT NULL DEFAULT 0,
	trails_skipped  INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	started_at      DATETIME,
	finished_at     DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);
CREATE INDEX IF NOT EXISTS idx_import_runs_created_at ON import_runs(created_at);
`

const runColumns = `id, source, region, status, tiles_total, tiles_done, tiles_failed,
	trails_imported, trails_skipped, error, started_at, finished_at, created_at, updated_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source, region string) (*model.ImportRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, region, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, source, region, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, updated_at = ?,
			started_at = CASE WHEN ? = 'running' AND started_at IS NULL THEN ? ELSE started_at END
		WHERE id = ?`,
		string(status), now, string(status), now, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) UpdateRunProgress(ctx context.Context, runID string, p model.RunProgress) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET tiles_total = ?, tiles_done = ?, tiles_failed = ?,
			trails_imported = ?, trails_skipped = ?, updated_at = ?
		WHERE id = ?`,
		p.TilesTotal, p.TilesDone, p.TilesFailed, p.TrailsImported, p.TrailsSkipped,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run progress %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	if err := checkFinishStatus(status); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, error = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, now, now, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ImportRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM import_runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.ImportRun, error) {
	query := `SELECT ` + runColumns + ` FROM import_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ImportRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return notFound(runID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ImportRun, error) {
	var r model.ImportRun
	err := row.Scan(&r.ID, &r.Source, &r.Region, &r.Status,
		&r.TilesTotal, &r.TilesDone, &r.TilesFailed, &r.TrailsImported, &r.TrailsSkipped,
		&r.Error, &r.StartedAt, &r.FinishedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
