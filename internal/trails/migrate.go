package trails

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationLockID = 7314402

// Migrate applies pending SQL migrations in lexicographic order under an
// advisory lock, recording each in trails.schema_migrations with a checksum of
// its contents. It fails if an already applied migration has been edited.
func Migrate(ctx context.Context, pool db.Pool) error {
	log := zap.L().With(zap.String("component", "trails.migrate"))

	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "trails: acquire migration advisory lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("trails: failed to release migration advisory lock", zap.Error(err))
		}
	}()

	if err := ensureMigrationTable(ctx, pool); err != nil {
		return err
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return err
	}

	ran := 0
	for _, name := range names {
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "trails: read migration %s", name)
		}
		sum := migrationChecksum(data)

		if recorded, ok := applied[name]; ok {
			// Rows from before checksums were tracked carry none.
			if recorded != "" && recorded != sum {
				return eris.Errorf("trails: migration %s changed after it was applied", name)
			}
			continue
		}

		start := time.Now()
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "trails: apply migration %s", name)
		}
		if _, err := pool.Exec(ctx,
			"INSERT INTO trails.schema_migrations (filename, checksum, applied_at) VALUES ($1, $2, now())",
			name, sum,
		); err != nil {
			return eris.Wrapf(err, "trails: record migration %s", name)
		}
		ran++
		log.Info("trails: migration applied",
			zap.String("file", name),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	if ran == 0 {
		log.Debug("trails: schema up to date", zap.Int("migrations", len(names)))
	}
	return nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, eris.Wrap(err, "trails: read migration dir")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func ensureMigrationTable(ctx context.Context, pool db.Pool) error {
	sql := `
		CREATE SCHEMA IF NOT EXISTS trails;
		CREATE TABLE IF NOT EXISTS trails.schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		ALTER TABLE trails.schema_migrations ADD COLUMN IF NOT EXISTS checksum TEXT;
	`
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "trails: ensure migration table")
	}
	return nil
}

// appliedMigrations maps each recorded filename to its checksum, empty when
// none was stored.
func appliedMigrations(ctx context.Context, pool db.Pool) (map[string]string, error) {
	rows, err := pool.Query(ctx, "SELECT filename, coalesce(checksum, '') FROM trails.schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "trails: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, eris.Wrap(err, "trails: scan migration row")
		}
		applied[name] = sum
	}
	return applied, rows.Err()
}

func migrationChecksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
