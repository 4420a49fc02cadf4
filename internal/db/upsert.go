package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes how staged rows merge into a target table.
type UpsertConfig struct {
	Table        string   // schema-qualified target, e.g. "trails.trails"
	Columns      []string // columns present in every row, in row order
	ConflictKeys []string // natural key backing the unique constraint
	UpdateCols   []string // nil means every column outside ConflictKeys
	Touch        string   // optional timestamp column bumped on update

	// SkipUnchanged leaves a conflicting row alone when none of its update
	// columns differ, so re-importing the same area rewrites nothing.
	SkipUnchanged bool
}

// BulkUpsert stages rows with COPY into a transaction-scoped temp table shaped
// like cfg.Table and merges them with one INSERT ... ON CONFLICT. It returns
// the number of rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.check(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: begin upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := stageTable(cfg.Table)
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{stage}.Sanitize(), qualified(cfg.Table))
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: create stage table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: copy rows for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, mergeSQL(cfg, stage))
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge rows into %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: commit upsert")
	}
	return tag.RowsAffected(), nil
}

func (cfg UpsertConfig) check() error {
	switch {
	case cfg.Table == "":
		return eris.New("db: upsert needs a table")
	case len(cfg.Columns) == 0:
		return eris.Errorf("db: upsert into %s needs columns", cfg.Table)
	case len(cfg.ConflictKeys) == 0:
		return eris.Errorf("db: upsert into %s needs conflict keys", cfg.Table)
	}
	return nil
}

// updateColumns resolves UpdateCols, defaulting to the non-key columns.
func (cfg UpsertConfig) updateColumns() []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	keys := make(map[string]struct{}, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = struct{}{}
	}
	var cols []string
	for _, c := range cfg.Columns {
		if _, isKey := keys[c]; !isKey {
			cols = append(cols, c)
		}
	}
	return cols
}

func mergeSQL(cfg UpsertConfig, stage string) string {
	target := qualified(cfg.Table)
	cols := identList(cfg.Columns)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS t (%s) SELECT %s FROM %s ON CONFLICT (%s) ",
		target, cols, cols, pgx.Identifier{stage}.Sanitize(), identList(cfg.ConflictKeys))

	update := cfg.updateColumns()
	if len(update) == 0 && cfg.Touch == "" {
		b.WriteString("DO NOTHING")
		return b.String()
	}

	sets := make([]string, 0, len(update)+1)
	for _, c := range update {
		id := pgx.Identifier{c}.Sanitize()
		sets = append(sets, id+" = EXCLUDED."+id)
	}
	if cfg.Touch != "" {
		sets = append(sets, pgx.Identifier{cfg.Touch}.Sanitize()+" = now()")
	}
	b.WriteString("DO UPDATE SET ")
	b.WriteString(strings.Join(sets, ", "))

	if cfg.SkipUnchanged && len(update) > 0 {
		current := make([]string, len(update))
		incoming := make([]string, len(update))
		for i, c := range update {
			id := pgx.Identifier{c}.Sanitize()
			current[i] = "t." + id
			incoming[i] = "EXCLUDED." + id
		}
		fmt.Fprintf(&b, " WHERE (%s) IS DISTINCT FROM (%s)",
			strings.Join(current, ", "), strings.Join(incoming, ", "))
	}
	return b.String()
}

// stageTable names the temp table that receives COPY rows for table.
func stageTable(table string) string {
	return "stage_" + strings.ReplaceAll(table, ".", "_")
}

// qualified quotes a table name that may carry a schema prefix.
func qualified(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
