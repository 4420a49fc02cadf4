package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trailUpsert = UpsertConfig{
	Table:        "trails.trails",
	Columns:      []string{"source", "source_id", "name"},
	ConflictKeys: []string{"source", "source_id"},
	Touch:        "updated_at",
}

func TestBulkUpsert_NoRowsIsNoop(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, trailUpsert, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkUpsert_RejectsIncompleteConfig(t *testing.T) {
	rows := [][]any{{"osm", "way/1"}}
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{"no table", UpsertConfig{Columns: []string{"id"}, ConflictKeys: []string{"id"}}, "needs a table"},
		{"no columns", UpsertConfig{Table: "trails.trails", ConflictKeys: []string{"id"}}, "needs columns"},
		{"no keys", UpsertConfig{Table: "trails.trails", Columns: []string{"id"}}, "needs conflict keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BulkUpsert(context.Background(), nil, tt.cfg, rows)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "stage_trails_trails" \(LIKE "trails"."trails"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"stage_trails_trails"}, trailUpsert.Columns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "trails"."trails" AS t`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, trailUpsert, [][]any{
		{"osm", "relation/1", "Ridge Loop"},
		{"osm", "relation/2", "Creek Path"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"stage_trails_trails"}, trailUpsert.Columns).
		WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, trailUpsert, [][]any{{"osm", "way/9", "Spur"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy rows for trails.trails")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeSQL(t *testing.T) {
	sql := mergeSQL(trailUpsert, "stage")

	assert.Contains(t, sql, `ON CONFLICT ("source", "source_id")`)
	assert.Contains(t, sql, `"name" = EXCLUDED."name"`)
	assert.Contains(t, sql, `"updated_at" = now()`)
	assert.NotContains(t, sql, `"source" = EXCLUDED`)
	assert.NotContains(t, sql, "IS DISTINCT FROM")
}

func TestMergeSQL_SkipUnchanged(t *testing.T) {
	cfg := trailUpsert
	cfg.Columns = []string{"source", "source_id", "name", "length_km"}
	cfg.SkipUnchanged = true

	sql := mergeSQL(cfg, "stage")
	assert.Contains(t, sql, `WHERE (t."name", t."length_km") IS DISTINCT FROM (EXCLUDED."name", EXCLUDED."length_km")`)
}

func TestMergeSQL_NothingToUpdate(t *testing.T) {
	sql := mergeSQL(UpsertConfig{
		Table:        "trails.reviews",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, "stage")
	assert.Contains(t, sql, "DO NOTHING")
}

func TestQualified(t *testing.T) {
	assert.Equal(t, `"simple"`, qualified("simple"))
	assert.Equal(t, `"trails"."trails"`, qualified("trails.trails"))
}

func TestIdentList(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, identList([]string{"id", "name", "value"}))
}
