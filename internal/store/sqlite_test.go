package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trailscout/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "osm", "-84,35,-83,36")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "osm", got.Source)
	assert.Equal(t, "-84,35,-83,36", got.Region)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.FinishedAt)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))
	require.NoError(t, st.UpdateRunProgress(ctx, run.ID, model.RunProgress{
		TilesTotal: 4, TilesDone: 3, TilesFailed: 1, TrailsImported: 120, TrailsSkipped: 7,
	}))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Equal(t, 4, got.TilesTotal)
	assert.Equal(t, 3, got.TilesDone)
	assert.Equal(t, 1, got.TilesFailed)
	assert.Equal(t, 120, got.TrailsImported)
	assert.Equal(t, 7, got.TrailsSkipped)

	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusPartial, "1 tile failed"))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPartial, got.Status)
	assert.Equal(t, "1 tile failed", got.Error)
	require.NotNil(t, got.FinishedAt)
	require.NotNil(t, got.StartedAt)
	assert.False(t, got.FinishedAt.Before(*got.StartedAt))
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLite_Updates_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, st.UpdateRunStatus(ctx, "missing", model.RunStatusRunning), ErrRunNotFound)
	assert.ErrorIs(t, st.UpdateRunProgress(ctx, "missing", model.RunProgress{}), ErrRunNotFound)
	assert.ErrorIs(t, st.FinishRun(ctx, "missing", model.RunStatusFailed, "x"), ErrRunNotFound)
}

func TestSQLite_FinishRun_RequiresTerminal(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "osm", "")
	require.NoError(t, err)

	err = st.FinishRun(ctx, run.ID, model.RunStatusRunning, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-terminal")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []string
	for _, src := range []string{"osm", "shapefile", "osm"} {
		r, err := st.CreateRun(ctx, src, "")
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	require.NoError(t, st.FinishRun(ctx, ids[0], model.RunStatusComplete, ""))

	all, err := st.ListRuns(ctx, model.RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	complete, err := st.ListRuns(ctx, model.RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, ids[0], complete[0].ID)

	osm, err := st.ListRuns(ctx, model.RunFilter{Source: "osm"})
	require.NoError(t, err)
	assert.Len(t, osm, 2)

	page, err := st.ListRuns(ctx, model.RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, configFor("sqlite", filepath.Join(t.TempDir(), "runs.db")), poolDefaults())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Close())

	_, err = Open(ctx, configFor("mysql", ""), poolDefaults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "mysql"`)
}
