package store

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsHaveGooseAnnotations(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		body, err := fs.ReadFile(migrations, "migrations/"+entry.Name())
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", entry.Name())
		assert.Contains(t, string(body), "-- +goose Down", entry.Name())
	}
}

func TestSQLStoreOnSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "quest.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, ApplyMigrations(ctx, db, DialectSQLite))
	require.NoError(t, ApplyMigrations(ctx, db, DialectSQLite), "migrations are idempotent")

	s := NewSQLStore(db)
	_, err = s.Load(ctx, "data")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "data", []byte(`{"books":[]}`)))
	require.NoError(t, s.Save(ctx, "data", []byte(`{"books":[{"id":1}]}`)))

	got, err := s.Load(ctx, "data")
	require.NoError(t, err)
	assert.JSONEq(t, `{"books":[{"id":1}]}`, string(got))
	require.NoError(t, s.Ping(ctx))
}
