package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_AppliesAllMigrationsOnce(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, db))
	require.NoError(t, Run(ctx, db), "second run must be a no-op")

	versions, err := Applied(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_session_entries", "002_session_events"}, versions)

	_, err = db.ExecContext(ctx, `INSERT INTO session_entries (key, value) VALUES ('token', 'T1')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO session_events (kind, category) VALUES ('login', 'user')`)
	require.NoError(t, err)
}
