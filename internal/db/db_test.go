package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_SQLiteIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, RunMigrations(ctx, conn))
	require.NoError(t, RunMigrations(ctx, conn))

	var applied int
	require.NoError(t, conn.GetContext(ctx, &applied, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 1, applied)

	for _, table := range []string{"accounts", "withdrawals", "vault_entries", "audit_log"} {
		var n int
		err := conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}
