// Package testutil поднимает временное хранилище SQLite для тестов.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/earnings-ledger/internal/db"
	"github.com/ignatzorin/earnings-ledger/internal/repository"
)

// NewStore создаёт базу во временном каталоге теста и применяет миграции.
func NewStore(t testing.TB) *repository.Store {
	t.Helper()

	ctx := context.Background()
	conn, err := db.NewSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.RunMigrations(ctx, conn))
	return repository.NewStore(conn)
}
