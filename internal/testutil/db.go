package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/infrastructure/sqlite"
)

// NewTestRepository opens a migrated SQLite action store in a temp dir.
// It is closed when the test ends.
func NewTestRepository(t testing.TB) domain.ActionRepository {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "actions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.ActionRepository()
}
