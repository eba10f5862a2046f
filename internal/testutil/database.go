// Package testutil provides shared fixtures for tests: an in-memory store
// and a small stationary state-space system.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/statespace/dsgefc/internal/storage"
)

// NewTestStore returns a migrated in-memory store that closes itself when
// the test finishes.
func NewTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}
