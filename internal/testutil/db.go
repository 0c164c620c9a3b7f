// Package testutil provides shared fakes and fixtures for mqttdesk tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mqttdesk/internal/store"
)

// NewTestStore opens a SQLite-backed store in a temporary directory and
// loads it. The store is closed when the test ends.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.BackendSQLite, filepath.Join(t.TempDir(), "mqttdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.Load(context.Background())
	require.NoError(t, err)
	return st
}
