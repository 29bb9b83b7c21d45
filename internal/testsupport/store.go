package testsupport

import (
	"testing"

	"clipsight/internal/runstore"
)

// MustOpenStore opens a runstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, path string) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(path)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
