package testsupport

import (
	"testing"

	"darkroom/internal/config"
	"darkroom/internal/errstore"
	"darkroom/internal/mediastore"
)

// MustOpenErrorStore opens an errstore.Store for tests and registers cleanup.
func MustOpenErrorStore(t testing.TB, cfg *config.Config) *errstore.Store {
	t.Helper()

	store, err := errstore.Open(cfg)
	if err != nil {
		t.Fatalf("errstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenMediaStore opens a mediastore.Store for tests and registers cleanup.
func MustOpenMediaStore(t testing.TB, cfg *config.Config) *mediastore.Store {
	t.Helper()

	store, err := mediastore.Open(cfg)
	if err != nil {
		t.Fatalf("mediastore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
