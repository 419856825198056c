package storage

import (
	"fmt"
	"os"

	"github.com/ipld/go-ipld-prime/storage/fsstore"
)

// NewDir returns a Storage that keeps each value in a file below the given directory.
func NewDir(path string) (Storage, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	store := &fsstore.Store{}
	if err := store.InitDefaults(path); err != nil {
		return nil, fmt.Errorf("failed to open storage directory: %w", err)
	}
	return store, nil
}
