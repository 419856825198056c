// Package storage provides the byte storage used for content addressed blocks.
package storage

import (
	"errors"

	"github.com/ipld/go-ipld-prime/storage"
)

var ErrNotFound = errors.New("key not found")

// Storage is a readable and writable block storage.
type Storage interface {
	storage.ReadableStorage
	storage.WritableStorage
	storage.StreamingReadableStorage
}

var _ Storage = (*Memory)(nil)

// Open returns a directory storage rooted at dir, or a memory storage when dir is empty.
func Open(dir string) (Storage, error) {
	if dir == "" {
		return NewMemory(), nil
	}
	return NewDir(dir)
}
