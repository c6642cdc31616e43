package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Storage is a flat object store addressed by slash separated paths.
// Paths returned by List are relative to the store root and sorted.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	// Write creates or replaces the object at path.
	Write(ctx context.Context, path string, data []byte) error
	// Create writes the object only if nothing exists at path yet and
	// returns ErrAlreadyExists otherwise.
	Create(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
	Ping(ctx context.Context) error
}
