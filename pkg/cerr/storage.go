package cerr

import (
	"errors"
	"fmt"

	"github.com/kazz187/buildingdesk/pkg/storage"
)

// wrapStorageError maps the storage sentinel errors onto client facing codes.
// Anything else is an internal failure described by op.
func wrapStorageError(op, target string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return NewError(AlreadyExists, fmt.Sprintf("%s already exists", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to %s %s: %w", op, target, err))
}

func WrapStorageReadError(target string, err error) error {
	return wrapStorageError("read", target, err)
}

func WrapStorageWriteError(target string, err error) error {
	return wrapStorageError("write", target, err)
}

func WrapStorageDeleteError(target string, err error) error {
	return wrapStorageError("delete", target, err)
}
