package store

import (
	"errors"
	"fmt"
)

// StorageLoadError means durable state could not be read. The store is left
// empty and usable, as on a first run.
type StorageLoadError struct {
	Path string
	Err  error
}

func (e *StorageLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *StorageLoadError) Unwrap() error {
	return e.Err
}

// StorageSaveError means durable state could not be written. It must reach
// the caller: the item it was persisting is not durable.
type StorageSaveError struct {
	Path string
	Err  error
}

func (e *StorageSaveError) Error() string {
	return fmt.Sprintf("save %s: %v", e.Path, e.Err)
}

func (e *StorageSaveError) Unwrap() error {
	return e.Err
}

func IsStorageSaveError(err error) bool {
	var se *StorageSaveError
	return errors.As(err, &se)
}

func IsStorageLoadError(err error) bool {
	var le *StorageLoadError
	return errors.As(err, &le)
}
