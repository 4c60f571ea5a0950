package versions

import (
	"errors"
	"fmt"
)

// ErrUnknownTable is returned when a handle is requested for a table the
// schema registry does not know.
var ErrUnknownTable = errors.New("unknown table")

// ErrPageOutOfRange is returned by ListForAudit for a page number outside
// [1, last page]. Callers treat it as not found.
var ErrPageOutOfRange = errors.New("page out of range")

// StorageError wraps a failure of the version repository, the row store or
// the file store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
