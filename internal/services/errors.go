package services

import (
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidAdmin  = errors.New("invalid admin user")
	ErrSelfFollow    = errors.New("cannot follow yourself")
	ErrInvalidInput  = errors.New("invalid input")
	ErrStorage       = errors.New("storage error")
)

// StorageError wraps an underlying persistence failure. It matches
// ErrStorage with errors.Is and unwraps to the driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// storageErr classifies err for op. Sentinel errors produced inside a
// transaction callback pass through untouched.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrAlreadyExists, ErrInvalidAdmin, ErrSelfFollow, ErrInvalidInput} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrap(ErrAlreadyExists, op)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(ErrNotFound, op)
	}
	return &StorageError{Op: op, Err: err}
}
