package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStock = errors.New("insufficient stock")

	// soft errors: logged and counted on the cache path, never returned to callers
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrLockTimeout      = errors.New("lock wait timed out")
)

func invalidArgument(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}
