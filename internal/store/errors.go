package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a task, session, log entry or reflection
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuadrant is returned for quadrant values outside 0-3.
	ErrInvalidQuadrant = errors.New("invalid quadrant")

	// ErrStorage wraps every failure to durably persist a write.
	ErrStorage = errors.New("storage failure")

	// ErrEmptyContent is returned when a description or note is blank.
	ErrEmptyContent = errors.New("content must not be empty")
)

// writeErr tags a driver error on a write path with ErrStorage.
func writeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
