package shortener

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown, expired or foreign codes alike.
	ErrNotFound = errors.New("url not found")

	// ErrUnavailable signals that the pool, counter or canonical store could not be reached.
	// Callers may retry.
	ErrUnavailable = errors.New("service unavailable")

	// ErrConflict is returned when a code is already present in the canonical store.
	ErrConflict = errors.New("short code already exists")

	// ErrValidation marks input rejected before any shared state is touched.
	ErrValidation = errors.New("validation failed")

	ErrInvalidURL      = fmt.Errorf("%w: invalid url", ErrValidation)
	ErrUnauthenticated = fmt.Errorf("%w: missing or unknown owner", ErrValidation)

	// ErrPersistenceLag is passed to recovery hooks when publishing exhausted its attempts.
	ErrPersistenceLag = errors.New("persistence event not published")
)
