package customers

import (
	"errors"
	"fmt"
)

// ErrBaseFetch marks a failure to load the base customer records.
var ErrBaseFetch = errors.New("customer base fetch failed")

// FetchError is the typed batch-level failure returned by Composer.Build.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrBaseFetch) true for every FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrBaseFetch }

// Retryable reports whether the caller should offer a retry. Base fetch
// failures are assumed transient.
func (e *FetchError) Retryable() bool { return true }
