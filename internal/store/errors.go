package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ConcurrencyError is returned by Append when the stream's current version
// does not match the expected version. It is retryable: re-read state,
// re-run the command and append again.
type ConcurrencyError struct {
	Stream   string
	Expected ExpectedVersion
	Actual   int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("stream %q: expected version %s, actual version %d", e.Stream, e.Expected, e.Actual)
}

// Retryable reports that a concurrency conflict may succeed on retry.
func (e *ConcurrencyError) Retryable() bool {
	return true
}

// IsConcurrencyError reports whether err is (or wraps) a ConcurrencyError.
func IsConcurrencyError(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}
