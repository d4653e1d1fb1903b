package fetch

import (
	"errors"
	"fmt"
)

// ChecksumMismatchError is returned when downloaded bytes hash to a digest other
// than the one listed in the descriptor.
type ChecksumMismatchError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected sha256 %s, got %s", e.Name, e.Expected, e.Actual)
}

// SizeMismatchError is returned when the byte count differs from the descriptor.
type SizeMismatchError struct {
	Name     string
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch for %s: expected %d bytes, got %d", e.Name, e.Expected, e.Actual)
}

// StatusError is returned for non-2xx responses from an artifact source.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// IsIntegrityError reports whether err is a size or checksum mismatch.
func IsIntegrityError(err error) bool {
	var ce *ChecksumMismatchError
	var se *SizeMismatchError
	return errors.As(err, &ce) || errors.As(err, &se)
}

// ErrUnknownPrecision is returned when a descriptor has no variant for the requested precision.
var ErrUnknownPrecision = errors.New("unknown precision")
