package descriptor

import (
	"errors"
	"fmt"
)

// ErrInvalidDescriptor is wrapped by every validation failure.
var ErrInvalidDescriptor = errors.New("invalid descriptor")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDescriptor, fmt.Sprintf(format, args...))
}

// IsInvalid reports whether err is a descriptor validation failure.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalidDescriptor) }
