package manager

import (
	"errors"
	"fmt"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// ErrTooBusy returns the backpressure error for id.
func ErrTooBusy(id string) error { return tooBusyError{modelID: id} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error when a requested model id (or precision) is
// not present in the registry.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (runtime,
// artifacts not fetched) so the HTTP layer can return 503 instead of 500.
type dependencyUnavailableError struct {
	msg string
	err error
}

func (e dependencyUnavailableError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e dependencyUnavailableError) Unwrap() error { return e.err }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

func dependencyUnavailable(msg string, cause error) error {
	return dependencyUnavailableError{msg: msg, err: cause}
}

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// budgetExceededError is returned when nothing can be evicted to make room.
type budgetExceededError struct {
	requiredMB int
	budgetMB   int
	usedMB     int
}

func (e budgetExceededError) Error() string {
	return fmt.Sprintf("memory budget exceeded: need %d MB, %d of %d MB in use", e.requiredMB, e.usedMB, e.budgetMB)
}

// IsBudgetExceeded reports whether err came from a failed eviction.
func IsBudgetExceeded(err error) bool {
	var e budgetExceededError
	return errors.As(err, &e)
}
