package imgmodel

import "errors"

var (
	// ErrNotLoaded is returned when a model is used before Load.
	ErrNotLoaded = errors.New("model not loaded")
	// ErrShapeUnsupported is returned for tensor layouts the model cannot interpret.
	ErrShapeUnsupported = errors.New("unsupported tensor shape")
	// ErrRuntimeUnavailable signals that the inference engine is missing or unreachable.
	ErrRuntimeUnavailable = errors.New("inference runtime unavailable")
)
