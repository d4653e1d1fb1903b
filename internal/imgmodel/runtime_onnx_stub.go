//go:build !onnx

package imgmodel

import (
	"fmt"

	"github.com/rs/zerolog"
)

// newONNXRuntime without -tags=onnx: the onnxruntime binding is not compiled in.
func newONNXRuntime(string, zerolog.Logger) (Runtime, error) {
	return nil, fmt.Errorf("%w: built without onnx support (rebuild with -tags=onnx)", ErrRuntimeUnavailable)
}
