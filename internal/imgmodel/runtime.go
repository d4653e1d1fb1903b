package imgmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Runtime is the external inference engine: it reads a serialized network and
// hands back an executable Network.
type Runtime interface {
	// ReadNetwork loads the topology at modelPath. weightsPath is empty for
	// single-file formats.
	ReadNetwork(ctx context.Context, modelPath, weightsPath string) (Network, error)
	Name() string
}

// Network is a loaded, executable model.
type Network interface {
	Inputs() []TensorInfo
	Outputs() []TensorInfo
	// SetResize asks the engine to resize the named input to the network's
	// spatial size itself.
	SetResize(input string, enabled bool) error
	Infer(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Close() error
}

// Runtime kinds accepted by NewRuntime.
const (
	RuntimeOVMS = "ovms"
	RuntimeONNX = "onnx"
	RuntimeNone = "none"
)

// NewRuntime builds the runtime named by kind. For ovms, target is the server base
// URL; for onnx it is the path of the onnxruntime shared library (may be empty).
func NewRuntime(kind, target string, log zerolog.Logger) (Runtime, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case RuntimeOVMS:
		if target == "" {
			return nil, fmt.Errorf("ovms runtime requires a server URL")
		}
		return NewOVMSRuntime(target, log), nil
	case RuntimeONNX:
		return newONNXRuntime(target, log)
	case RuntimeNone, "":
		return noRuntime{}, nil
	default:
		return nil, fmt.Errorf("unknown runtime %q", kind)
	}
}

// noRuntime fails every load with ErrRuntimeUnavailable.
type noRuntime struct{}

func (noRuntime) Name() string { return RuntimeNone }

func (noRuntime) ReadNetwork(context.Context, string, string) (Network, error) {
	return nil, fmt.Errorf("%w: no runtime configured", ErrRuntimeUnavailable)
}
