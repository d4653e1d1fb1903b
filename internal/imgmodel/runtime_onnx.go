//go:build onnx

package imgmodel

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// onnxRuntime runs .onnx networks in-process through onnxruntime.
type onnxRuntime struct {
	log zerolog.Logger
}

func newONNXRuntime(libPath string, log zerolog.Logger) (Runtime, error) {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("%w: initialize onnxruntime: %v", ErrRuntimeUnavailable, err)
		}
	})
	if ortErr != nil {
		return nil, ortErr
	}
	return &onnxRuntime{log: log.With().Str("runtime", RuntimeONNX).Logger()}, nil
}

func (r *onnxRuntime) Name() string { return RuntimeONNX }

func (r *onnxRuntime) ReadNetwork(_ context.Context, modelPath, _ string) (Network, error) {
	ins, outs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", modelPath, err)
	}
	n := &onnxNetwork{resize: map[string]bool{}}
	var inNames, outNames []string
	for _, in := range ins {
		n.inputs = append(n.inputs, TensorInfo{Name: in.Name, Shape: []int64(in.Dimensions), Precision: fmt.Sprint(in.DataType)})
		inNames = append(inNames, in.Name)
	}
	for _, out := range outs {
		n.outputs = append(n.outputs, TensorInfo{Name: out.Name, Shape: []int64(out.Dimensions), Precision: fmt.Sprint(out.DataType)})
		outNames = append(outNames, out.Name)
	}
	sess, err := ort.NewDynamicAdvancedSession(modelPath, inNames, outNames, nil)
	if err != nil {
		return nil, fmt.Errorf("create onnx session for %s: %w", modelPath, err)
	}
	n.session = sess
	r.log.Debug().Str("model", modelPath).Int("inputs", len(inNames)).Int("outputs", len(outNames)).Msg("onnx session created")
	return n, nil
}

type onnxNetwork struct {
	session *ort.DynamicAdvancedSession
	inputs  []TensorInfo
	outputs []TensorInfo

	mu     sync.Mutex
	resize map[string]bool
}

func (n *onnxNetwork) Inputs() []TensorInfo  { return n.inputs }
func (n *onnxNetwork) Outputs() []TensorInfo { return n.outputs }

func (n *onnxNetwork) SetResize(input string, enabled bool) error {
	for _, in := range n.inputs {
		if in.Name == input {
			n.mu.Lock()
			n.resize[input] = enabled
			n.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("onnx network has no input %q", input)
}

func (n *onnxNetwork) Infer(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	var spatial []int64
	ins := make([]ort.ArbitraryTensor, 0, len(n.inputs))
	defer func() {
		for _, t := range ins {
			t.Destroy()
		}
	}()
	for _, info := range n.inputs {
		t, ok := inputs[info.Name]
		if !ok {
			return nil, fmt.Errorf("missing input %q", info.Name)
		}
		if n.resize[info.Name] {
			t = resizeToInput(t, info.Shape)
		}
		if spatial == nil && len(t.Shape) == 4 {
			spatial = t.Shape[2:]
		}
		ot, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", info.Name, err)
		}
		ins = append(ins, ot)
	}

	outs := make([]ort.ArbitraryTensor, 0, len(n.outputs))
	typed := make([]*ort.Tensor[float32], 0, len(n.outputs))
	defer func() {
		for _, t := range outs {
			t.Destroy()
		}
	}()
	for _, info := range n.outputs {
		shape := concreteShape(info.Shape, spatial)
		ot, err := ort.NewEmptyTensor[float32](ort.NewShape(shape...))
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", info.Name, err)
		}
		outs = append(outs, ot)
		typed = append(typed, ot)
	}

	if err := n.session.Run(ins, outs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	res := make(map[string]*Tensor, len(typed))
	for i, ot := range typed {
		res[n.outputs[i].Name] = &Tensor{
			Shape: append([]int64(nil), ot.GetShape()...),
			Data:  append([]float32(nil), ot.GetData()...),
		}
	}
	return res, nil
}

func (n *onnxNetwork) Close() error {
	if n.session == nil {
		return nil
	}
	err := n.session.Destroy()
	n.session = nil
	return err
}

// concreteShape fills dynamic dims: batch becomes 1, trailing spatial dims come
// from the input.
func concreteShape(shape, spatial []int64) []int64 {
	out := append([]int64(nil), shape...)
	for i, d := range out {
		if d > 0 {
			continue
		}
		switch {
		case i == 0:
			out[i] = 1
		case len(out) == 4 && i >= 2 && len(spatial) == 2:
			out[i] = spatial[i-2]
		default:
			out[i] = 1
		}
	}
	return out
}
