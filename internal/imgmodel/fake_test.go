package imgmodel

import (
	"context"
	"errors"
	"fmt"
)

// fakeRuntime hands out fakeNetworks keyed by model path.
type fakeRuntime struct {
	nets    map[string]*fakeNetwork
	readErr error
	reads   []string
}

func (r *fakeRuntime) Name() string { return "fake" }

func (r *fakeRuntime) ReadNetwork(_ context.Context, modelPath, weightsPath string) (Network, error) {
	r.reads = append(r.reads, modelPath+"|"+weightsPath)
	if r.readErr != nil {
		return nil, r.readErr
	}
	n, ok := r.nets[modelPath]
	if !ok {
		return nil, fmt.Errorf("no network %s", modelPath)
	}
	return n, nil
}

// fakeNetwork runs fn over its inputs; by default it echoes the first input.
type fakeNetwork struct {
	inputs  []TensorInfo
	outputs []TensorInfo
	resize  map[string]bool
	fn      func(map[string]*Tensor) (map[string]*Tensor, error)
	last    map[string]*Tensor
	closed  bool
}

func (n *fakeNetwork) Inputs() []TensorInfo  { return n.inputs }
func (n *fakeNetwork) Outputs() []TensorInfo { return n.outputs }

func (n *fakeNetwork) SetResize(input string, enabled bool) error {
	if n.resize == nil {
		n.resize = map[string]bool{}
	}
	n.resize[input] = enabled
	return nil
}

func (n *fakeNetwork) Infer(ctx context.Context, in map[string]*Tensor) (map[string]*Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.last = in
	if n.fn != nil {
		return n.fn(in)
	}
	t, ok := in[n.inputs[0].Name]
	if !ok {
		return nil, errors.New("missing input")
	}
	return map[string]*Tensor{n.outputs[0].Name: t}, nil
}

func (n *fakeNetwork) Close() error { n.closed = true; return nil }

func echoNet(h, w int64) *fakeNetwork {
	return &fakeNetwork{
		inputs:  []TensorInfo{{Name: "data", Shape: []int64{1, 3, h, w}}},
		outputs: []TensorInfo{{Name: "out", Shape: []int64{1, 3, h, w}}},
	}
}
