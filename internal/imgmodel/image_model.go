package imgmodel

import (
	"context"
	"fmt"
	"image"
	"sync"

	"modelzoo/internal/descriptor"
)

// Model is the capability shared by image models: load through a runtime, turn
// an image into an output.
type Model interface {
	Load(ctx context.Context, rt Runtime) error
	Preprocess(img image.Image) (map[string]*Tensor, Meta, error)
	Infer(ctx context.Context, img image.Image) (*Result, error)
	Close() error
}

// ImageModel holds what every image model needs: the network, its input/output
// blob names and the network's input geometry.
type ImageModel struct {
	modelFileName string
	useAutoResize bool
	opts          Options

	// mu guards net; Close may run while a drain-timed-out Run is in flight.
	mu         sync.RWMutex
	net        Network
	inputName  string
	outputName string
	inChannels int
	inHeight   int
	inWidth    int
}

// NewImageModel prepares a model for modelFileName. When useAutoResize is set the
// image is passed at its native size and the engine resizes it; otherwise it is
// resized here before packing.
func NewImageModel(modelFileName string, useAutoResize bool) *ImageModel {
	return &ImageModel{modelFileName: modelFileName, useAutoResize: useAutoResize, opts: DefaultOptions()}
}

func (m *ImageModel) ModelFileName() string { return m.modelFileName }
func (m *ImageModel) UseAutoResize() bool   { return m.useAutoResize }
func (m *ImageModel) InputName() string     { return m.inputName }
func (m *ImageModel) OutputName() string    { return m.outputName }

// SetOptions replaces the pixel normalization. Call before Infer.
func (m *ImageModel) SetOptions(o Options) { m.opts = o }

// Options returns the pixel normalization in use.
func (m *ImageModel) Options() Options { return m.opts }

// InputSize is the network's spatial input size (zero if dynamic).
func (m *ImageModel) InputSize() Size { return Size{Width: m.inWidth, Height: m.inHeight} }

// Load reads the network and binds the first input and first output.
func (m *ImageModel) Load(ctx context.Context, rt Runtime) error {
	if rt == nil {
		return fmt.Errorf("%w: nil runtime", ErrRuntimeUnavailable)
	}
	net, err := rt.ReadNetwork(ctx, m.modelFileName, descriptor.WeightsPath(m.modelFileName))
	if err != nil {
		return fmt.Errorf("read network %s: %w", m.modelFileName, err)
	}
	if err := m.bind(net); err != nil {
		_ = net.Close()
		return err
	}
	m.mu.Lock()
	m.net = net
	m.mu.Unlock()
	return nil
}

func (m *ImageModel) bind(net Network) error {
	ins, outs := net.Inputs(), net.Outputs()
	if len(ins) == 0 || len(outs) == 0 {
		return fmt.Errorf("%w: network has %d inputs and %d outputs", ErrShapeUnsupported, len(ins), len(outs))
	}
	in := ins[0]
	if len(in.Shape) != 4 {
		return fmt.Errorf("%w: input %q must be NCHW, got %v", ErrShapeUnsupported, in.Name, in.Shape)
	}
	m.inputName, m.outputName = in.Name, outs[0].Name
	m.inChannels = int(in.Shape[1])
	m.inHeight, m.inWidth = dim(in.Shape[2]), dim(in.Shape[3])
	if !m.useAutoResize && (m.inHeight == 0 || m.inWidth == 0) {
		return fmt.Errorf("%w: input %q has dynamic spatial dims; enable auto-resize", ErrShapeUnsupported, in.Name)
	}
	return net.SetResize(in.Name, m.useAutoResize)
}

func dim(d int64) int {
	if d <= 0 {
		return 0
	}
	return int(d)
}

// Preprocess turns img into the network input tensor.
func (m *ImageModel) Preprocess(img image.Image) (map[string]*Tensor, Meta, error) {
	if m.Network() == nil {
		return nil, Meta{}, ErrNotLoaded
	}
	b := img.Bounds()
	meta := Meta{OriginalSize: Size{Width: b.Dx(), Height: b.Dy()}}
	if meta.OriginalSize.Empty() {
		return nil, meta, fmt.Errorf("empty image")
	}
	src := img
	if !m.useAutoResize {
		src = ResizeImage(img, m.inWidth, m.inHeight)
	}
	t, err := ImageToTensor(src, m.inChannels, m.opts)
	if err != nil {
		return nil, meta, err
	}
	meta.InputSize = Size{Width: int(t.Shape[3]), Height: int(t.Shape[2])}
	return map[string]*Tensor{m.inputName: t}, meta, nil
}

// Run executes the network and returns the bound output.
func (m *ImageModel) Run(ctx context.Context, inputs map[string]*Tensor) (*Tensor, error) {
	net := m.Network()
	if net == nil {
		return nil, ErrNotLoaded
	}
	outs, err := net.Infer(ctx, inputs)
	if err != nil {
		return nil, err
	}
	out, ok := outs[m.outputName]
	if !ok || out == nil {
		return nil, fmt.Errorf("runtime returned no %q output", m.outputName)
	}
	return out, nil
}

// Network exposes the loaded network (nil before Load).
func (m *ImageModel) Network() Network {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.net
}

// Close releases the network.
func (m *ImageModel) Close() error {
	m.mu.Lock()
	net := m.net
	m.net = nil
	m.mu.Unlock()
	if net == nil {
		return nil
	}
	return net.Close()
}
