package imgmodel

import (
	"context"
	"fmt"
	"image"
)

// ProcessingModel is an image model whose output is itself image-like (or an
// embedding). It records the output tensor geometry at load time and exposes the
// spatial size of the output view.
type ProcessingModel struct {
	*ImageModel

	outHeight   int
	outWidth    int
	outChannels int

	viewSize Size
}

// NewProcessingModel returns an unloaded model; its view size is 0x0 until Load.
func NewProcessingModel(modelFileName string, useAutoResize bool) *ProcessingModel {
	return &ProcessingModel{ImageModel: NewImageModel(modelFileName, useAutoResize)}
}

// ViewSize returns the stored output view size.
func (m *ProcessingModel) ViewSize() Size { return m.viewSize }

// OutputShape returns the recorded output height, width and channels.
func (m *ProcessingModel) OutputShape() (h, w, c int) {
	return m.outHeight, m.outWidth, m.outChannels
}

// Load loads the network and derives the output geometry from the bound output.
func (m *ProcessingModel) Load(ctx context.Context, rt Runtime) error {
	if err := m.ImageModel.Load(ctx, rt); err != nil {
		return err
	}
	for _, o := range m.Network().Outputs() {
		if o.Name != m.outputName {
			continue
		}
		if err := m.setOutputShape(o.Shape); err != nil {
			_ = m.ImageModel.Close()
			return err
		}
	}
	return nil
}

// setOutputShape accepts NCHW, CHW and [N, D] embeddings. Dynamic spatial dims
// leave the view size at zero until the first inference reports real ones.
func (m *ProcessingModel) setOutputShape(shape []int64) error {
	switch len(shape) {
	case 4:
		m.outChannels, m.outHeight, m.outWidth = dim(shape[1]), dim(shape[2]), dim(shape[3])
	case 3:
		m.outChannels, m.outHeight, m.outWidth = dim(shape[0]), dim(shape[1]), dim(shape[2])
	case 2:
		m.outChannels, m.outHeight, m.outWidth = dim(shape[1]), 1, 1
	default:
		return fmt.Errorf("%w: output %q shape %v", ErrShapeUnsupported, m.outputName, shape)
	}
	m.viewSize = Size{Width: m.outWidth, Height: m.outHeight}
	return nil
}

// IsEmbedding reports whether the model produces a vector rather than an image.
func (m *ProcessingModel) IsEmbedding() bool {
	return m.outHeight == 1 && m.outWidth == 1
}

// Infer preprocesses img, runs the network and postprocesses the output.
func (m *ProcessingModel) Infer(ctx context.Context, img image.Image) (*Result, error) {
	inputs, meta, err := m.Preprocess(img)
	if err != nil {
		return nil, err
	}
	res, err := m.InferTensors(ctx, inputs)
	if err != nil {
		return nil, err
	}
	res.Meta = meta
	return res, nil
}

// InferTensors runs already-prepared inputs through the network.
func (m *ProcessingModel) InferTensors(ctx context.Context, inputs map[string]*Tensor) (*Result, error) {
	out, err := m.Run(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return m.Postprocess(out)
}

// Postprocess converts the output tensor into an image of the view size or an
// L2-normalized embedding.
func (m *ProcessingModel) Postprocess(out *Tensor) (*Result, error) {
	if m.viewSize.Empty() {
		if err := m.setOutputShape(out.Shape); err != nil {
			return nil, err
		}
	}
	if len(out.Shape) == 2 || m.IsEmbedding() {
		n := out.Len()
		if n == 0 || len(out.Data) < n {
			return nil, fmt.Errorf("%w: embedding tensor %v holds %d values", ErrShapeUnsupported, out.Shape, len(out.Data))
		}
		// First batch item only; CHW outputs carry no batch dim.
		d := n
		if r := len(out.Shape); (r == 2 || r == 4) && out.Shape[0] > 0 {
			d = n / int(out.Shape[0])
		}
		vec := append([]float32(nil), out.Data[:d]...)
		L2Normalize(vec)
		return &Result{Embedding: vec, ViewSize: m.viewSize}, nil
	}
	img, err := TensorToImage(out, m.opts)
	if err != nil {
		return nil, err
	}
	return &Result{Image: img, ViewSize: m.viewSize}, nil
}
