package imgmodel

import (
	"fmt"
	"image"
)

// Size is a 2D extent in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Empty reports whether either side is zero.
func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

// TensorInfo describes a network input or output as reported by the runtime.
// Dimensions that are not fixed are reported as -1.
type TensorInfo struct {
	Name      string  `json:"name"`
	Shape     []int64 `json:"shape"`
	Precision string  `json:"precision,omitempty"`
}

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape ...int64) *Tensor {
	return &Tensor{Shape: append([]int64(nil), shape...), Data: make([]float32, numel(shape))}
}

// Len is the element count implied by the shape.
func (t *Tensor) Len() int { return numel(t.Shape) }

// NCHW returns the tensor dimensions for a 4-D (or 3-D CHW) tensor.
func (t *Tensor) NCHW() (n, c, h, w int, err error) {
	switch len(t.Shape) {
	case 4:
		return int(t.Shape[0]), int(t.Shape[1]), int(t.Shape[2]), int(t.Shape[3]), nil
	case 3:
		return 1, int(t.Shape[0]), int(t.Shape[1]), int(t.Shape[2]), nil
	default:
		return 0, 0, 0, 0, fmt.Errorf("%w: expected NCHW, got %v", ErrShapeUnsupported, t.Shape)
	}
}

func numel(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0
		}
		n *= int(d)
	}
	return n
}

// Meta carries preprocessing facts needed after inference.
type Meta struct {
	OriginalSize Size
	InputSize    Size
}

// Result is the postprocessed output of an image model. Exactly one of Image and
// Embedding is set.
type Result struct {
	Image     image.Image
	Embedding []float32
	ViewSize  Size
	Meta      Meta
}
