package imgmodel

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ADE20K label count used by the exemplar-guided translation models.
const DefaultSemanticClasses = 151

// MaskFromImage extracts a label map from a decoded mask image. Paletted images
// yield palette indices; anything else yields the red channel.
func MaskFromImage(img image.Image) *image.Gray {
	switch m := img.(type) {
	case *image.Gray:
		return m
	case *image.Paletted:
		b := m.Bounds()
		g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g.Pix[y*g.Stride+x] = m.ColorIndexAt(b.Min.X+x, b.Min.Y+y)
			}
		}
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Pix[y*g.Stride+x] = uint8(r >> 8)
		}
	}
	return g
}

// ResizeMaskNearest resizes a label map without blending labels.
func ResizeMaskNearest(mask *image.Gray, w, h int) *image.Gray {
	b := mask.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return mask
	}
	out := imaging.Resize(mask, w, h, imaging.NearestNeighbor)
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Pix[y*g.Stride+x] = out.Pix[y*out.Stride+x*4]
		}
	}
	return g
}

// OneHot scatters a label map into a [1, classes, H, W] tensor.
func OneHot(mask *image.Gray, classes int) (*Tensor, error) {
	if classes <= 0 {
		return nil, fmt.Errorf("one-hot: classes must be positive, got %d", classes)
	}
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	t := NewTensor(1, int64(classes), int64(h), int64(w))
	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			label := int(mask.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			if label >= classes {
				return nil, fmt.Errorf("one-hot: label %d at (%d,%d) exceeds %d classes", label, x, y, classes)
			}
			t.Data[label*plane+y*w+x] = 1
		}
	}
	return t, nil
}

// ConcatChannels joins two NCHW tensors along the channel axis.
func ConcatChannels(a, b *Tensor) (*Tensor, error) {
	an, ac, ah, aw, err := a.NCHW()
	if err != nil {
		return nil, err
	}
	bn, bc, bh, bw, err := b.NCHW()
	if err != nil {
		return nil, err
	}
	if an != bn || ah != bh || aw != bw {
		return nil, fmt.Errorf("%w: cannot concat %v with %v", ErrShapeUnsupported, a.Shape, b.Shape)
	}
	if len(a.Data) < a.Len() || len(b.Data) < b.Len() {
		return nil, fmt.Errorf("%w: short tensor data", ErrShapeUnsupported)
	}
	plane := ah * aw
	out := NewTensor(int64(an), int64(ac+bc), int64(ah), int64(aw))
	for n := 0; n < an; n++ {
		dst := out.Data[n*(ac+bc)*plane:]
		copy(dst, a.Data[n*ac*plane:(n+1)*ac*plane])
		copy(dst[ac*plane:], b.Data[n*bc*plane:(n+1)*bc*plane])
	}
	return out, nil
}
