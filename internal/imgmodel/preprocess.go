package imgmodel

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

// Options control how pixels map to tensor values and back.
// A tensor value is (pixel - Mean) / Scale.
type Options struct {
	Mean  float32
	Scale float32
	// BGR packs channels in blue, green, red order.
	BGR bool
}

// DefaultOptions maps [0,255] to [-1,1].
func DefaultOptions() Options { return Options{Mean: 127.5, Scale: 127.5} }

func (o Options) scale() float32 {
	if o.Scale == 0 {
		return 1
	}
	return o.Scale
}

// ResizeImage resizes img to exactly w×h with bicubic interpolation.
func ResizeImage(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return resize.Resize(uint(w), uint(h), img, resize.Bicubic)
}

// ImageToTensor packs img into a [1, channels, H, W] tensor. channels must be 1 or 3.
func ImageToTensor(img image.Image, channels int, opt Options) (*Tensor, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("%w: %d input channels", ErrShapeUnsupported, channels)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := NewTensor(1, int64(channels), int64(h), int64(w))
	plane := w * h
	mean, scale := opt.Mean, opt.scale()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.At(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			if channels == 1 {
				g := color.GrayModel.Convert(px).(color.Gray)
				t.Data[i] = (float32(g.Y) - mean) / scale
				continue
			}
			r, g, bl, _ := px.RGBA()
			rv, gv, bv := float32(r>>8), float32(g>>8), float32(bl>>8)
			if opt.BGR {
				rv, bv = bv, rv
			}
			t.Data[i] = (rv - mean) / scale
			t.Data[plane+i] = (gv - mean) / scale
			t.Data[2*plane+i] = (bv - mean) / scale
		}
	}
	return t, nil
}

// TensorToImage converts a [1,C,H,W] (or [C,H,W]) tensor back to an image by
// inverting the normalization. C=3 yields NRGBA, C=1 yields Gray. Wider outputs
// are treated as per-class scores and rendered as a Gray class-index map.
func TensorToImage(t *Tensor, opt Options) (image.Image, error) {
	_, c, h, w, err := t.NCHW()
	if err != nil {
		return nil, err
	}
	if h <= 0 || w <= 0 || len(t.Data) < c*h*w {
		return nil, fmt.Errorf("%w: tensor %v holds %d values", ErrShapeUnsupported, t.Shape, len(t.Data))
	}
	plane := w * h
	scale := opt.scale()
	denorm := func(v float32) uint8 {
		f := float64(v*scale + opt.Mean)
		return uint8(math.Max(0, math.Min(255, math.Round(f))))
	}
	switch {
	case c == 3:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i := 0; i < plane; i++ {
			r, g, b := denorm(t.Data[i]), denorm(t.Data[plane+i]), denorm(t.Data[2*plane+i])
			if opt.BGR {
				r, b = b, r
			}
			img.Pix[i*4+0] = r
			img.Pix[i*4+1] = g
			img.Pix[i*4+2] = b
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	case c == 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for i := 0; i < plane; i++ {
			img.Pix[i] = denorm(t.Data[i])
		}
		return img, nil
	case c > 3 && c <= 256:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for i := 0; i < plane; i++ {
			best, arg := t.Data[i], 0
			for k := 1; k < c; k++ {
				if v := t.Data[k*plane+i]; v > best {
					best, arg = v, k
				}
			}
			img.Pix[i] = uint8(arg)
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d output channels", ErrShapeUnsupported, c)
	}
}

// Normalize applies (x - mean) / scale in place.
func Normalize(data []float32, mean, scale float32) {
	if scale == 0 {
		scale = 1
	}
	for i := range data {
		data[i] = (data[i] - mean) / scale
	}
}

// L2Normalize scales v to unit length in place. A zero vector is left unchanged.
func L2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
