package imgmodel

// resizeToInput bilinearly resamples the spatial planes of an NCHW tensor to the
// fixed H×W of a network input. Engines without native input resizing use it to
// honor SetResize. Tensors already at size, or inputs with dynamic dims, pass
// through unchanged.
func resizeToInput(t *Tensor, want []int64) *Tensor {
	if len(t.Shape) != 4 || len(want) != 4 || want[2] <= 0 || want[3] <= 0 {
		return t
	}
	n, c, h, w := int(t.Shape[0]), int(t.Shape[1]), int(t.Shape[2]), int(t.Shape[3])
	oh, ow := int(want[2]), int(want[3])
	if h == oh && w == ow {
		return t
	}
	out := NewTensor(int64(n), int64(c), int64(oh), int64(ow))
	sy := float32(h) / float32(oh)
	sx := float32(w) / float32(ow)
	for p := 0; p < n*c; p++ {
		src := t.Data[p*h*w : (p+1)*h*w]
		dst := out.Data[p*oh*ow : (p+1)*oh*ow]
		for y := 0; y < oh; y++ {
			fy := (float32(y)+0.5)*sy - 0.5
			y0, wy := splitCoord(fy, h)
			y1 := min(y0+1, h-1)
			for x := 0; x < ow; x++ {
				fx := (float32(x)+0.5)*sx - 0.5
				x0, wx := splitCoord(fx, w)
				x1 := min(x0+1, w-1)
				top := src[y0*w+x0]*(1-wx) + src[y0*w+x1]*wx
				bot := src[y1*w+x0]*(1-wx) + src[y1*w+x1]*wx
				dst[y*ow+x] = top*(1-wy) + bot*wy
			}
		}
	}
	return out
}

func splitCoord(f float32, limit int) (int, float32) {
	if f <= 0 {
		return 0, 0
	}
	i := int(f)
	if i >= limit-1 {
		return limit - 1, 0
	}
	return i, f - float32(i)
}
