package imgmodel

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func near(got uint32, want int) bool {
	d := int(got) - want
	return d >= -1 && d <= 1
}

func TestViewSizeZeroBeforeLoad(t *testing.T) {
	m := NewProcessingModel("FP16/net.xml", false)
	if got := m.ViewSize(); got != (Size{}) {
		t.Fatalf("expected 0x0 before load, got %v", got)
	}
	if h, w, c := m.OutputShape(); h != 0 || w != 0 || c != 0 {
		t.Fatalf("expected zero output shape, got %d,%d,%d", h, w, c)
	}
	if m.ModelFileName() != "FP16/net.xml" || m.UseAutoResize() {
		t.Fatalf("constructor fields not kept")
	}
}

func TestLoadRecordsOutputGeometry(t *testing.T) {
	net := &fakeNetwork{
		inputs:  []TensorInfo{{Name: "data", Shape: []int64{1, 3, 256, 256}}},
		outputs: []TensorInfo{{Name: "gen", Shape: []int64{1, 3, 128, 192}}},
	}
	rt := &fakeRuntime{nets: map[string]*fakeNetwork{"m/FP32/net.xml": net}}
	m := NewProcessingModel("m/FP32/net.xml", false)
	if err := m.Load(context.Background(), rt); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := m.ViewSize(); got != (Size{Width: 192, Height: 128}) {
		t.Fatalf("view size: got %v", got)
	}
	if h, w, c := m.OutputShape(); h != 128 || w != 192 || c != 3 {
		t.Fatalf("output shape: got %d,%d,%d", h, w, c)
	}
	if len(rt.reads) != 1 || rt.reads[0] != "m/FP32/net.xml|m/FP32/net.bin" {
		t.Fatalf("unexpected reads: %v", rt.reads)
	}
	if net.resize["data"] {
		t.Fatalf("auto-resize should be off")
	}
	// repeated reads give the same value
	if m.ViewSize() != m.ViewSize() {
		t.Fatalf("view size not stable")
	}
}

func TestLoadShapes(t *testing.T) {
	cases := []struct {
		name  string
		shape []int64
		want  Size
		err   bool
	}{
		{"chw", []int64{3, 64, 32}, Size{Width: 32, Height: 64}, false},
		{"embedding", []int64{1, 256}, Size{Width: 1, Height: 1}, false},
		{"dynamic", []int64{-1, 3, -1, -1}, Size{}, false},
		{"scalar", []int64{10}, Size{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			net := &fakeNetwork{
				inputs:  []TensorInfo{{Name: "data", Shape: []int64{1, 3, 8, 8}}},
				outputs: []TensorInfo{{Name: "out", Shape: tc.shape}},
			}
			m := NewProcessingModel("net.onnx", false)
			err := m.Load(context.Background(), &fakeRuntime{nets: map[string]*fakeNetwork{"net.onnx": net}})
			if tc.err {
				if !errors.Is(err, ErrShapeUnsupported) {
					t.Fatalf("expected ErrShapeUnsupported, got %v", err)
				}
				if !net.closed {
					t.Fatalf("network should be closed on failed load")
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got := m.ViewSize(); got != tc.want {
				t.Fatalf("view size: got %v want %v", got, tc.want)
			}
		})
	}
}

func TestLoadRejectsNonNCHWInput(t *testing.T) {
	net := &fakeNetwork{
		inputs:  []TensorInfo{{Name: "data", Shape: []int64{1, 3}}},
		outputs: []TensorInfo{{Name: "out", Shape: []int64{1, 3, 8, 8}}},
	}
	m := NewProcessingModel("net.onnx", false)
	err := m.Load(context.Background(), &fakeRuntime{nets: map[string]*fakeNetwork{"net.onnx": net}})
	if !errors.Is(err, ErrShapeUnsupported) {
		t.Fatalf("expected ErrShapeUnsupported, got %v", err)
	}
}

func TestLoadRuntimeError(t *testing.T) {
	m := NewProcessingModel("net.xml", false)
	err := m.Load(context.Background(), &fakeRuntime{readErr: ErrRuntimeUnavailable})
	if !errors.Is(err, ErrRuntimeUnavailable) {
		t.Fatalf("expected ErrRuntimeUnavailable, got %v", err)
	}
	if m.ViewSize() != (Size{}) {
		t.Fatalf("view size must stay 0x0 after failed load")
	}
	if err := m.Load(context.Background(), nil); !errors.Is(err, ErrRuntimeUnavailable) {
		t.Fatalf("nil runtime: got %v", err)
	}
}

func TestInferBeforeLoad(t *testing.T) {
	m := NewProcessingModel("net.xml", false)
	if _, err := m.Infer(context.Background(), solid(4, 4, color.NRGBA{A: 255})); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestInferRoundTripsPixels(t *testing.T) {
	net := echoNet(8, 8)
	m := NewProcessingModel("net.xml", false)
	if err := m.Load(context.Background(), &fakeRuntime{nets: map[string]*fakeNetwork{"net.xml": net}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	src := solid(16, 4, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	res, err := m.Infer(context.Background(), src)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if res.Meta.OriginalSize != (Size{Width: 16, Height: 4}) || res.Meta.InputSize != (Size{Width: 8, Height: 8}) {
		t.Fatalf("meta: %+v", res.Meta)
	}
	got := res.Image.Bounds()
	if got.Dx() != 8 || got.Dy() != 8 {
		t.Fatalf("output size: %v", got)
	}
	r, g, b, _ := res.Image.At(3, 3).RGBA()
	if !near(r>>8, 200) || !near(g>>8, 100) || !near(b>>8, 50) {
		t.Fatalf("pixel: %d %d %d", r>>8, g>>8, b>>8)
	}
	in := net.last["data"]
	if in.Shape[2] != 8 || in.Shape[3] != 8 {
		t.Fatalf("input tensor shape: %v", in.Shape)
	}
	// (200-127.5)/127.5
	if math.Abs(float64(in.Data[0])-0.5686) > 0.02 {
		t.Fatalf("normalized red: %v", in.Data[0])
	}
}

func TestAutoResizePassesNativeSize(t *testing.T) {
	net := echoNet(8, 8)
	net.fn = func(in map[string]*Tensor) (map[string]*Tensor, error) {
		return map[string]*Tensor{"out": NewTensor(1, 3, 8, 8)}, nil
	}
	m := NewProcessingModel("net.xml", true)
	if err := m.Load(context.Background(), &fakeRuntime{nets: map[string]*fakeNetwork{"net.xml": net}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !net.resize["data"] {
		t.Fatalf("expected resize enabled on input")
	}
	res, err := m.Infer(context.Background(), solid(20, 10, color.NRGBA{A: 255}))
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	in := net.last["data"]
	if in.Shape[2] != 10 || in.Shape[3] != 20 {
		t.Fatalf("expected native 10x20 input, got %v", in.Shape)
	}
	if res.Meta.InputSize != (Size{Width: 20, Height: 10}) {
		t.Fatalf("input size meta: %v", res.Meta.InputSize)
	}
}

func TestEmbeddingOutputIsUnitLength(t *testing.T) {
	net := &fakeNetwork{
		inputs:  []TensorInfo{{Name: "data", Shape: []int64{1, 3, 4, 4}}},
		outputs: []TensorInfo{{Name: "emb", Shape: []int64{1, 2}}},
		fn: func(map[string]*Tensor) (map[string]*Tensor, error) {
			return map[string]*Tensor{"emb": {Shape: []int64{1, 2}, Data: []float32{3, 4}}}, nil
		},
	}
	m := NewProcessingModel("net.xml", false)
	if err := m.Load(context.Background(), &fakeRuntime{nets: map[string]*fakeNetwork{"net.xml": net}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := m.Infer(context.Background(), solid(4, 4, color.NRGBA{A: 255}))
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if res.Image != nil || len(res.Embedding) != 2 {
		t.Fatalf("expected embedding only, got %+v", res)
	}
	if math.Abs(float64(res.Embedding[0])-0.6) > 1e-6 || math.Abs(float64(res.Embedding[1])-0.8) > 1e-6 {
		t.Fatalf("embedding: %v", res.Embedding)
	}
}

func TestCHWEmbeddingKeepsAllChannels(t *testing.T) {
	const c = 256
	net := &fakeNetwork{
		inputs:  []TensorInfo{{Name: "data", Shape: []int64{1, 3, 4, 4}}},
		outputs: []TensorInfo{{Name: "emb", Shape: []int64{c, 1, 1}}},
		fn: func(map[string]*Tensor) (map[string]*Tensor, error) {
			out := NewTensor(c, 1, 1)
			for i := range out.Data {
				out.Data[i] = float32(i + 1)
			}
			return map[string]*Tensor{"emb": out}, nil
		},
	}
	m := NewProcessingModel("net.xml", false)
	if err := m.Load(context.Background(), &fakeRuntime{nets: map[string]*fakeNetwork{"net.xml": net}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if h, w, ch := m.OutputShape(); h != 1 || w != 1 || ch != c {
		t.Fatalf("output shape: %d,%d,%d", h, w, ch)
	}
	res, err := m.Infer(context.Background(), solid(4, 4, color.NRGBA{A: 255}))
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if len(res.Embedding) != c {
		t.Fatalf("embedding length %d, want %d", len(res.Embedding), c)
	}
	var sum float64
	for _, v := range res.Embedding {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1) > 1e-4 {
		t.Fatalf("not unit length: %v", sum)
	}
	if res.Embedding[c-1] <= res.Embedding[0] {
		t.Fatalf("order lost: first=%v last=%v", res.Embedding[0], res.Embedding[c-1])
	}
}

func TestDynamicOutputFilledOnFirstInference(t *testing.T) {
	net := &fakeNetwork{
		inputs:  []TensorInfo{{Name: "data", Shape: []int64{1, 1, 4, 4}}},
		outputs: []TensorInfo{{Name: "out", Shape: []int64{1, 1, -1, -1}}},
		fn: func(map[string]*Tensor) (map[string]*Tensor, error) {
			return map[string]*Tensor{"out": NewTensor(1, 1, 6, 2)}, nil
		},
	}
	m := NewProcessingModel("net.xml", false)
	if err := m.Load(context.Background(), &fakeRuntime{nets: map[string]*fakeNetwork{"net.xml": net}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !m.ViewSize().Empty() {
		t.Fatalf("expected empty view size for dynamic output")
	}
	if _, err := m.Infer(context.Background(), solid(4, 4, color.NRGBA{A: 255})); err != nil {
		t.Fatalf("infer: %v", err)
	}
	if got := m.ViewSize(); got != (Size{Width: 2, Height: 6}) {
		t.Fatalf("view size after infer: %v", got)
	}
}

func TestCloseReleasesNetwork(t *testing.T) {
	net := echoNet(4, 4)
	m := NewProcessingModel("net.xml", false)
	if err := m.Load(context.Background(), &fakeRuntime{nets: map[string]*fakeNetwork{"net.xml": net}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !net.closed || m.Network() != nil {
		t.Fatalf("network not released")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestCloseDuringRun(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	net := echoNet(4, 4)
	net.fn = func(in map[string]*Tensor) (map[string]*Tensor, error) {
		close(started)
		<-release
		return map[string]*Tensor{"out": in["data"]}, nil
	}
	m := NewProcessingModel("net.xml", false)
	if err := m.Load(context.Background(), &fakeRuntime{nets: map[string]*fakeNetwork{"net.xml": net}}); err != nil {
		t.Fatalf("load: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := m.Infer(context.Background(), solid(4, 4, color.NRGBA{A: 255}))
		done <- err
	}()
	<-started
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight infer: %v", err)
	}
	if _, err := m.Infer(context.Background(), solid(4, 4, color.NRGBA{A: 255})); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded after close, got %v", err)
	}
}
