package manager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelzoo/internal/descriptor"
	"modelzoo/internal/fetch"
	"modelzoo/internal/imgmodel"
	"modelzoo/internal/registry"
)

const testModel = "image-retrieval-0001"

var testFiles = map[string][]byte{
	"FP32/net.xml": []byte("<net fp32/>"),
	"FP32/net.bin": []byte("weights-32"),
	"FP16/net.xml": []byte("<net fp16/>"),
	"FP16/net.bin": []byte("weights-16"),
}

func sum(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

// testDescriptor lists testFiles served from base.
func testDescriptor(base string) *descriptor.Descriptor {
	d := &descriptor.Descriptor{Name: testModel, TaskType: "object_attributes", Framework: "dldt"}
	for _, name := range []string{"FP32/net.xml", "FP32/net.bin", "FP16/net.xml", "FP16/net.bin"} {
		b := testFiles[name]
		d.Files = append(d.Files, descriptor.File{Name: name, Size: int64(len(b)), SHA256: sum(b), Source: base + "/" + name})
	}
	return d
}

// seedCache writes testFiles into cacheDir as if they had been fetched.
func seedCache(t *testing.T, cacheDir string) {
	t.Helper()
	for name, b := range testFiles {
		p := filepath.Join(cacheDir, testModel, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, b, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// stubRuntime hands out a fresh stubNetwork per read.
type stubRuntime struct {
	reads   atomic.Int32
	readErr error
	delay   time.Duration
	// block, when set, is passed to every network for Infer to wait on.
	block   chan struct{}
	started chan struct{}
}

func (r *stubRuntime) Name() string { return "stub" }

func (r *stubRuntime) ReadNetwork(ctx context.Context, modelPath, weightsPath string) (imgmodel.Network, error) {
	r.reads.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.readErr != nil {
		return nil, r.readErr
	}
	return &stubNetwork{block: r.block, started: r.started}, nil
}

type stubNetwork struct {
	mu      sync.Mutex
	closed  bool
	block   chan struct{}
	started chan struct{}
}

func (n *stubNetwork) Inputs() []imgmodel.TensorInfo {
	return []imgmodel.TensorInfo{{Name: "data", Shape: []int64{1, 3, 4, 4}}}
}

func (n *stubNetwork) Outputs() []imgmodel.TensorInfo {
	return []imgmodel.TensorInfo{{Name: "out", Shape: []int64{1, 3, 4, 4}}}
}

func (n *stubNetwork) SetResize(string, bool) error { return nil }

func (n *stubNetwork) Infer(ctx context.Context, in map[string]*imgmodel.Tensor) (map[string]*imgmodel.Tensor, error) {
	if n.started != nil {
		select {
		case n.started <- struct{}{}:
		default:
		}
	}
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	t, ok := in["data"]
	if !ok {
		return nil, errors.New("missing input")
	}
	return map[string]*imgmodel.Tensor{"out": t}, nil
}

func (n *stubNetwork) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

// newTestManager builds a manager over a seeded cache.
func newTestManager(t *testing.T, rt imgmodel.Runtime, mutate func(*ManagerConfig)) (*Manager, *MemoryPublisher) {
	t.Helper()
	cache := t.TempDir()
	seedCache(t, cache)
	pub := NewMemoryPublisher()
	cfg := ManagerConfig{
		Registry:     registry.New(testDescriptor("http://artifacts.invalid")),
		Runtime:      rt,
		Fetcher:      fetch.New(cache, zerolog.Nop()),
		DefaultModel: testModel,
		Publisher:    pub,
		Logger:       zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m, pub
}

func hasEvent(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

// waitEvent polls pub until an event named want shows up.
func waitEvent(t *testing.T, pub *MemoryPublisher, want string) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range pub.Events() {
			if e.Name == want {
				return e
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event %q not published; got %v", want, pub.Names())
	return Event{}
}
