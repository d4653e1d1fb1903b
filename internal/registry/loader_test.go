package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"modelzoo/internal/descriptor"
)

func writeDescriptor(t *testing.T, root, model, body string) {
	t.Helper()
	dir := filepath.Join(root, model)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model.yml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func validBody(task string) string {
	return "task_type: " + task + `
files:
  - name: FP32/m.xml
    size: 3
    sha256: ` + strings.Repeat("c", 64) + `
    source: https://example.com/FP32/m.xml
  - name: FP32/m.bin
    size: 4
    sha256: ` + strings.Repeat("d", 64) + `
    source: https://example.com/FP32/m.bin
framework: dldt
`
}

func TestScanSkipsBrokenAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "zeta", validBody("object_attributes"))
	writeDescriptor(t, dir, "alpha", validBody("detection"))
	writeDescriptor(t, dir, "broken", "task_type: x\nfiles: []\n")
	if err := os.WriteFile(filepath.Join(dir, "stray.yml"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := Scan(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	models := r.List()
	if len(models) != 2 || models[0].ID != "alpha" || models[1].ID != "zeta" {
		t.Fatalf("unexpected models: %+v", models)
	}
	if len(models[0].Precisions) != 1 || models[0].Precisions[0] != "FP32" {
		t.Fatalf("precisions: %+v", models[0].Precisions)
	}
	if !strings.HasSuffix(models[1].Path, filepath.Join("zeta", "model.yml")) {
		t.Fatalf("path: %s", models[1].Path)
	}
}

func TestListReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "m", validBody("t"))
	r, err := Scan(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	out := r.List()
	out[0].ID = "mutated"
	if _, ok := r.Get("m"); !ok || r.List()[0].ID != "m" {
		t.Fatalf("registry mutated via returned slice")
	}
}

func TestScanExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	writeDescriptor(t, filepath.Join(home, "omz"), "x", validBody("t"))
	models, err := LoadDir("~/omz")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x" {
		t.Fatalf("unexpected: %+v", models)
	}
}

func TestScanMissingDir(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "nope"), zerolog.Nop()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewIgnoresDuplicates(t *testing.T) {
	a := &descriptor.Descriptor{Name: "a", TaskType: "first"}
	b := &descriptor.Descriptor{Name: "a", TaskType: "second"}
	r := New(a, b, nil)
	if r.Len() != 1 {
		t.Fatalf("len=%d", r.Len())
	}
	d, _ := r.Descriptor("a")
	if d.TaskType != "first" {
		t.Fatalf("expected first descriptor to win")
	}
}
