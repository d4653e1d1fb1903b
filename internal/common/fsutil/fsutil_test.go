package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if p, err := ExpandHome("~"); err != nil || p != home {
		t.Fatalf("expected %q, got %q err=%v", home, p, err)
	}
	exp, err := ExpandHome("~/omz")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if filepath.Base(exp) != "omz" || filepath.Dir(exp) != home {
		t.Fatalf("unexpected expanded path: %q", exp)
	}
}

func TestFileSizeAndExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "w.bin")
	if err := os.WriteFile(p, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := FileSize(p); got != 5 {
		t.Fatalf("size=%d", got)
	}
	if got := FileSize(dir); got != -1 {
		t.Fatalf("dir size=%d", got)
	}
	if got := FileSize(filepath.Join(dir, "nope")); got != -1 {
		t.Fatalf("missing size=%d", got)
	}
	if !PathExists(p) || PathExists(filepath.Join(dir, "nope")) {
		t.Fatalf("PathExists mismatch")
	}
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()
	p, err := SafeJoin(root, "FP16/m.xml")
	if err != nil || p != filepath.Join(root, "FP16", "m.xml") {
		t.Fatalf("got %q err=%v", p, err)
	}
	if _, err := SafeJoin(root, "../outside.bin"); err == nil {
		t.Fatalf("expected escape error")
	}
	if _, err := SafeJoin(root, "FP16/../../x"); err == nil {
		t.Fatalf("expected escape error for nested ..")
	}
}
