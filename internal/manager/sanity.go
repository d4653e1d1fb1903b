package manager

import (
	"os"
	"path/filepath"

	"modelzoo/internal/common/fsutil"
	"modelzoo/internal/imgmodel"
)

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	Runtime        string `json:"runtime"`
	RuntimeEnabled bool   `json:"runtime_enabled"`
	Models         int    `json:"models"`
	CacheDir       string `json:"cache_dir,omitempty"`
	CacheWritable  bool   `json:"cache_writable"`
	Error          string `json:"error,omitempty"`
}

// SanityCheck validates the runtime selection and the artifact cache.
// It does not mutate manager state and is safe to call at any time.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{
		Runtime:        m.runtime.Name(),
		RuntimeEnabled: m.runtime.Name() != imgmodel.RuntimeNone,
		Models:         m.registry.Len(),
	}
	if !r.RuntimeEnabled {
		r.Error = "no inference runtime configured"
	}
	if m.fetcher == nil {
		if r.Error == "" {
			r.Error = "artifact cache not configured"
		}
		return r
	}
	dir, err := fsutil.ExpandHome(m.fetcher.CacheDir)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.CacheDir = dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.Error = err.Error()
		return r
	}
	f, err := os.CreateTemp(dir, ".sanity-*")
	if err != nil {
		r.Error = err.Error()
		return r
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(filepath.Clean(name))
	r.CacheWritable = true
	return r
}
