package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"modelzoo/internal/common/fsutil"
	"modelzoo/internal/descriptor"
	"modelzoo/pkg/types"
)

// descriptorNames are the file names looked for inside each model directory.
var descriptorNames = []string{"model.yml", "model.yaml"}

// Registry is an immutable table of model descriptors keyed by model ID.
type Registry struct {
	ids   []string
	descs map[string]*descriptor.Descriptor
	paths map[string]string
}

// New builds a registry from already-parsed descriptors. Later duplicates of an ID
// are ignored.
func New(descs ...*descriptor.Descriptor) *Registry {
	r := &Registry{descs: make(map[string]*descriptor.Descriptor), paths: make(map[string]string)}
	for _, d := range descs {
		if d == nil || d.Name == "" {
			continue
		}
		if _, dup := r.descs[d.Name]; dup {
			continue
		}
		r.descs[d.Name] = d
		r.ids = append(r.ids, d.Name)
	}
	sort.Strings(r.ids)
	return r
}

// Scan reads every <dir>/<model>/model.yml under dir. Descriptors that fail to
// parse are skipped and logged.
func Scan(dir string, log zerolog.Logger) (*Registry, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var descs []*descriptor.Descriptor
	paths := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, name := range descriptorNames {
			p := filepath.Join(abs, e.Name(), name)
			if !fsutil.PathExists(p) {
				continue
			}
			d, err := descriptor.Load(p)
			if err != nil {
				log.Warn().Err(err).Str("path", p).Msg("skipping descriptor")
				break
			}
			descs = append(descs, d)
			paths[d.Name] = p
			break
		}
	}
	r := New(descs...)
	r.paths = paths
	log.Debug().Str("dir", abs).Int("models", len(r.ids)).Msg("registry loaded")
	return r, nil
}

// LoadDir scans dir and returns the API view of every model found.
func LoadDir(dir string) ([]types.Model, error) {
	r, err := Scan(dir, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	return r.List(), nil
}

// Descriptor returns the descriptor for id.
func (r *Registry) Descriptor(id string) (*descriptor.Descriptor, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.descs[id]
	return d, ok
}

// Get returns the API view for id.
func (r *Registry) Get(id string) (types.Model, bool) {
	d, ok := r.Descriptor(id)
	if !ok {
		return types.Model{}, false
	}
	return r.view(d), true
}

// List returns all models sorted by ID. The slice is freshly allocated.
func (r *Registry) List() []types.Model {
	if r == nil {
		return nil
	}
	out := make([]types.Model, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.view(r.descs[id]))
	}
	return out
}

// Len is the number of models.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}

func (r *Registry) view(d *descriptor.Descriptor) types.Model {
	ps := d.Precisions()
	precisions := make([]string, len(ps))
	for i, p := range ps {
		precisions[i] = string(p)
	}
	return types.Model{
		ID:          d.Name,
		Description: d.Description,
		TaskType:    d.TaskType,
		Framework:   d.Framework,
		License:     d.License,
		Precisions:  precisions,
		Path:        r.paths[d.Name],
	}
}
