package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"modelzoo/internal/fetch"
	"modelzoo/internal/imgmodel"
	"modelzoo/internal/registry"
	"modelzoo/pkg/types"
)

type Manager struct {
	mu       sync.RWMutex
	state    State
	cur      *ModelInfo
	err      string
	registry *registry.Registry
	runtime  imgmodel.Runtime
	fetcher  *fetch.Fetcher
	budgetMB int
	marginMB int

	defaultModel     string
	defaultPrecision string
	autoResize       bool
	opts             *imgmodel.Options

	// Multi-instance fields
	instances map[string]*Instance
	usedEstMB int

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration
	// translateCh admits one translation at a time.
	translateCh chan struct{}

	publisher EventPublisher
	log       zerolog.Logger

	lruPath string
	lruMeta map[string]lruRecord

	startTime time.Time
	loads     atomic.Uint64
	evictions atomic.Uint64
}

// SetEventPublisher replaces the event sink; nil restores the no-op publisher.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	p.Publish(e)
}

func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateError {
		return false
	}
	// Ready if any instance is ready
	for _, inst := range m.instances {
		if inst.State == StateReady {
			return true
		}
	}
	return false
}

// ListModels returns the registry view; callers may mutate the result.
func (m *Manager) ListModels() []types.Model { return m.registry.List() }

// RuntimeName names the inference runtime in use.
func (m *Manager) RuntimeName() string { return m.runtime.Name() }

// Describe returns the registry view of id with its precision variants.
func (m *Manager) Describe(id string) (types.ModelDetail, bool) {
	model, ok := m.registry.Get(id)
	if !ok {
		return types.ModelDetail{}, false
	}
	d, _ := m.registry.Descriptor(id)
	out := types.ModelDetail{Model: model}
	for _, v := range d.Variants() {
		vi := types.VariantInfo{Precision: string(v.Precision), SizeBytes: v.Size()}
		for _, f := range v.Files() {
			vi.Files = append(vi.Files, f.Name)
		}
		out.Variants = append(out.Variants, vi)
	}
	return out, true
}
