package manager

import (
	"time"

	"github.com/rs/zerolog"

	"modelzoo/internal/fetch"
	"modelzoo/internal/imgmodel"
	"modelzoo/internal/registry"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry *registry.Registry
	Runtime  imgmodel.Runtime
	// Fetcher resolves cached artifact paths and performs fetch/verify operations.
	Fetcher *fetch.Fetcher

	DefaultModel     string
	DefaultPrecision string

	BudgetMB      int
	MarginMB      int
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration

	// AutoResize lets the runtime resize inputs instead of the caller.
	AutoResize bool
	// Options overrides pixel normalization for every loaded model.
	Options *imgmodel.Options

	// StatePath, when set, persists instance last-used times across restarts.
	StatePath string

	Publisher EventPublisher
	Logger    zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:            StateLoading,
		registry:         cfg.Registry,
		runtime:          cfg.Runtime,
		fetcher:          cfg.Fetcher,
		budgetMB:         cfg.BudgetMB,
		marginMB:         cfg.MarginMB,
		defaultModel:     cfg.DefaultModel,
		defaultPrecision: cfg.DefaultPrecision,
		autoResize:       cfg.AutoResize,
		opts:             cfg.Options,
		lruPath:          cfg.StatePath,
		instances:        make(map[string]*Instance),
		translateCh:      make(chan struct{}, 1),
		publisher:        cfg.Publisher,
		log:              cfg.Logger,
	}
	if m.registry == nil {
		m.registry = registry.New()
	}
	if m.runtime == nil {
		m.runtime, _ = imgmodel.NewRuntime(imgmodel.RuntimeNone, "", cfg.Logger)
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.DrainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	} else {
		m.drainTimeout = cfg.DrainTimeout
	}
	m.loadLRUMetadata()
	m.startTime = time.Now()
	return m
}
