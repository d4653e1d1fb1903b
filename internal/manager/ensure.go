package manager

import (
	"context"
	"errors"
	"time"

	"modelzoo/internal/imgmodel"
)

// EnsureInstance ensures the precision variant of modelID is loaded and ready.
// Empty arguments fall back to the configured defaults. Artifacts must already
// be in the cache; missing files are reported as a dependency error.
func (m *Manager) EnsureInstance(ctx context.Context, modelID, precision string) error {
	_, err := m.ensure(ctx, modelID, precision)
	return err
}

func (m *Manager) ensure(ctx context.Context, modelID, precision string) (*Instance, error) {
	startTs := time.Now()
	d, v, err := m.resolve(modelID, precision)
	if err != nil {
		m.publish(Event{Name: "ensure_model_not_found", ModelID: instanceKey(modelID, precision)})
		return nil, err
	}
	key := instanceKey(d.Name, string(v.Precision))
	m.publish(Event{Name: "ensure_start", ModelID: key})

	for {
		inst, wait, err := m.lookupInstance(key)
		if err != nil {
			return nil, err
		}
		if inst != nil {
			return inst, nil
		}
		if wait == nil {
			break
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	modelPath, weightsPath, err := m.cachedPaths(d, v)
	if err != nil {
		return nil, err
	}
	reqMB := estimateMemMB(modelPath, weightsPath)

	// Evict until it fits budget + margin, if budget configured
	if m.budgetMB > 0 {
		if err := m.evictUntilFits(reqMB); err != nil {
			m.log.Warn().Str("instance", key).Err(err).Msg("ensure budget fail")
			m.publish(Event{Name: "ensure_budget_fail", ModelID: key, Fields: map[string]any{"error": err.Error()}})
			return nil, err
		}
	}

	m.mu.Lock()
	if m.instances[key] != nil {
		// Another caller started loading while we were evicting.
		m.mu.Unlock()
		return m.ensure(ctx, modelID, precision)
	}
	inst := &Instance{
		ID:        key,
		ModelID:   d.Name,
		Precision: string(v.Precision),
		State:     StateLoading,
		LastUsed:  m.lastUsedHint(key),
		EstMemMB:  reqMB,
		genCh:     make(chan struct{}, 1),
		queueCh:   make(chan struct{}, m.maxQueueDepth),
		loaded:    make(chan struct{}),
	}
	m.instances[key] = inst
	m.usedEstMB += reqMB
	m.state = StateLoading
	m.err = ""
	m.mu.Unlock()

	pm := imgmodel.NewProcessingModel(modelPath, m.autoResize)
	if m.opts != nil {
		pm.SetOptions(*m.opts)
	}
	loadErr := pm.Load(ctx, m.runtime)

	m.mu.Lock()
	if loadErr != nil {
		delete(m.instances, key)
		m.usedEstMB -= reqMB
		if m.usedEstMB < 0 {
			m.usedEstMB = 0
		}
		m.state = StateError
		m.err = loadErr.Error()
		close(inst.loaded)
		m.mu.Unlock()
		if errors.Is(loadErr, imgmodel.ErrRuntimeUnavailable) {
			loadErr = dependencyUnavailable("load "+key, loadErr)
		}
		m.log.Error().Str("instance", key).Err(loadErr).Msg("ensure error")
		m.publish(Event{Name: "ensure_error", ModelID: key, Fields: map[string]any{"error": loadErr.Error()}})
		return nil, loadErr
	}
	inst.Model = pm
	inst.ViewSize = pm.ViewSize()
	inst.State = StateReady
	inst.LastUsed = time.Now()
	m.cur = &ModelInfo{ID: d.Name, Precision: string(v.Precision), Path: modelPath}
	m.state = StateReady
	m.err = ""
	close(inst.loaded)
	m.mu.Unlock()

	m.loads.Add(1)
	loadsTotal.Inc()
	dur := time.Since(startTs)
	m.log.Info().Str("instance", key).Int("est_mem_mb", reqMB).Stringer("view_size", inst.ViewSize).Dur("dur", dur).Msg("instance ready")
	m.publish(Event{Name: "ensure_ready", ModelID: key, Fields: map[string]any{
		"dur_ms":    int(dur / time.Millisecond),
		"view_size": inst.ViewSize.String(),
	}})
	m.saveLRUMetadata()
	return inst, nil
}

// lookupInstance returns a ready instance, or a channel to wait on while
// another caller loads it. Both nil means the caller should load.
func (m *Manager) lookupInstance(key string) (*Instance, <-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.instances[key]
	if inst == nil {
		return nil, nil, nil
	}
	switch inst.State {
	case StateReady:
		inst.LastUsed = time.Now()
		return inst, nil, nil
	case StateLoading:
		return nil, inst.loaded, nil
	default:
		return nil, nil, tooBusyError{modelID: key}
	}
}
