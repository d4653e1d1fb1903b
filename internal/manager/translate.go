package manager

import (
	"context"
	"errors"
	"image"
	"time"

	"modelzoo/internal/imgmodel"
	"modelzoo/pkg/types"
)

// Translate renders mask in the style of exemplar. The correspondence and
// generator networks are loaded for the request, counted against the memory
// budget while they run and closed afterwards. One translation runs at a time.
func (m *Manager) Translate(ctx context.Context, req types.TranslateRequest, mask *image.Gray, exemplar image.Image, exemplarMask *image.Gray) (*imgmodel.Result, error) {
	if req.Correspondence == "" || req.Generator == "" {
		return nil, ErrModelNotFound("(translation needs correspondence and generator)")
	}
	cd, cv, err := m.resolve(req.Correspondence, req.Precision)
	if err != nil {
		return nil, err
	}
	gd, gv, err := m.resolve(req.Generator, req.Precision)
	if err != nil {
		return nil, err
	}
	corrPath, corrWeights, err := m.cachedPaths(cd, cv)
	if err != nil {
		return nil, err
	}
	genPath, genWeights, err := m.cachedPaths(gd, gv)
	if err != nil {
		return nil, err
	}
	key := instanceKey(cd.Name, string(cv.Precision)) + "+" + instanceKey(gd.Name, string(gv.Precision))

	release, err := m.beginTranslation(ctx, key)
	if err != nil {
		if IsTooBusy(err) {
			m.publish(Event{Name: "translate_rejected", ModelID: key})
		}
		return nil, err
	}
	defer release()

	reqMB := estimateMemMB(corrPath, corrWeights, genPath, genWeights)
	if m.budgetMB > 0 {
		if err := m.evictUntilFits(reqMB); err != nil {
			m.publish(Event{Name: "translate_budget_fail", ModelID: key, Fields: map[string]any{"error": err.Error()}})
			return nil, err
		}
	}
	m.mu.Lock()
	m.usedEstMB += reqMB
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.usedEstMB -= reqMB
		if m.usedEstMB < 0 {
			m.usedEstMB = 0
		}
		m.mu.Unlock()
	}()

	m.publish(Event{Name: "translate_start", ModelID: key})
	p := imgmodel.NewTranslationPipeline(corrPath, genPath)
	if m.opts != nil {
		p.Generator.SetOptions(*m.opts)
	}
	if err := p.Load(ctx, m.runtime); err != nil {
		if errors.Is(err, imgmodel.ErrRuntimeUnavailable) {
			err = dependencyUnavailable("load "+key, err)
		}
		m.log.Error().Str("pipeline", key).Err(err).Msg("translate load error")
		m.publish(Event{Name: "translate_error", ModelID: key, Fields: map[string]any{"error": err.Error()}})
		return nil, err
	}
	defer func() { _ = p.Close() }()

	start := time.Now()
	res, err := p.Translate(ctx, mask, exemplar, exemplarMask)
	dur := time.Since(start)
	inferDuration.WithLabelValues(gd.Name).Observe(dur.Seconds())
	if err != nil {
		if errors.Is(err, imgmodel.ErrRuntimeUnavailable) {
			err = dependencyUnavailable("translate "+key, err)
		}
		m.publish(Event{Name: "translate_error", ModelID: key, Fields: map[string]any{"error": err.Error()}})
		return nil, err
	}
	m.log.Debug().Str("pipeline", key).Stringer("view_size", res.ViewSize).Dur("dur", dur).Msg("translate done")
	m.publish(Event{Name: "translate_done", ModelID: key, Fields: map[string]any{"dur_ms": int(dur / time.Millisecond)}})
	return res, nil
}

// beginTranslation waits up to maxWait for the translation slot.
func (m *Manager) beginTranslation(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case m.translateCh <- struct{}{}:
		return func() { <-m.translateCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{modelID: key}
	}
}
