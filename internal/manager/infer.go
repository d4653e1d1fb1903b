package manager

import (
	"context"
	"errors"
	"image"
	"time"

	"modelzoo/internal/imgmodel"
	"modelzoo/pkg/types"
)

// Infer ensures the requested instance, waits for admission and runs the
// image through the model.
func (m *Manager) Infer(ctx context.Context, req types.InferRequest, img image.Image) (*imgmodel.Result, error) {
	inst, err := m.ensure(ctx, req.Model, req.Precision)
	if err != nil {
		return nil, err
	}
	// Admission: per-instance FIFO queue, single in-flight
	release, err := m.beginGeneration(ctx, inst.ID)
	if err != nil {
		if IsTooBusy(err) {
			m.publish(Event{Name: "infer_rejected", ModelID: inst.ID})
		}
		return nil, err
	}
	defer release()

	m.mu.RLock()
	pm := inst.Model
	m.mu.RUnlock()
	if pm == nil {
		return nil, ErrModelNotFound(inst.ID)
	}
	start := time.Now()
	res, err := pm.Infer(ctx, img)
	inferDuration.WithLabelValues(inst.ModelID).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, imgmodel.ErrRuntimeUnavailable) {
			return nil, dependencyUnavailable("infer "+inst.ID, err)
		}
		return nil, err
	}
	// Dynamic output shapes settle on the first inference.
	m.mu.Lock()
	inst.ViewSize = res.ViewSize
	inst.LastUsed = time.Now()
	m.mu.Unlock()
	return res, nil
}

// ViewSize ensures the instance and returns its output view size.
func (m *Manager) ViewSize(ctx context.Context, modelID, precision string) (imgmodel.Size, error) {
	inst, err := m.ensure(ctx, modelID, precision)
	if err != nil {
		return imgmodel.Size{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return inst.ViewSize, nil
}
