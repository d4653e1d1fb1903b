package manager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"modelzoo/internal/descriptor"
	"modelzoo/internal/fetch"
)

// Switch kicks off an async ensure and returns an operation ID. Callers poll
// Status() to observe state transitions; completion is published as
// switch_done or switch_error carrying the op id.
func (m *Manager) Switch(ctx context.Context, modelID, precision string) (string, error) {
	if _, _, err := m.resolve(modelID, precision); err != nil {
		return "", err
	}
	op := uuid.NewString()
	go func(opID string) {
		// Detached so the caller's request context does not cancel the load.
		err := m.EnsureInstance(context.Background(), modelID, precision)
		if err != nil {
			m.publish(Event{Name: "switch_error", ModelID: modelID, Fields: map[string]any{"op_id": opID, "error": err.Error()}})
			return
		}
		m.publish(Event{Name: "switch_done", ModelID: modelID, Fields: map[string]any{"op_id": opID}})
	}(op)
	return op, nil
}

// FetchOp is the outcome of a synchronous fetch operation.
type FetchOp struct {
	ID     string
	Result fetch.Result
}

// Fetch downloads the artifacts of one precision variant into the cache.
// An empty precision fetches the default (or first) variant.
func (m *Manager) Fetch(ctx context.Context, modelID, precision string) (FetchOp, error) {
	d, v, err := m.resolve(modelID, precision)
	if err != nil {
		return FetchOp{}, err
	}
	if m.fetcher == nil {
		return FetchOp{}, ErrDependencyUnavailable("artifact cache not configured")
	}
	op := FetchOp{ID: uuid.NewString()}
	m.publish(Event{Name: "fetch_start", ModelID: instanceKey(d.Name, string(v.Precision)), Fields: map[string]any{"op_id": op.ID}})
	op.Result, err = m.fetcher.Fetch(ctx, d, v.Precision)
	fields := map[string]any{"op_id": op.ID, "dur_ms": int(op.Result.Duration / time.Millisecond)}
	if err != nil {
		fields["error"] = err.Error()
		m.publish(Event{Name: "fetch_error", ModelID: instanceKey(d.Name, string(v.Precision)), Fields: fields})
		m.log.Warn().Str("model", d.Name).Str("precision", string(v.Precision)).Err(err).Msg("fetch failed")
		return op, err
	}
	m.publish(Event{Name: "fetch_done", ModelID: instanceKey(d.Name, string(v.Precision)), Fields: fields})
	return op, nil
}

// Verify checks the cached artifacts of one precision variant.
func (m *Manager) Verify(modelID, precision string) (descriptor.Precision, []fetch.FileStatus, error) {
	d, v, err := m.resolve(modelID, precision)
	if err != nil {
		return "", nil, err
	}
	if m.fetcher == nil {
		return "", nil, ErrDependencyUnavailable("artifact cache not configured")
	}
	sts, err := m.fetcher.Verify(d, v.Precision)
	return v.Precision, sts, err
}
