package manager

import (
	"sort"
	"time"

	"modelzoo/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, CurrentModel: m.cur, Err: m.err}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		BudgetMB:       m.budgetMB,
		UsedMB:         m.usedEstMB,
		MarginMB:       m.marginMB,
		Runtime:        m.runtime.Name(),
		Error:          m.err,
		State:          string(m.state),
		UptimeSeconds:  int64(time.Since(m.startTime) / time.Second),
		EvictionsTotal: m.evictions.Load(),
		LoadsTotal:     m.loads.Load(),
	}
	resp.Instances = make([]types.InstanceStatus, 0, len(m.instances))
	for _, inst := range m.instances {
		switch inst.State {
		case StateLoading:
			resp.WarmupsInProgress++
		case StateDraining:
			resp.DrainingCount++
		}
		resp.Instances = append(resp.Instances, types.InstanceStatus{
			ModelID:       inst.ModelID,
			Precision:     inst.Precision,
			State:         string(inst.State),
			LastUsed:      inst.LastUsed.Unix(),
			EstMemMB:      inst.EstMemMB,
			ViewSize:      types.ViewSize{Width: inst.ViewSize.Width, Height: inst.ViewSize.Height},
			QueueLen:      len(inst.queueCh),
			Inflight:      len(inst.genCh),
			MaxQueueDepth: cap(inst.queueCh),
		})
	}
	sort.Slice(resp.Instances, func(i, j int) bool {
		a, b := resp.Instances[i], resp.Instances[j]
		if a.ModelID != b.ModelID {
			return a.ModelID < b.ModelID
		}
		return a.Precision < b.Precision
	})
	return resp
}
