package manager

import "modelzoo/internal/imgmodel"

// evictUntilFits unloads LRU idle instances until requiredMB fits the budget
// minus margin. Loading, draining and busy instances are never chosen.
func (m *Manager) evictUntilFits(requiredMB int) error {
	for {
		m.mu.Lock()
		if m.usedEstMB+requiredMB+m.marginMB <= m.budgetMB {
			m.mu.Unlock()
			return nil
		}
		var lru *Instance
		for _, inst := range m.instances {
			if inst.State != StateReady || len(inst.genCh) > 0 || len(inst.queueCh) > 0 {
				continue
			}
			if lru == nil || inst.LastUsed.Before(lru.LastUsed) {
				lru = inst
			}
		}
		if lru == nil {
			err := budgetExceededError{requiredMB: requiredMB, budgetMB: m.budgetMB, usedMB: m.usedEstMB}
			m.mu.Unlock()
			return err
		}
		delete(m.instances, lru.ID)
		m.usedEstMB -= lru.EstMemMB
		if m.usedEstMB < 0 {
			m.usedEstMB = 0
		}
		model := lru.Model
		m.mu.Unlock()

		closeModel(model)
		m.evictions.Add(1)
		evictionsTotal.Inc()
		m.log.Info().Str("instance", lru.ID).Int("freed_mb", lru.EstMemMB).Msg("instance evicted")
		m.publish(Event{Name: "evict", ModelID: lru.ID, Fields: map[string]any{"freed_mb": lru.EstMemMB}})
	}
}

func closeModel(pm *imgmodel.ProcessingModel) {
	if pm != nil {
		_ = pm.Close()
	}
}
