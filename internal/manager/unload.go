package manager

import (
	"strings"
	"time"
)

// Unload initiates a graceful drain of model instances and removes them.
// id is either an instance key ("<model>@<precision>") or a model id, which
// unloads every loaded precision of that model.
//   - Sets instance state to draining to reject new enqueues.
//   - Waits up to drainTimeout for in-flight and queued requests to finish.
//   - Closes the network and removes the instance entry.
func (m *Manager) Unload(id string) error {
	if id == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.Lock()
	var targets []*Instance
	for key, inst := range m.instances {
		if key == id || (!strings.Contains(id, "@") && inst.ModelID == id) {
			if inst.State == StateLoading {
				continue
			}
			inst.State = StateDraining
			targets = append(targets, inst)
		}
	}
	m.mu.Unlock()
	if len(targets) == 0 {
		return ErrModelNotFound(id)
	}
	for _, inst := range targets {
		m.drainAndRemove(inst)
	}
	m.saveLRUMetadata()
	return nil
}

func (m *Manager) drainAndRemove(inst *Instance) {
	m.publish(Event{Name: "unload_start", ModelID: inst.ID})

	deadline := time.Now().Add(m.drainTimeout)
	for {
		qlen := len(inst.queueCh)
		inflight := len(inst.genCh)
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			m.log.Warn().Str("instance", inst.ID).Int("inflight", inflight).Int("queue", qlen).Msg("unload drain timeout")
			m.publish(Event{Name: "unload_timeout", ModelID: inst.ID, Fields: map[string]any{"inflight": inflight, "queue": qlen}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	m.mu.Lock()
	// Adjust accounting and remove
	if cur := m.instances[inst.ID]; cur == inst {
		m.usedEstMB -= inst.EstMemMB
		if m.usedEstMB < 0 {
			m.usedEstMB = 0
		}
		delete(m.instances, inst.ID)
	}
	if m.cur != nil && instanceKey(m.cur.ID, m.cur.Precision) == inst.ID {
		m.cur = nil
	}
	model := inst.Model
	m.mu.Unlock()

	closeModel(model)
	m.log.Info().Str("instance", inst.ID).Msg("instance unloaded")
	m.publish(Event{Name: "unload_done", ModelID: inst.ID})
}

// Close unloads every instance.
func (m *Manager) Close() error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_ = m.Unload(id)
	}
	return nil
}
