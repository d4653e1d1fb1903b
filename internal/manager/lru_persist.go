package manager

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"time"
)

type lruRecord struct {
	LastUsedUnix int64 `json:"last_used_unix"`
	EstMemMB     int   `json:"est_mem_mb"`
}

func (m *Manager) loadLRUMetadata() {
	if m.lruPath == "" {
		return
	}
	f, err := os.Open(m.lruPath)
	if err != nil {
		return
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	var data map[string]lruRecord
	if err := dec.Decode(&data); err == nil {
		m.lruMeta = data
	}
}

func (m *Manager) saveLRUMetadata() {
	if m.lruPath == "" {
		return
	}
	// Snapshot under lock; keep records of instances not loaded in this run.
	m.mu.RLock()
	snap := make(map[string]lruRecord, len(m.instances)+len(m.lruMeta))
	for id, rec := range m.lruMeta {
		snap[id] = rec
	}
	for id, inst := range m.instances {
		if inst.State == StateReady {
			snap[id] = lruRecord{LastUsedUnix: inst.LastUsed.Unix(), EstMemMB: inst.EstMemMB}
		}
	}
	m.mu.RUnlock()
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(m.lruPath, b, 0o644); err != nil {
		m.log.Warn().Err(err).Str("path", m.lruPath).Msg("persist lru state")
		return
	}
	m.mu.Lock()
	m.lruMeta = snap
	m.mu.Unlock()
}

// lastUsedHint seeds a new instance's LastUsed from the previous run so LRU
// order survives restarts. Caller holds m.mu.
func (m *Manager) lastUsedHint(key string) time.Time {
	if rec, ok := m.lruMeta[key]; ok && rec.LastUsedUnix > 0 {
		return time.Unix(rec.LastUsedUnix, 0)
	}
	return time.Now()
}

// Recent lists persisted instance keys, most recently used first.
func (m *Manager) Recent() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.lruMeta))
	for k := range m.lruMeta {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := m.lruMeta[keys[i]], m.lruMeta[keys[j]]
		if a.LastUsedUnix != b.LastUsedUnix {
			return a.LastUsedUnix > b.LastUsedUnix
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Preload ensures up to n of the most recently used instances from the previous
// run. Failures are logged and skipped; the count of loaded instances is returned.
func (m *Manager) Preload(ctx context.Context, n int) int {
	loaded := 0
	for _, key := range m.Recent() {
		if loaded >= n {
			break
		}
		model, precision, ok := strings.Cut(key, "@")
		if !ok {
			continue
		}
		if err := m.EnsureInstance(ctx, model, precision); err != nil {
			m.log.Warn().Str("instance", key).Err(err).Msg("preload skipped")
			continue
		}
		loaded++
	}
	return loaded
}
