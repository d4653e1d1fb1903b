// Package ledger records artifacts that passed integrity verification.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one verified artifact.
type Entry struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Precision  string    `json:"precision"`
	File       string    `json:"file"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	Source     string    `json:"source"`
	VerifiedAt time.Time `json:"verified_at"`
}

// Ledger stores verification records.
type Ledger interface {
	Record(ctx context.Context, e Entry) error
	// List returns entries for model, most recent first. An empty model lists everything.
	List(ctx context.Context, model string) ([]Entry, error)
	Close() error
}

// fill assigns an ID and timestamp when the caller left them empty.
func fill(e *Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.VerifiedAt.IsZero() {
		e.VerifiedAt = time.Now().UTC()
	}
}

// Memory is an in-process ledger.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(_ context.Context, e Entry) error {
	fill(&e)
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, model string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if model == "" || e.Model == model {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VerifiedAt.After(out[j].VerifiedAt) })
	return out, nil
}

func (m *Memory) Close() error { return nil }

// Open returns a SQL ledger when dsn is set, otherwise an in-memory one.
func Open(dsn string) (Ledger, error) {
	if dsn == "" {
		return NewMemory(), nil
	}
	return NewSQL(SQLConfig{DriverName: "mysql", ConnInfo: dsn, TableName: defaultTable})
}
