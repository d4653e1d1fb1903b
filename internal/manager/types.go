package manager

import (
	"time"

	"modelzoo/internal/imgmodel"
)

// State represents lifecycle state of the manager/instances.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateError    State = "error"
	StateDraining State = "draining"
)

// ModelInfo is a minimal view of the most recently loaded model.
type ModelInfo struct {
	ID        string
	Precision string
	Path      string
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State        State
	CurrentModel *ModelInfo
	Err          string
}

// Instance is one loaded precision variant of a model.
type Instance struct {
	// ID is the instance key, "<model>@<precision>".
	ID        string
	ModelID   string
	Precision string
	State     State
	LastUsed  time.Time
	EstMemMB  int
	ViewSize  imgmodel.Size
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight request
	queueCh chan struct{} // buffered: queue slots
	// loaded is closed once a loading instance becomes ready or fails.
	loaded chan struct{}
	Model  *imgmodel.ProcessingModel
}

func instanceKey(modelID, precision string) string { return modelID + "@" + precision }
