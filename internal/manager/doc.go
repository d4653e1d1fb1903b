// Package manager provides lifecycle, admission, and inference coordination for
// image model instances. An instance is one precision variant of one registry
// model, loaded through the configured runtime. It is structured into small
// files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: internal state types (State, ModelInfo, Instance, Snapshot).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, ...).
//   - helpers.go: model/variant resolution, cached paths and memory estimation.
//   - admission.go: per-instance queueing and request admission.
//   - ensure.go: EnsureInstance and loading.
//   - evict.go: eviction logic to fit within the memory budget.
//   - infer.go: Infer and ViewSize.
//   - translate.go: Translate over a correspondence and generator pair.
//   - ops.go: Switch, Fetch and Verify operations.
//   - status_report.go: Status/Snapshot reporting helpers.
//   - lru_persist.go: last-used state kept across restarts for Preload.
//
// External packages should treat this package as the orchestration layer and use
// public methods only. Internal types are subject to change.
package manager
