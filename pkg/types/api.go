package types

// Model is the registry view of one model descriptor.
type Model struct {
	// Model identifier (descriptor directory name).
	// example: image-retrieval-0001
	ID string `json:"id" example:"image-retrieval-0001"`
	// Free-form description from the descriptor.
	Description string `json:"description,omitempty"`
	// Task type, e.g. object_attributes.
	// example: object_attributes
	TaskType string `json:"task_type" example:"object_attributes"`
	// Serialization framework of the artifacts.
	// example: dldt
	Framework string `json:"framework,omitempty" example:"dldt"`
	// License URL.
	License string `json:"license,omitempty"`
	// Available precision variants.
	// example: ["FP32","FP16","FP16-INT8"]
	Precisions []string `json:"precisions"`
	// Path of the descriptor file on disk.
	Path string `json:"path,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// InferRequest selects the model that processes an uploaded image.
type InferRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: image-retrieval-0001
	Model string `json:"model,omitempty" example:"image-retrieval-0001"`
	// Optional precision. If empty, the server default is used.
	// example: FP16
	Precision string `json:"precision,omitempty" example:"FP16"`
	// Output image encoding for spatial outputs: png, jpeg or webp.
	// example: png
	Format string `json:"format,omitempty" example:"png"`
}

// TranslateRequest selects the two networks of a semantic image translation.
type TranslateRequest struct {
	// Model that warps the exemplar onto the input semantics.
	// example: cocosnet-correspondence
	Correspondence string `json:"correspondence" example:"cocosnet-correspondence"`
	// Model that renders the warped exemplar and semantics.
	// example: cocosnet-generator
	Generator string `json:"generator" example:"cocosnet-generator"`
	// Optional precision applied to both models.
	Precision string `json:"precision,omitempty" example:"FP16"`
	// Output image encoding: png, jpeg or webp.
	Format string `json:"format,omitempty" example:"png"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: foo
	Error string `json:"error" example:"model not found: foo"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// ViewSize is the spatial size of a model's output view.
type ViewSize struct {
	// example: 256
	Width int `json:"width" example:"256"`
	// example: 256
	Height int `json:"height" example:"256"`
}

// EmbeddingResponse is returned by POST /infer for models whose output is a vector.
type EmbeddingResponse struct {
	Model     string    `json:"model"`
	Precision string    `json:"precision"`
	Embedding []float32 `json:"embedding"`
	ViewSize  ViewSize  `json:"view_size"`
}

// FileResult reports the outcome for one artifact of a fetch or verify.
type FileResult struct {
	// Relative artifact name.
	// example: FP16/image-retrieval-0001.bin
	Name string `json:"name" example:"FP16/image-retrieval-0001.bin"`
	// ok | downloaded | missing | size_mismatch | checksum_mismatch | error
	// example: ok
	Status string `json:"status" example:"ok"`
	// Bytes on disk (or transferred).
	Size int64 `json:"size"`
	// Error detail, if any.
	Error string `json:"error,omitempty"`
}

// FetchResponse is returned by POST /models/{id}/fetch.
type FetchResponse struct {
	// Operation identifier.
	OpID      string       `json:"op_id"`
	Model     string       `json:"model"`
	Precision string       `json:"precision"`
	Files     []FileResult `json:"files"`
	// Duration in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// VerifyResponse is returned by GET /models/{id}/verify.
type VerifyResponse struct {
	Model     string       `json:"model"`
	Precision string       `json:"precision"`
	OK        bool         `json:"ok"`
	Files     []FileResult `json:"files"`
}

// InstanceStatus summarizes a loaded instance for /status.
type InstanceStatus struct {
	// ID of the model this instance serves.
	// example: image-retrieval-0001
	ModelID string `json:"model_id" example:"image-retrieval-0001"`
	// Precision variant loaded.
	// example: FP16
	Precision string `json:"precision" example:"FP16"`
	// Current lifecycle state of the instance (e.g., loading, ready, draining).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last time this instance served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Estimated memory usage in MB.
	// example: 12
	EstMemMB int `json:"est_mem_mb" example:"12"`
	// Output view size of the loaded model.
	ViewSize ViewSize `json:"view_size"`
	// Current queue length for incoming requests.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight requests currently being processed.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Loaded/managed instances.
	Instances []InstanceStatus `json:"instances"`
	// Memory budget in MB across all instances.
	// example: 2048
	BudgetMB int `json:"budget_mb" example:"2048"`
	// Estimated used memory in MB.
	// example: 12
	UsedMB int `json:"used_est_mb" example:"12"`
	// Reserved memory margin in MB.
	// example: 128
	MarginMB int `json:"margin_mb" example:"128"`
	// Inference runtime in use.
	// example: ovms
	Runtime string `json:"runtime" example:"ovms"`
	// Optional top-level error message.
	Error string `json:"error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Total number of evictions performed to free memory.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Total number of model loads.
	LoadsTotal uint64 `json:"loads_total"`
	// Overall manager state (e.g., loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Number of instances currently warming up (loading).
	WarmupsInProgress int `json:"warmups_in_progress"`
	// Number of instances currently draining (unload in progress).
	DrainingCount int `json:"draining_count"`
}

// VariantInfo describes one precision variant of a model.
type VariantInfo struct {
	// example: FP16
	Precision string `json:"precision" example:"FP16"`
	// Relative artifact names, topology first.
	Files []string `json:"files"`
	// Total bytes of the variant's artifacts.
	// example: 5846322
	SizeBytes int64 `json:"size_bytes" example:"5846322"`
}

// ModelDetail is returned by GET /models/{id}.
type ModelDetail struct {
	Model
	Variants []VariantInfo `json:"variants"`
}

// SwitchRequest asks the server to load a model instance in the background.
type SwitchRequest struct {
	// example: image-retrieval-0001
	Model string `json:"model" example:"image-retrieval-0001"`
	// example: FP16
	Precision string `json:"precision,omitempty" example:"FP16"`
}

// SwitchResponse carries the operation id of an accepted switch.
type SwitchResponse struct {
	// example: 3f0c1c9e-8d6f-4b5e-9d8c-2a3a1c2b9f00
	OpID string `json:"op_id" example:"3f0c1c9e-8d6f-4b5e-9d8c-2a3a1c2b9f00"`
}
