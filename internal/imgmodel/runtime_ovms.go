package imgmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// OVMSRuntime serves networks from an OpenVINO Model Server over the KServe v2
// REST protocol. The server owns the model files; ReadNetwork maps a local model
// path to the served model named after the file stem.
type OVMSRuntime struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewOVMSRuntime returns a runtime talking to baseURL (e.g. http://localhost:9001).
func NewOVMSRuntime(baseURL string, log zerolog.Logger) *OVMSRuntime {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Deadlines come from the request context.
	return &OVMSRuntime{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: tr},
		log:        log.With().Str("runtime", RuntimeOVMS).Logger(),
	}
}

func (r *OVMSRuntime) Name() string { return RuntimeOVMS }

type kserveTensorMeta struct {
	Name     string  `json:"name"`
	Datatype string  `json:"datatype"`
	Shape    []int64 `json:"shape"`
}

type kserveModelMeta struct {
	Name     string             `json:"name"`
	Versions []string           `json:"versions,omitempty"`
	Platform string             `json:"platform,omitempty"`
	Inputs   []kserveTensorMeta `json:"inputs"`
	Outputs  []kserveTensorMeta `json:"outputs"`
}

type kserveInput struct {
	Name     string    `json:"name"`
	Shape    []int64   `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type kserveOutputReq struct {
	Name string `json:"name"`
}

type kserveInferRequest struct {
	ID      string            `json:"id,omitempty"`
	Inputs  []kserveInput     `json:"inputs"`
	Outputs []kserveOutputReq `json:"outputs,omitempty"`
}

type kserveOutput struct {
	Name     string    `json:"name"`
	Shape    []int64   `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type kserveInferResponse struct {
	ModelName string         `json:"model_name"`
	ID        string         `json:"id,omitempty"`
	Outputs   []kserveOutput `json:"outputs"`
}

type kserveError struct {
	Error string `json:"error"`
}

// ModelName is the served name for a local model file: its base name without extension.
func ModelName(modelPath string) string {
	base := filepath.Base(modelPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadNetwork fetches the served model's metadata. The weights path is unused;
// the server loads weights from its own repository.
func (r *OVMSRuntime) ReadNetwork(ctx context.Context, modelPath, _ string) (Network, error) {
	name := ModelName(modelPath)
	var meta kserveModelMeta
	if err := r.do(ctx, http.MethodGet, r.modelURL(name), nil, &meta); err != nil {
		return nil, err
	}
	if len(meta.Inputs) == 0 || len(meta.Outputs) == 0 {
		return nil, fmt.Errorf("%w: model %q reports %d inputs and %d outputs", ErrShapeUnsupported, name, len(meta.Inputs), len(meta.Outputs))
	}
	n := &ovmsNetwork{rt: r, name: name, resize: map[string]bool{}}
	for _, in := range meta.Inputs {
		n.inputs = append(n.inputs, TensorInfo{Name: in.Name, Shape: in.Shape, Precision: in.Datatype})
	}
	for _, out := range meta.Outputs {
		n.outputs = append(n.outputs, TensorInfo{Name: out.Name, Shape: out.Shape, Precision: out.Datatype})
	}
	r.log.Debug().Str("model", name).Int("inputs", len(n.inputs)).Int("outputs", len(n.outputs)).Msg("network metadata loaded")
	return n, nil
}

func (r *OVMSRuntime) modelURL(name string) string {
	return r.baseURL + "/v2/models/" + url.PathEscape(name)
}

func (r *OVMSRuntime) do(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ke kserveError
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &ke) == nil && ke.Error != "" {
			msg = ke.Error
		}
		err := fmt.Errorf("ovms %s %s: %s: %s", method, u, resp.Status, msg)
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
			return errors.Join(ErrRuntimeUnavailable, err)
		}
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type ovmsNetwork struct {
	rt      *OVMSRuntime
	name    string
	inputs  []TensorInfo
	outputs []TensorInfo

	mu     sync.Mutex
	resize map[string]bool
}

func (n *ovmsNetwork) Inputs() []TensorInfo  { return n.inputs }
func (n *ovmsNetwork) Outputs() []TensorInfo { return n.outputs }

func (n *ovmsNetwork) SetResize(input string, enabled bool) error {
	for _, in := range n.inputs {
		if in.Name == input {
			n.mu.Lock()
			n.resize[input] = enabled
			n.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("ovms model %q has no input %q", n.name, input)
}

func (n *ovmsNetwork) Infer(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	req := kserveInferRequest{}
	n.mu.Lock()
	for _, info := range n.inputs {
		t, ok := inputs[info.Name]
		if !ok {
			n.mu.Unlock()
			return nil, fmt.Errorf("missing input %q", info.Name)
		}
		// KServe has no resize hint; fixed-shape models need the served H×W.
		if n.resize[info.Name] {
			t = resizeToInput(t, info.Shape)
		}
		req.Inputs = append(req.Inputs, kserveInput{Name: info.Name, Shape: t.Shape, Datatype: "FP32", Data: t.Data})
	}
	n.mu.Unlock()
	for _, o := range n.outputs {
		req.Outputs = append(req.Outputs, kserveOutputReq{Name: o.Name})
	}
	var resp kserveInferResponse
	if err := n.rt.do(ctx, http.MethodPost, n.rt.modelURL(n.name)+"/infer", req, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]*Tensor, len(resp.Outputs))
	for _, o := range resp.Outputs {
		t := &Tensor{Shape: o.Shape, Data: o.Data}
		if numel(t.Shape) != len(t.Data) {
			return nil, fmt.Errorf("%w: output %q shape %v carries %d values", ErrShapeUnsupported, o.Name, o.Shape, len(o.Data))
		}
		out[o.Name] = t
	}
	return out, nil
}

// Close is a no-op; the server keeps the model loaded.
func (n *ovmsNetwork) Close() error { return nil }
