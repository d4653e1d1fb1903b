package e2e

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"modelzoo/internal/fetch"
	"modelzoo/internal/httpapi"
	"modelzoo/internal/imgmodel"
	"modelzoo/internal/ledger"
	"modelzoo/internal/manager"
	"modelzoo/internal/registry"
)

const (
	modelID   = "single-image-super-resolution-0001"
	corrModel = "cocosnet-correspondence"
	genModel  = "cocosnet-generator"
)

// artifacts holds each model's files by relative name.
var artifacts = map[string]map[string][]byte{
	modelID: {
		"FP32/sr.xml": []byte("<net name=\"sr\"/>"),
		"FP32/sr.bin": bytes.Repeat([]byte{3}, 2048),
	},
	corrModel: {
		"FP32/corr.xml": []byte("<net name=\"corr\"/>"),
		"FP32/corr.bin": bytes.Repeat([]byte{5}, 1024),
	},
	genModel: {
		"FP32/gen.xml": []byte("<net name=\"gen\"/>"),
		"FP32/gen.bin": bytes.Repeat([]byte{7}, 1024),
	},
}

// newArtifactServer serves /<model>/<file>.
func newArtifactServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		model, name, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
		b, ok := artifacts[model][name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// createModelsDir writes <dir>/<model>/model.yml for every model, pointing at base.
func createModelsDir(t *testing.T, base string) string {
	t.Helper()
	dir := t.TempDir()
	for model, files := range artifacts {
		var b strings.Builder
		fmt.Fprintf(&b, "description: %s test model\ntask_type: image_processing\nframework: dldt\nlicense: https://example.org/LICENSE\nfiles:\n", model)
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sum := sha256.Sum256(files[name])
			fmt.Fprintf(&b, "  - name: %s\n    size: %d\n    sha256: %s\n    source: %s/%s/%s\n",
				name, len(files[name]), hex.EncodeToString(sum[:]), base, model, name)
		}
		if err := os.MkdirAll(filepath.Join(dir, model), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, model, "model.yml"), []byte(b.String()), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

type tensorJSON struct {
	Name     string    `json:"name"`
	Shape    []int64   `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data,omitempty"`
}

// servedModel is one model behind the fake server.
type servedModel struct {
	inputs  []tensorJSON
	outputs []tensorJSON
	run     func(in map[string]tensorJSON) []tensorJSON
}

// fakeOVMS is a KServe v2 endpoint serving three models:
//   - "sr" upscales 2x by repeating pixels: [1,3,4,4] to [1,3,8,8].
//   - "corr" returns its reference image as "warped".
//   - "gen" returns the first three channels of its 5-channel input.
type fakeOVMS struct {
	*httptest.Server
	infers atomic.Int32
	models map[string]servedModel
}

func newFakeOVMS(t *testing.T) *fakeOVMS {
	t.Helper()
	f := &fakeOVMS{models: map[string]servedModel{
		"sr": {
			inputs:  []tensorJSON{{Name: "0", Datatype: "FP32", Shape: []int64{1, 3, 4, 4}}},
			outputs: []tensorJSON{{Name: "90", Datatype: "FP32", Shape: []int64{1, 3, 8, 8}}},
			run: func(in map[string]tensorJSON) []tensorJSON {
				x := in["0"]
				h, w := int(x.Shape[2]), int(x.Shape[3])
				out := make([]float32, 3*4*h*w)
				for c := 0; c < 3; c++ {
					for y := 0; y < 2*h; y++ {
						for xx := 0; xx < 2*w; xx++ {
							out[c*4*h*w+y*2*w+xx] = x.Data[c*h*w+(y/2)*w+xx/2]
						}
					}
				}
				return []tensorJSON{{Name: "90", Datatype: "FP32", Shape: []int64{1, 3, int64(2 * h), int64(2 * w)}, Data: out}}
			},
		},
		"corr": {
			inputs: []tensorJSON{
				{Name: "input_semantics", Datatype: "FP32", Shape: []int64{1, 2, 4, 4}},
				{Name: "reference_image", Datatype: "FP32", Shape: []int64{1, 3, 4, 4}},
				{Name: "reference_semantics", Datatype: "FP32", Shape: []int64{1, 2, 4, 4}},
			},
			outputs: []tensorJSON{{Name: "warped", Datatype: "FP32", Shape: []int64{1, 3, 4, 4}}},
			run: func(in map[string]tensorJSON) []tensorJSON {
				ref := in["reference_image"]
				return []tensorJSON{{Name: "warped", Datatype: "FP32", Shape: ref.Shape, Data: ref.Data}}
			},
		},
		"gen": {
			inputs:  []tensorJSON{{Name: "features", Datatype: "FP32", Shape: []int64{1, 5, 4, 4}}},
			outputs: []tensorJSON{{Name: "image", Datatype: "FP32", Shape: []int64{1, 3, 4, 4}}},
			run: func(in map[string]tensorJSON) []tensorJSON {
				x := in["features"]
				return []tensorJSON{{Name: "image", Datatype: "FP32", Shape: []int64{1, 3, 4, 4}, Data: x.Data[:48]}}
			},
		},
	}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/models/{name}", func(w http.ResponseWriter, r *http.Request) {
		m, ok := f.models[r.PathValue("name")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Model with requested name is not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"name": r.PathValue("name"), "inputs": m.inputs, "outputs": m.outputs})
	})
	mux.HandleFunc("POST /v2/models/{name}/infer", func(w http.ResponseWriter, r *http.Request) {
		m, ok := f.models[r.PathValue("name")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.infers.Add(1)
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Inputs []tensorJSON `json:"inputs"`
		}
		if err := json.Unmarshal(body, &req); err != nil || len(req.Inputs) != len(m.inputs) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad request"})
			return
		}
		in := make(map[string]tensorJSON, len(req.Inputs))
		for _, t := range req.Inputs {
			want := 1
			for _, d := range t.Shape {
				want *= int(d)
			}
			if len(t.Data) != want {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "input " + t.Name + " data does not match shape"})
				return
			}
			in[t.Name] = t
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model_name": r.PathValue("name"), "outputs": m.run(in)})
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

type stack struct {
	api    *httptest.Server
	mgr    *manager.Manager
	ledger *ledger.Memory
	ovms   *fakeOVMS
	pub    *manager.MemoryPublisher
}

// newStack wires registry, fetcher, ledger, OVMS runtime, manager and HTTP API
// the way cmd/modelzoo does.
func newStack(t *testing.T, cfg manager.ManagerConfig) *stack {
	t.Helper()
	artifactsSrv := newArtifactServer(t)
	reg, err := registry.Scan(createModelsDir(t, artifactsSrv.URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	ovms := newFakeOVMS(t)
	rt, err := imgmodel.NewRuntime(imgmodel.RuntimeOVMS, ovms.URL, zerolog.Nop())
	if err != nil {
		t.Fatalf("runtime: %v", err)
	}
	led := ledger.NewMemory()
	f := fetch.New(t.TempDir(), zerolog.Nop())
	f.Ledger = led
	pub := manager.NewMemoryPublisher()

	cfg.Registry = reg
	cfg.Runtime = rt
	cfg.Fetcher = f
	cfg.Publisher = pub
	cfg.Logger = zerolog.Nop()
	mgr := manager.NewWithConfig(cfg)
	t.Cleanup(func() { _ = mgr.Close() })

	api := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(api.Close)
	return &stack{api: api, mgr: mgr, ledger: led, ovms: ovms, pub: pub}
}
