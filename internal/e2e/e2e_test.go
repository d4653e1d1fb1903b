package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"modelzoo/internal/manager"
	"modelzoo/pkg/types"
)

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func inputPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func postInfer(t *testing.T, base string, img []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("model", modelID)
	fw, _ := mw.CreateFormFile("image", "in.png")
	_, _ = fw.Write(img)
	_ = mw.Close()
	resp, err := http.Post(base+"/infer", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /infer: %v", err)
	}
	return resp
}

func TestFetchVerifyInferFlow(t *testing.T) {
	s := newStack(t, manager.ManagerConfig{})

	var models types.ModelsResponse
	if code := getJSON(t, s.api.URL+"/models", &models); code != http.StatusOK || len(models.Models) != len(artifacts) {
		t.Fatalf("models: %d %+v", code, models)
	}

	// Not fetched yet: the artifacts are a missing dependency.
	resp := postInfer(t, s.api.URL, inputPNG(t))
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("infer before fetch: %d", resp.StatusCode)
	}

	resp, err := http.Post(s.api.URL+"/models/"+modelID+"/fetch", "", nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var fr types.FetchResponse
	_ = json.NewDecoder(resp.Body).Decode(&fr)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || fr.Precision != "FP32" || len(fr.Files) != 2 {
		t.Fatalf("fetch: %d %+v", resp.StatusCode, fr)
	}
	entries, _ := s.ledger.List(context.Background(), modelID)
	if len(entries) != 2 {
		t.Fatalf("ledger entries: %d", len(entries))
	}

	var vr types.VerifyResponse
	if code := getJSON(t, s.api.URL+"/models/"+modelID+"/verify", &vr); code != http.StatusOK || !vr.OK {
		t.Fatalf("verify: %d %+v", code, vr)
	}

	var vs types.ViewSize
	if code := getJSON(t, s.api.URL+"/models/"+modelID+"/view-size", &vs); code != http.StatusOK || vs.Width != 8 || vs.Height != 8 {
		t.Fatalf("view size: %d %+v", code, vs)
	}

	resp = postInfer(t, s.api.URL, inputPNG(t))
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("infer: %d %s", resp.StatusCode, data)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.Bounds().Dx() != 8 || out.Bounds().Dy() != 8 {
		t.Fatalf("output size: %v", out.Bounds())
	}
	r, g, _, _ := out.At(5, 5).RGBA()
	if r>>8 < 250 || g>>8 > 5 {
		t.Fatalf("output pixel: r=%d g=%d", r>>8, g>>8)
	}
	if s.ovms.infers.Load() != 1 {
		t.Fatalf("ovms infers: %d", s.ovms.infers.Load())
	}

	var st types.StatusResponse
	getJSON(t, s.api.URL+"/status", &st)
	if len(st.Instances) != 1 || st.Instances[0].State != "ready" || st.Runtime != "ovms" || st.LoadsTotal != 1 {
		t.Fatalf("status: %+v", st)
	}
	if code := getJSON(t, s.api.URL+"/readyz", nil); code != http.StatusOK {
		t.Fatalf("readyz: %d", code)
	}
}

func TestUnloadOverHTTP(t *testing.T) {
	s := newStack(t, manager.ManagerConfig{DefaultModel: modelID})
	if _, err := s.mgr.Fetch(context.Background(), "", ""); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := s.mgr.EnsureInstance(context.Background(), "", ""); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	req, _ := http.NewRequest(http.MethodDelete, s.api.URL+"/instances/"+modelID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unload status: %d", resp.StatusCode)
	}
	var st types.StatusResponse
	getJSON(t, s.api.URL+"/status", &st)
	if len(st.Instances) != 0 {
		t.Fatalf("instances after unload: %+v", st.Instances)
	}
	if code := getJSON(t, s.api.URL+"/readyz", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("readyz after unload: %d", code)
	}
}

func TestUnknownModelIs404(t *testing.T) {
	s := newStack(t, manager.ManagerConfig{})
	var er types.ErrorResponse
	if code := getJSON(t, s.api.URL+"/models/nope/view-size", &er); code != http.StatusNotFound || er.Code != http.StatusNotFound {
		t.Fatalf("view size unknown: %d %+v", code, er)
	}
}

func maskPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	m := image.NewGray(image.Rect(0, 0, w, h))
	for i := range m.Pix[:len(m.Pix)/2] {
		m.Pix[i] = 1
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func postTranslate(t *testing.T, base string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("correspondence", corrModel)
	_ = mw.WriteField("generator", genModel)
	for name, data := range map[string][]byte{
		"mask":          maskPNG(t, 8, 8),
		"exemplar":      inputPNG(t),
		"exemplar_mask": maskPNG(t, 4, 4),
	} {
		fw, _ := mw.CreateFormFile(name, name+".png")
		_, _ = fw.Write(data)
	}
	_ = mw.Close()
	resp, err := http.Post(base+"/translate", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /translate: %v", err)
	}
	return resp
}

func TestTranslateFlow(t *testing.T) {
	s := newStack(t, manager.ManagerConfig{})

	resp := postTranslate(t, s.api.URL)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("translate before fetch: %d", resp.StatusCode)
	}

	for _, id := range []string{corrModel, genModel} {
		resp, err := http.Post(s.api.URL+"/models/"+id+"/fetch", "", nil)
		if err != nil {
			t.Fatalf("fetch %s: %v", id, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("fetch %s: %d", id, resp.StatusCode)
		}
	}

	resp = postTranslate(t, s.api.URL)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("translate: %d %s", resp.StatusCode, data)
	}
	if resp.Header.Get("X-Model") != genModel || resp.Header.Get("X-View-Width") != "4" {
		t.Fatalf("headers: %v", resp.Header)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.Bounds().Dx() != 4 || out.Bounds().Dy() != 4 {
		t.Fatalf("output size: %v", out.Bounds())
	}
	r, g, _, _ := out.At(2, 2).RGBA()
	if r>>8 < 250 || g>>8 > 5 {
		t.Fatalf("exemplar style lost: r=%d g=%d", r>>8, g>>8)
	}
	if n := s.ovms.infers.Load(); n != 2 {
		t.Fatalf("ovms infers: %d", n)
	}

	var st types.StatusResponse
	getJSON(t, s.api.URL+"/status", &st)
	if len(st.Instances) != 0 {
		t.Fatalf("pipeline networks kept as instances: %+v", st.Instances)
	}
	names := s.pub.Names()
	found := false
	for _, n := range names {
		if n == "translate_done" {
			found = true
		}
	}
	if !found {
		t.Fatalf("events: %v", names)
	}
}
