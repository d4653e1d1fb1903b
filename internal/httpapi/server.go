package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelzoo/internal/descriptor"
	"modelzoo/internal/fetch"
	"modelzoo/internal/imgcodec"
	"modelzoo/internal/imgmodel"
	"modelzoo/internal/manager"
	"modelzoo/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Describe(id string) (types.ModelDetail, bool)
	Status() types.StatusResponse
	Ready() bool
	Resolve(modelID, precision string) (string, string, error)
	Infer(ctx context.Context, req types.InferRequest, img image.Image) (*imgmodel.Result, error)
	Translate(ctx context.Context, req types.TranslateRequest, mask *image.Gray, exemplar image.Image, exemplarMask *image.Gray) (*imgmodel.Result, error)
	ViewSize(ctx context.Context, modelID, precision string) (imgmodel.Size, error)
	Fetch(ctx context.Context, modelID, precision string) (manager.FetchOp, error)
	Verify(modelID, precision string) (descriptor.Precision, []fetch.FileStatus, error)
	Switch(ctx context.Context, modelID, precision string) (string, error)
	Unload(id string) error
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Request-Id", "X-Model", "X-Precision", "X-View-Width", "X-View-Height"},
			MaxAge:         300,
		}))
	}
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", handleListModels(svc))
	r.Route("/models/{id}", func(r chi.Router) {
		r.Get("/", handleDescribe(svc))
		r.Post("/fetch", handleFetch(svc))
		r.Get("/verify", handleVerify(svc))
		r.Get("/view-size", handleViewSize(svc))
	})
	r.Post("/infer", handleInfer(svc))
	r.Post("/translate", handleTranslate(svc))
	r.Post("/switch", handleSwitch(svc))
	r.Delete("/instances/{id}", handleUnload(svc))

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// handleListModels godoc
// @Summary      List models
// @Description  Models found in the descriptor directory with their precisions.
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func handleListModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	}
}

// handleDescribe godoc
// @Summary      Describe a model
// @Tags         models
// @Produce      json
// @Param        id   path      string  true  "Model ID"
// @Success      200  {object}  types.ModelDetail
// @Failure      404  {object}  types.ErrorResponse
// @Router       /models/{id} [get]
func handleDescribe(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		d, ok := svc.Describe(id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, manager.ErrModelNotFound(id).Error())
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// handleFetch godoc
// @Summary      Fetch model artifacts
// @Description  Downloads and verifies the files of one precision variant into the cache.
// @Tags         models
// @Produce      json
// @Param        id         path   string  true   "Model ID"
// @Param        precision  query  string  false  "Precision (default: server default or first variant)"
// @Success      200  {object}  types.FetchResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      502  {object}  types.ErrorResponse
// @Router       /models/{id}/fetch [post]
func handleFetch(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
		defer cancel()
		op, err := svc.Fetch(ctx, chi.URLParam(r, "id"), r.URL.Query().Get("precision"))
		if err != nil {
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, status, start, err)
			return
		}
		writeJSON(w, http.StatusOK, types.FetchResponse{
			OpID:       op.ID,
			Model:      op.Result.Model,
			Precision:  string(op.Result.Precision),
			Files:      fileResults(op.Result.Files),
			DurationMS: op.Result.Duration.Milliseconds(),
		})
		logEnd(r, lvl, http.StatusOK, start, nil)
	}
}

// handleVerify godoc
// @Summary      Verify cached artifacts
// @Tags         models
// @Produce      json
// @Param        id         path   string  true   "Model ID"
// @Param        precision  query  string  false  "Precision"
// @Success      200  {object}  types.VerifyResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /models/{id}/verify [get]
func handleVerify(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, sts, err := svc.Verify(id, r.URL.Query().Get("precision"))
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.VerifyResponse{
			Model:     id,
			Precision: string(p),
			OK:        fetch.AllOK(sts),
			Files:     fileResults(sts),
		})
	}
}

// handleViewSize godoc
// @Summary      Output view size
// @Description  Loads the model if needed and reports the spatial size of its output.
// @Tags         models
// @Produce      json
// @Param        id         path   string  true   "Model ID"
// @Param        precision  query  string  false  "Precision"
// @Success      200  {object}  types.ViewSize
// @Failure      404  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /models/{id}/view-size [get]
func handleViewSize(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
		defer cancel()
		vs, err := svc.ViewSize(ctx, chi.URLParam(r, "id"), r.URL.Query().Get("precision"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ViewSize{Width: vs.Width, Height: vs.Height})
	}
}

// handleInfer godoc
// @Summary      Run a model on an image
// @Description  Accepts multipart/form-data (field "image" plus optional "model", "precision", "format")
// @Description  or a raw image body with the same options as query parameters. Spatial outputs are
// @Description  returned as an encoded image; embedding outputs as JSON.
// @Tags         inference
// @Accept       mpfd
// @Accept       image/png
// @Accept       image/jpeg
// @Produce      png
// @Produce      jpeg
// @Produce      json
// @Param        image      formData  file    false  "Input image"
// @Param        model      query     string  false  "Model ID"
// @Param        precision  query     string  false  "Precision"
// @Param        format     query     string  false  "Output format: png, jpeg or webp"
// @Success      200  {object}  types.EmbeddingResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      415  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /infer [post]
func handleInfer(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		req, data, status, err := readInferRequest(r)
		if err != nil {
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, status, start, err)
			return
		}
		format, err := imgcodec.ParseFormat(req.Format)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			logEnd(r, lvl, http.StatusBadRequest, start, err)
			return
		}
		img, _, err := imgcodec.DecodeBytesLimit(data, maxPixels)
		if err != nil {
			status := statusFor(err)
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, status, start, err)
			return
		}
		model, precision, err := svc.Resolve(req.Model, req.Precision)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			logEnd(r, lvl, statusFor(err), start, err)
			return
		}
		req.Model, req.Precision = model, precision
		if lvl >= LevelDebug {
			zlog.Debug().Str("model", model).Str("precision", precision).
				Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("infer start")
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
		defer cancel()
		if inferTimeout > 0 {
			var cancelTimeout context.CancelFunc
			ctx, cancelTimeout = context.WithTimeout(ctx, inferTimeout)
			defer cancelTimeout()
		}
		res, err := svc.Infer(ctx, req, img)
		if err != nil {
			// Client went away: nothing to write.
			if r.Context().Err() != nil {
				return
			}
			status := statusFor(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("queue")
			}
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, status, start, err)
			return
		}

		vs := types.ViewSize{Width: res.ViewSize.Width, Height: res.ViewSize.Height}
		if res.Image == nil {
			inferOutputsTotal.WithLabelValues("embedding").Inc()
			writeJSON(w, http.StatusOK, types.EmbeddingResponse{Model: model, Precision: precision, Embedding: res.Embedding, ViewSize: vs})
			logEnd(r, lvl, http.StatusOK, start, nil)
			return
		}
		if err := writeImage(w, res.Image, format, model, precision, vs); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			logEnd(r, lvl, http.StatusInternalServerError, start, err)
			return
		}
		inferOutputsTotal.WithLabelValues("image").Inc()
		logEnd(r, lvl, http.StatusOK, start, nil)
	}
}

// writeImage encodes img and writes it with the serving model headers.
func writeImage(w http.ResponseWriter, img image.Image, format, model, precision string, vs types.ViewSize) error {
	var buf bytes.Buffer
	if err := imgcodec.Encode(&buf, img, format, encodeQuality); err != nil {
		return err
	}
	h := w.Header()
	h.Set("Content-Type", imgcodec.ContentType(format))
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	h.Set("X-Model", model)
	h.Set("X-Precision", precision)
	h.Set("X-View-Width", strconv.Itoa(vs.Width))
	h.Set("X-View-Height", strconv.Itoa(vs.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return nil
}

// readInferRequest extracts the options and raw image bytes from either a
// multipart form or a raw image body. On failure it returns the HTTP status.
func readInferRequest(r *http.Request) (types.InferRequest, []byte, int, error) {
	q := r.URL.Query()
	req := types.InferRequest{Model: q.Get("model"), Precision: q.Get("precision"), Format: q.Get("format")}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return req, nil, http.StatusUnsupportedMediaType, errors.New("content type must be multipart/form-data or image/*")
	}
	switch {
	case mt == "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return req, nil, http.StatusBadRequest, errors.New("invalid multipart body")
		}
		if v := r.FormValue("model"); v != "" {
			req.Model = v
		}
		if v := r.FormValue("precision"); v != "" {
			req.Precision = v
		}
		if v := r.FormValue("format"); v != "" {
			req.Format = v
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			return req, nil, http.StatusBadRequest, errors.New("image file is required")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return req, nil, http.StatusBadRequest, err
		}
		return req, data, 0, nil
	case strings.HasPrefix(mt, "image/") || mt == "application/octet-stream":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			// MaxBytesReader errors land here; report without size details.
			return req, nil, http.StatusBadRequest, errors.New("invalid image body")
		}
		if len(data) == 0 {
			return req, nil, http.StatusBadRequest, errors.New("image body is empty")
		}
		return req, data, 0, nil
	default:
		return req, nil, http.StatusUnsupportedMediaType, errors.New("content type must be multipart/form-data or image/*")
	}
}

// handleTranslate godoc
// @Summary      Render a semantic mask in the style of an exemplar
// @Description  Multipart form with files "mask", "exemplar" and "exemplar_mask" and fields
// @Description  "correspondence" and "generator" naming the two models. Mask pixels are class
// @Description  labels: palette indices or gray levels.
// @Tags         inference
// @Accept       mpfd
// @Produce      png
// @Produce      jpeg
// @Param        mask            formData  file    true   "Input semantic mask"
// @Param        exemplar        formData  file    true   "Exemplar image"
// @Param        exemplar_mask   formData  file    true   "Exemplar semantic mask"
// @Param        correspondence  formData  string  true   "Correspondence model ID"
// @Param        generator       formData  string  true   "Generator model ID"
// @Param        precision       formData  string  false  "Precision for both models"
// @Param        format          formData  string  false  "Output format: png, jpeg or webp"
// @Success      200
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      413  {object}  types.ErrorResponse
// @Failure      429  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /translate [post]
func handleTranslate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		req, files, status, err := readTranslateRequest(r)
		if err != nil {
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, status, start, err)
			return
		}
		format, err := imgcodec.ParseFormat(req.Format)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			logEnd(r, lvl, http.StatusBadRequest, start, err)
			return
		}
		var imgs [3]image.Image
		for i, data := range files {
			if imgs[i], _, err = imgcodec.DecodeBytesLimit(data, maxPixels); err != nil {
				status := statusFor(err)
				writeJSONError(w, status, translateParts[i]+": "+err.Error())
				logEnd(r, lvl, status, start, err)
				return
			}
		}
		model, precision, err := svc.Resolve(req.Generator, req.Precision)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			logEnd(r, lvl, statusFor(err), start, err)
			return
		}

		ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
		defer cancel()
		if inferTimeout > 0 {
			var cancelTimeout context.CancelFunc
			ctx, cancelTimeout = context.WithTimeout(ctx, inferTimeout)
			defer cancelTimeout()
		}
		res, err := svc.Translate(ctx, req, imgmodel.MaskFromImage(imgs[0]), imgs[1], imgmodel.MaskFromImage(imgs[2]))
		if err == nil && res.Image == nil {
			err = errors.New("generator produced no image")
		}
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			status := statusFor(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("translate")
			}
			writeJSONError(w, status, err.Error())
			logEnd(r, lvl, status, start, err)
			return
		}
		vs := types.ViewSize{Width: res.ViewSize.Width, Height: res.ViewSize.Height}
		if err := writeImage(w, res.Image, format, model, precision, vs); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			logEnd(r, lvl, http.StatusInternalServerError, start, err)
			return
		}
		inferOutputsTotal.WithLabelValues("translation").Inc()
		logEnd(r, lvl, http.StatusOK, start, nil)
	}
}

var translateParts = [3]string{"mask", "exemplar", "exemplar_mask"}

// readTranslateRequest reads the model fields and the three image parts of a
// multipart translation request. On failure it returns the HTTP status.
func readTranslateRequest(r *http.Request) (types.TranslateRequest, [3][]byte, int, error) {
	var files [3][]byte
	q := r.URL.Query()
	req := types.TranslateRequest{
		Correspondence: q.Get("correspondence"),
		Generator:      q.Get("generator"),
		Precision:      q.Get("precision"),
		Format:         q.Get("format"),
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/form-data" {
		return req, files, http.StatusUnsupportedMediaType, errors.New("content type must be multipart/form-data")
	}
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		return req, files, http.StatusBadRequest, errors.New("invalid multipart body")
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"correspondence", &req.Correspondence},
		{"generator", &req.Generator},
		{"precision", &req.Precision},
		{"format", &req.Format},
	} {
		if v := r.FormValue(f.name); v != "" {
			*f.dst = v
		}
	}
	if req.Correspondence == "" || req.Generator == "" {
		return req, files, http.StatusBadRequest, errors.New("correspondence and generator models are required")
	}
	for i, name := range translateParts {
		f, _, err := r.FormFile(name)
		if err != nil {
			return req, files, http.StatusBadRequest, errors.New(name + " file is required")
		}
		files[i], err = io.ReadAll(f)
		f.Close()
		if err != nil {
			return req, files, http.StatusBadRequest, err
		}
	}
	return req, files, 0, nil
}

// handleSwitch godoc
// @Summary      Load a model instance in the background
// @Tags         instances
// @Accept       json
// @Produce      json
// @Param        request  body      types.SwitchRequest  true  "Model selection"
// @Success      202      {object}  types.SwitchResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Router       /switch [post]
func handleSwitch(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req types.SwitchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		op, err := svc.Switch(r.Context(), req.Model, req.Precision)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, types.SwitchResponse{OpID: op})
	}
}

// handleUnload godoc
// @Summary      Unload instances
// @Description  id is "<model>@<precision>" or a model ID (all precisions).
// @Tags         instances
// @Param        id   path  string  true  "Instance key or model ID"
// @Success      204
// @Failure      404  {object}  types.ErrorResponse
// @Router       /instances/{id} [delete]
func handleUnload(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Unload(chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("queue")
	}
	writeJSONError(w, status, err.Error())
}

func fileResults(sts []fetch.FileStatus) []types.FileResult {
	out := make([]types.FileResult, 0, len(sts))
	for _, st := range sts {
		fr := types.FileResult{Name: st.File.Name, Status: string(st.Status), Size: st.Size}
		if st.Err != nil {
			fr.Error = st.Err.Error()
		}
		out = append(out, fr)
	}
	return out
}
