// Package fetch downloads descriptor artifacts into a local cache and verifies
// them against the descriptor's size and SHA-256 digest.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelzoo/internal/common/fsutil"
	"modelzoo/internal/descriptor"
	"modelzoo/internal/ledger"
)

const defaultConcurrency = 2

// Status is the per-file outcome of a fetch or verify.
type Status string

const (
	StatusOK               Status = "ok"
	StatusDownloaded       Status = "downloaded"
	StatusMissing          Status = "missing"
	StatusSizeMismatch     Status = "size_mismatch"
	StatusChecksumMismatch Status = "checksum_mismatch"
	StatusFailed           Status = "error"
)

// FileStatus reports what happened to one artifact.
type FileStatus struct {
	File   descriptor.File
	Path   string
	Status Status
	Size   int64
	Err    error
}

// Result summarizes the fetch of one precision variant.
type Result struct {
	Model     string
	Precision descriptor.Precision
	Files     []FileStatus
	Duration  time.Duration
}

// Fetcher downloads artifacts under CacheDir/<model>/<file name>.
type Fetcher struct {
	Client      *http.Client
	CacheDir    string
	Concurrency int
	Logger      zerolog.Logger
	// Ledger, when set, receives one entry per verified download.
	Ledger ledger.Ledger
}

// New returns a Fetcher with default client and concurrency.
func New(cacheDir string, log zerolog.Logger) *Fetcher {
	return &Fetcher{Client: http.DefaultClient, CacheDir: cacheDir, Concurrency: defaultConcurrency, Logger: log}
}

// LocalPath is where file of model d lives in the cache.
func (f *Fetcher) LocalPath(d *descriptor.Descriptor, file descriptor.File) (string, error) {
	root, err := fsutil.ExpandHome(f.CacheDir)
	if err != nil {
		return "", err
	}
	return fsutil.SafeJoin(filepath.Join(root, d.Name), file.Name)
}

// VariantPaths resolves the cached topology and weights paths for precision p.
// weightsPath is empty for single-file formats.
func (f *Fetcher) VariantPaths(d *descriptor.Descriptor, p descriptor.Precision) (modelPath, weightsPath string, err error) {
	v, ok := d.Variant(p)
	if !ok {
		return "", "", fmt.Errorf("%w: %s has no %s variant", ErrUnknownPrecision, d.Name, p)
	}
	if modelPath, err = f.LocalPath(d, v.Model); err != nil {
		return "", "", err
	}
	if v.Weights != nil {
		if weightsPath, err = f.LocalPath(d, *v.Weights); err != nil {
			return "", "", err
		}
	}
	return modelPath, weightsPath, nil
}

// Fetch downloads every file of the precision-p variant that is not already
// present and valid. Up to Concurrency files transfer at once; the first failure
// cancels the others. The returned Result lists every file even on error.
func (f *Fetcher) Fetch(ctx context.Context, d *descriptor.Descriptor, p descriptor.Precision) (Result, error) {
	start := time.Now()
	v, ok := d.Variant(p)
	if !ok {
		return Result{Model: d.Name, Precision: p}, fmt.Errorf("%w: %s has no %s variant", ErrUnknownPrecision, d.Name, p)
	}
	files := v.Files()
	res := Result{Model: d.Name, Precision: v.Precision, Files: make([]FileStatus, len(files))}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	n := f.Concurrency
	if n <= 0 {
		n = defaultConcurrency
	}
	sem := make(chan struct{}, n)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error
	for i, file := range files {
		res.Files[i] = FileStatus{File: file}
		wg.Add(1)
		go func(i int, file descriptor.File) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				res.Files[i].Status = StatusFailed
				res.Files[i].Err = ctx.Err()
				return
			}
			defer func() { <-sem }()
			st := f.fetchFile(ctx, d, v.Precision, file)
			res.Files[i] = st
			if st.Err != nil {
				once.Do(func() {
					firstErr = st.Err
					cancel()
				})
			}
		}(i, file)
	}
	wg.Wait()
	res.Duration = time.Since(start)
	if firstErr == nil {
		for _, st := range res.Files {
			if st.Err != nil {
				firstErr = st.Err
				break
			}
		}
	}
	if firstErr != nil {
		return res, firstErr
	}
	f.Logger.Info().Str("model", d.Name).Str("precision", string(v.Precision)).
		Dur("dur", res.Duration).Msg("variant fetched")
	return res, nil
}

// FetchAll fetches every variant in order and stops at the first failure.
func (f *Fetcher) FetchAll(ctx context.Context, d *descriptor.Descriptor) ([]Result, error) {
	var out []Result
	for _, v := range d.Variants() {
		r, err := f.Fetch(ctx, d, v.Precision)
		out = append(out, r)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (f *Fetcher) fetchFile(ctx context.Context, d *descriptor.Descriptor, p descriptor.Precision, file descriptor.File) FileStatus {
	st := FileStatus{File: file}
	path, err := f.LocalPath(d, file)
	if err != nil {
		st.Status, st.Err = StatusFailed, err
		fetchFilesTotal.WithLabelValues(string(StatusFailed)).Inc()
		return st
	}
	st.Path = path
	if err := VerifyFile(path, file); err == nil {
		st.Status, st.Size = StatusOK, file.Size
		fetchFilesTotal.WithLabelValues("cached").Inc()
		f.Logger.Debug().Str("file", file.Name).Msg("cached artifact verified")
		return st
	}
	n, err := f.download(ctx, path, file)
	st.Size = n
	switch {
	case err == nil:
		st.Status = StatusDownloaded
	case errors.As(err, new(*SizeMismatchError)):
		st.Status = StatusSizeMismatch
	case errors.As(err, new(*ChecksumMismatchError)):
		st.Status = StatusChecksumMismatch
	default:
		st.Status = StatusFailed
	}
	st.Err = err
	fetchFilesTotal.WithLabelValues(string(st.Status)).Inc()
	if err != nil {
		f.Logger.Error().Err(err).Str("file", file.Name).Str("source", file.Source).Msg("artifact fetch failed")
		return st
	}
	f.Logger.Info().Str("file", file.Name).Int64("bytes", n).Msg("artifact downloaded")
	if f.Ledger != nil {
		e := ledger.Entry{
			Model: d.Name, Precision: string(p), File: file.Name,
			SHA256: file.SHA256, Size: file.Size, Source: file.Source,
		}
		if lerr := f.Ledger.Record(ctx, e); lerr != nil {
			f.Logger.Warn().Err(lerr).Str("file", file.Name).Msg("ledger record failed")
		}
	}
	return st
}

// download streams file.Source into a temp file next to path, verifying size and
// digest before renaming it into place. On any failure the temp file is removed.
func (f *Fetcher) download(ctx context.Context, path string, file descriptor.File) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Source, nil)
	if err != nil {
		return 0, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{URL: file.Source, Code: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".part-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	// One byte past the expected size is enough to detect an oversized body.
	n, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(resp.Body, file.Size+1))
	fetchBytesTotal.Add(float64(n))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if err := checkDigest(file, n, h.Sum(nil)); err != nil {
		return n, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return n, err
	}
	committed = true
	return n, nil
}

func checkDigest(file descriptor.File, n int64, sum []byte) error {
	if n != file.Size {
		return &SizeMismatchError{Name: file.Name, Expected: file.Size, Actual: n}
	}
	if got := hex.EncodeToString(sum); got != file.SHA256 {
		return &ChecksumMismatchError{Name: file.Name, Expected: file.SHA256, Actual: got}
	}
	return nil
}
