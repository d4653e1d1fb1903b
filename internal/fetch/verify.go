package fetch

import (
	"crypto/sha256"
	"errors"
	"io"
	"os"

	"modelzoo/internal/descriptor"
)

// VerifyReader checks that r yields exactly file.Size bytes hashing to file.SHA256.
func VerifyReader(r io.Reader, file descriptor.File) error {
	h := sha256.New()
	n, err := io.Copy(h, io.LimitReader(r, file.Size+1))
	if err != nil {
		return err
	}
	return checkDigest(file, n, h.Sum(nil))
}

// VerifyFile checks the file at path against the descriptor entry.
func VerifyFile(path string, file descriptor.File) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	// Size first: no need to hash a file that cannot match.
	if fi.Size() != file.Size {
		return &SizeMismatchError{Name: file.Name, Expected: file.Size, Actual: fi.Size()}
	}
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	return VerifyReader(fh, file)
}

// Verify inspects the cached files of the precision-p variant without touching
// the network.
func (f *Fetcher) Verify(d *descriptor.Descriptor, p descriptor.Precision) ([]FileStatus, error) {
	v, ok := d.Variant(p)
	if !ok {
		return nil, ErrUnknownPrecision
	}
	files := v.Files()
	out := make([]FileStatus, 0, len(files))
	for _, file := range files {
		st := FileStatus{File: file}
		path, err := f.LocalPath(d, file)
		if err != nil {
			st.Status, st.Err = StatusFailed, err
			out = append(out, st)
			continue
		}
		st.Path = path
		err = VerifyFile(path, file)
		var se *SizeMismatchError
		var ce *ChecksumMismatchError
		switch {
		case err == nil:
			st.Status, st.Size = StatusOK, file.Size
		case errors.Is(err, os.ErrNotExist):
			st.Status = StatusMissing
		case errors.As(err, &se):
			st.Status, st.Size = StatusSizeMismatch, se.Actual
		case errors.As(err, &ce):
			st.Status, st.Size = StatusChecksumMismatch, file.Size
		default:
			st.Status = StatusFailed
		}
		st.Err = err
		out = append(out, st)
	}
	return out, nil
}

// AllOK reports whether every status is ok.
func AllOK(sts []FileStatus) bool {
	for _, s := range sts {
		if s.Status != StatusOK {
			return false
		}
	}
	return len(sts) > 0
}
