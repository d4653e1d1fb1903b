// Package descriptor parses model descriptors: static YAML records that list the
// downloadable artifacts of one trained model, keyed by precision.
//
// A descriptor looks like:
//
//	description: >-
//	  Image retrieval model based on MobileNetV2...
//	task_type: object_attributes
//	files:
//	  - name: FP32/image-retrieval-0001.xml
//	    size: 291526
//	    sha256: 5c8d...
//	    source: https://download.example.org/.../FP32/image-retrieval-0001.xml
//	framework: dldt
//	license: https://raw.githubusercontent.com/.../LICENSE
package descriptor

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is one downloadable artifact.
type File struct {
	Name   string `yaml:"name" json:"name"`
	Size   int64  `yaml:"size" json:"size"`
	SHA256 string `yaml:"sha256" json:"sha256"`
	Source string `yaml:"source" json:"source"`
}

// Precision returns the precision directory of the file (first path segment),
// or "" when the file sits at the descriptor root.
func (f File) Precision() Precision {
	i := strings.IndexByte(f.Name, '/')
	if i <= 0 {
		return ""
	}
	return Precision(f.Name[:i])
}

// Descriptor describes one model and its artifacts.
type Descriptor struct {
	// Name is not part of the YAML; it is taken from the directory holding the file.
	Name        string `yaml:"-" json:"name"`
	Description string `yaml:"description" json:"description"`
	TaskType    string `yaml:"task_type" json:"task_type"`
	Files       []File `yaml:"files" json:"files"`
	Framework   string `yaml:"framework" json:"framework"`
	License     string `yaml:"license" json:"license"`
}

// Parse decodes a YAML descriptor and validates it.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Load reads and parses a descriptor file. The descriptor name defaults to the
// name of the directory containing the file.
func Load(p string) (*Descriptor, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	d, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if d.Name == "" {
		d.Name = filepath.Base(filepath.Dir(p))
	}
	return d, nil
}

// Validate checks the descriptor's structural rules. It normalizes digests to
// lower case in place.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.TaskType) == "" {
		return invalidf("task_type is required")
	}
	if len(d.Files) == 0 {
		return invalidf("files must not be empty")
	}
	seen := make(map[string]struct{}, len(d.Files))
	for i := range d.Files {
		f := &d.Files[i]
		if err := validateName(f.Name); err != nil {
			return invalidf("files[%d]: %v", i, err)
		}
		if _, dup := seen[f.Name]; dup {
			return invalidf("files[%d]: duplicate name %q", i, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Size <= 0 {
			return invalidf("files[%d] %s: size must be positive", i, f.Name)
		}
		f.SHA256 = strings.ToLower(strings.TrimSpace(f.SHA256))
		if !isHexDigest(f.SHA256) {
			return invalidf("files[%d] %s: sha256 must be 64 hex characters", i, f.Name)
		}
		u, err := url.Parse(f.Source)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalidf("files[%d] %s: source must be an absolute http(s) URL", i, f.Name)
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if path.IsAbs(name) || strings.HasPrefix(name, "\\") {
		return fmt.Errorf("name %q must be relative", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return fmt.Errorf("name %q escapes the model directory", name)
		}
	}
	return nil
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
