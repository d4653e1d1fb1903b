package descriptor

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Precision names a serialization of the same trained weights.
type Precision string

const (
	FP32     Precision = "FP32"
	FP16     Precision = "FP16"
	FP16INT8 Precision = "FP16-INT8"
)

var precisionOrder = map[Precision]int{FP32: 0, FP16: 1, FP16INT8: 2}

// Variant is the set of files that make up one precision of the model: the
// topology (.xml or .onnx) and, for IR models, the .bin weights.
type Variant struct {
	Precision Precision `json:"precision"`
	Model     File      `json:"model"`
	Weights   *File     `json:"weights,omitempty"`
	// Extra holds files in the precision directory that are neither topology nor weights.
	Extra []File `json:"extra,omitempty"`
}

// Files returns every file of the variant, topology first.
func (v Variant) Files() []File {
	out := []File{v.Model}
	if v.Weights != nil {
		out = append(out, *v.Weights)
	}
	return append(out, v.Extra...)
}

// Size is the total byte size of the variant.
func (v Variant) Size() int64 {
	var n int64
	for _, f := range v.Files() {
		n += f.Size
	}
	return n
}

// Variants groups files by precision directory. Groups without a topology file
// are dropped. The order is FP32, FP16, FP16-INT8, then the rest by name.
func (d *Descriptor) Variants() []Variant {
	groups := make(map[Precision][]File)
	var keys []Precision
	for _, f := range d.Files {
		p := f.Precision()
		if _, ok := groups[p]; !ok {
			keys = append(keys, p)
		}
		groups[p] = append(groups[p], f)
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := precisionOrder[keys[i]]
		oj, jok := precisionOrder[keys[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	out := make([]Variant, 0, len(keys))
	for _, p := range keys {
		if v, ok := buildVariant(p, groups[p]); ok {
			out = append(out, v)
		}
	}
	return out
}

// Variant returns the variant for precision p.
func (d *Descriptor) Variant(p Precision) (Variant, bool) {
	for _, v := range d.Variants() {
		if strings.EqualFold(string(v.Precision), string(p)) {
			return v, true
		}
	}
	return Variant{}, false
}

// Precisions lists the available precisions in variant order.
func (d *Descriptor) Precisions() []Precision {
	vs := d.Variants()
	out := make([]Precision, len(vs))
	for i, v := range vs {
		out[i] = v.Precision
	}
	return out
}

// TotalSize returns the byte size of the variant for p, or 0 if absent.
func (d *Descriptor) TotalSize(p Precision) int64 {
	v, ok := d.Variant(p)
	if !ok {
		return 0
	}
	return v.Size()
}

func buildVariant(p Precision, files []File) (Variant, bool) {
	v := Variant{Precision: p}
	var haveModel bool
	bins := make(map[string]File)
	for _, f := range files {
		if strings.EqualFold(path.Ext(f.Name), ".bin") {
			bins[strings.TrimSuffix(f.Name, path.Ext(f.Name))] = f
		}
	}
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Name))
		if haveModel || (ext != ".xml" && ext != ".onnx") {
			continue
		}
		v.Model = f
		haveModel = true
		if ext == ".xml" {
			if w, ok := bins[strings.TrimSuffix(f.Name, path.Ext(f.Name))]; ok {
				v.Weights = &w
			}
		}
	}
	if !haveModel {
		return Variant{}, false
	}
	for _, f := range files {
		if f.Name == v.Model.Name || (v.Weights != nil && f.Name == v.Weights.Name) {
			continue
		}
		v.Extra = append(v.Extra, f)
	}
	return v, true
}

// WeightsPath derives the weights file for an IR topology path: "x.xml" -> "x.bin".
// Non-IR topologies have no separate weights and yield "".
func WeightsPath(modelPath string) string {
	ext := filepath.Ext(modelPath)
	if !strings.EqualFold(ext, ".xml") {
		return ""
	}
	return strings.TrimSuffix(modelPath, ext) + ".bin"
}
