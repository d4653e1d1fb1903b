package manager

import (
	"fmt"

	"modelzoo/internal/common/fsutil"
	"modelzoo/internal/descriptor"
)

// resolve applies defaults and looks up the descriptor and variant. With no
// precision requested or configured, the first variant in precision order wins.
func (m *Manager) resolve(modelID, precision string) (*descriptor.Descriptor, descriptor.Variant, error) {
	if modelID == "" {
		modelID = m.defaultModel
		if modelID == "" {
			return nil, descriptor.Variant{}, ErrModelNotFound("(unspecified)")
		}
	}
	d, ok := m.registry.Descriptor(modelID)
	if !ok {
		return nil, descriptor.Variant{}, ErrModelNotFound(modelID)
	}
	if precision == "" {
		precision = m.defaultPrecision
	}
	if precision == "" {
		vs := d.Variants()
		if len(vs) == 0 {
			return nil, descriptor.Variant{}, ErrModelNotFound(modelID + " (no loadable variant)")
		}
		return d, vs[0], nil
	}
	v, ok := d.Variant(descriptor.Precision(precision))
	if !ok {
		return nil, descriptor.Variant{}, ErrModelNotFound(modelID + "@" + precision)
	}
	return d, v, nil
}

// Resolve reports which model and precision a request would be served by.
func (m *Manager) Resolve(modelID, precision string) (string, string, error) {
	d, v, err := m.resolve(modelID, precision)
	if err != nil {
		return "", "", err
	}
	return d.Name, string(v.Precision), nil
}

// cachedPaths returns the cached model and weights files of a variant, or a
// dependency error when they have not been fetched.
func (m *Manager) cachedPaths(d *descriptor.Descriptor, v descriptor.Variant) (string, string, error) {
	if m.fetcher == nil {
		return "", "", ErrDependencyUnavailable("artifact cache not configured")
	}
	modelPath, weightsPath, err := m.fetcher.VariantPaths(d, v.Precision)
	if err != nil {
		return "", "", err
	}
	if !fsutil.PathExists(modelPath) || (weightsPath != "" && !fsutil.PathExists(weightsPath)) {
		return "", "", ErrDependencyUnavailable(fmt.Sprintf("%s %s not fetched", d.Name, v.Precision))
	}
	return modelPath, weightsPath, nil
}

// estimateMemMB sizes an instance from its artifacts on disk (MB, at least 1).
func estimateMemMB(paths ...string) int {
	var total int64
	for _, p := range paths {
		if n := fsutil.FileSize(p); n > 0 {
			total += n
		}
	}
	mb := int(total / (1024 * 1024))
	if mb <= 0 {
		// unknown or tiny: still count against the budget
		mb = 1
	}
	return mb
}
