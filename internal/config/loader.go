package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string ("30s") in
// every supported config format.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr             string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir        string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	CacheDir         string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	DefaultModel     string `json:"default_model" yaml:"default_model" toml:"default_model"`
	DefaultPrecision string `json:"default_precision" yaml:"default_precision" toml:"default_precision"`

	// Runtime is ovms, onnx or none. RuntimeURL is the OVMS base URL or the
	// onnxruntime shared library path.
	Runtime    string `json:"runtime" yaml:"runtime" toml:"runtime"`
	RuntimeURL string `json:"runtime_url" yaml:"runtime_url" toml:"runtime_url"`
	AutoResize bool   `json:"auto_resize" yaml:"auto_resize" toml:"auto_resize"`

	MemoryBudgetMB int      `json:"memory_budget_mb" yaml:"memory_budget_mb" toml:"memory_budget_mb"`
	MemoryMarginMB int      `json:"memory_margin_mb" yaml:"memory_margin_mb" toml:"memory_margin_mb"`
	MaxQueueDepth  int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWait        Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	DrainTimeout   Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`
	InferTimeout   Duration `json:"infer_timeout" yaml:"infer_timeout" toml:"infer_timeout"`

	FetchConcurrency int      `json:"fetch_concurrency" yaml:"fetch_concurrency" toml:"fetch_concurrency"`
	FetchTimeout     Duration `json:"fetch_timeout" yaml:"fetch_timeout" toml:"fetch_timeout"`
	LedgerDSN        string   `json:"ledger_dsn" yaml:"ledger_dsn" toml:"ledger_dsn"`

	// StateFile persists instance last-used times; Preload reloads that many on start.
	StateFile string `json:"state_file" yaml:"state_file" toml:"state_file"`
	Preload   int    `json:"preload" yaml:"preload" toml:"preload"`

	LogLevel     string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat    string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	// MaxPixels caps width × height of uploaded images.
	MaxPixels int64 `json:"max_pixels" yaml:"max_pixels" toml:"max_pixels"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Addr:             ":8080",
		ModelsDir:        "~/.modelzoo/models",
		CacheDir:         "~/.modelzoo/cache",
		Runtime:          "none",
		MaxQueueDepth:    32,
		MaxWait:          Duration{30 * time.Second},
		DrainTimeout:     Duration{5 * time.Second},
		FetchConcurrency: 2,
		FetchTimeout:     Duration{10 * time.Minute},
		LogLevel:         "info",
		LogFormat:        "console",
		MaxBodyBytes:     32 << 20,
		MaxPixels:        40_000_000,
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Merge overlays the non-zero fields of o onto c.
func (c *Config) Merge(o Config) {
	setStr(&c.Addr, o.Addr)
	setStr(&c.ModelsDir, o.ModelsDir)
	setStr(&c.CacheDir, o.CacheDir)
	setStr(&c.DefaultModel, o.DefaultModel)
	setStr(&c.DefaultPrecision, o.DefaultPrecision)
	setStr(&c.Runtime, o.Runtime)
	setStr(&c.RuntimeURL, o.RuntimeURL)
	if o.AutoResize {
		c.AutoResize = true
	}
	setInt(&c.MemoryBudgetMB, o.MemoryBudgetMB)
	setInt(&c.MemoryMarginMB, o.MemoryMarginMB)
	setInt(&c.MaxQueueDepth, o.MaxQueueDepth)
	setDur(&c.MaxWait, o.MaxWait)
	setDur(&c.DrainTimeout, o.DrainTimeout)
	setDur(&c.InferTimeout, o.InferTimeout)
	setInt(&c.FetchConcurrency, o.FetchConcurrency)
	setDur(&c.FetchTimeout, o.FetchTimeout)
	setStr(&c.LedgerDSN, o.LedgerDSN)
	setStr(&c.StateFile, o.StateFile)
	setInt(&c.Preload, o.Preload)
	setStr(&c.LogLevel, o.LogLevel)
	setStr(&c.LogFormat, o.LogFormat)
	if len(o.CORSOrigins) > 0 {
		c.CORSOrigins = append([]string(nil), o.CORSOrigins...)
	}
	if o.MaxBodyBytes > 0 {
		c.MaxBodyBytes = o.MaxBodyBytes
	}
	if o.MaxPixels > 0 {
		c.MaxPixels = o.MaxPixels
	}
}

// EnvPrefix prefixes every environment override, e.g. MODELZOO_ADDR.
const EnvPrefix = "MODELZOO_"

// ApplyEnv overlays MODELZOO_* variables found through lookup (os.LookupEnv
// in production). Malformed numbers and durations are reported.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, EnvPrefix+key)
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, EnvPrefix+key)
			}
		}
	}
	str("ADDR", &c.Addr)
	str("MODELS_DIR", &c.ModelsDir)
	str("CACHE_DIR", &c.CacheDir)
	str("DEFAULT_MODEL", &c.DefaultModel)
	str("DEFAULT_PRECISION", &c.DefaultPrecision)
	str("RUNTIME", &c.Runtime)
	str("RUNTIME_URL", &c.RuntimeURL)
	if v, ok := lookup(EnvPrefix + "AUTO_RESIZE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, EnvPrefix+"AUTO_RESIZE")
		} else {
			c.AutoResize = b
		}
	}
	num("MEMORY_BUDGET_MB", &c.MemoryBudgetMB)
	num("MEMORY_MARGIN_MB", &c.MemoryMarginMB)
	num("MAX_QUEUE_DEPTH", &c.MaxQueueDepth)
	dur("MAX_WAIT", &c.MaxWait)
	dur("DRAIN_TIMEOUT", &c.DrainTimeout)
	dur("INFER_TIMEOUT", &c.InferTimeout)
	num("FETCH_CONCURRENCY", &c.FetchConcurrency)
	dur("FETCH_TIMEOUT", &c.FetchTimeout)
	str("LEDGER_DSN", &c.LedgerDSN)
	str("STATE_FILE", &c.StateFile)
	num("PRELOAD", &c.Preload)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = SplitCSV(v)
	}
	int64s := func(key string, dst *int64) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, EnvPrefix+key)
				return
			}
			*dst = n
		}
	}
	int64s("MAX_BODY_BYTES", &c.MaxBodyBytes)
	int64s("MAX_PIXELS", &c.MaxPixels)
	if len(errs) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(errs, ", "))
	}
	return nil
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empties.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDur(dst *Duration, v Duration) {
	if v.Duration != 0 {
		*dst = v
	}
}
