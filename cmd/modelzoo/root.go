package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"modelzoo/internal/config"
	"modelzoo/internal/fetch"
	"modelzoo/internal/imgmodel"
	"modelzoo/internal/ledger"
	"modelzoo/internal/manager"
	"modelzoo/internal/registry"
)

// app carries the resolved configuration and logger to every subcommand.
type app struct {
	configPath string
	cfg        config.Config
	log        zerolog.Logger
	lookupEnv  func(string) (string, bool)
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default(), lookupEnv: os.LookupEnv}
	return buildRootCmdWith(a)
}

// buildRootCmdWith constructs the command tree. Precedence for every setting:
// flags > MODELZOO_* env > config file > defaults.
func buildRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "modelzoo",
		Short:         "Fetch, verify and serve pretrained image models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (.yaml, .json or .toml)")
	pf.String("models-dir", a.cfg.ModelsDir, "Directory of model descriptors (<dir>/<model>/model.yml)")
	pf.String("cache-dir", a.cfg.CacheDir, "Artifact cache directory")
	pf.String("runtime", a.cfg.Runtime, "Inference runtime: ovms|onnx|none")
	pf.String("runtime-url", a.cfg.RuntimeURL, "OVMS base URL, or onnxruntime shared library path")
	pf.String("log-level", a.cfg.LogLevel, "Log level: debug|info|warn|error")
	pf.String("log-format", a.cfg.LogFormat, "Log format: console|json")
	pf.String("ledger-dsn", a.cfg.LedgerDSN, "MySQL DSN for the verification ledger (empty: in-memory)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.resolve(cmd)
	}

	root.AddCommand(
		newServeCmd(a),
		newListCmd(a),
		newInfoCmd(a),
		newFetchCmd(a),
		newVerifyCmd(a),
		newViewSizeCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// resolve layers config file, environment and changed flags over the defaults
// and builds the logger.
func (a *app) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		fileCfg, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.Merge(fileCfg)
	}
	if err := cfg.ApplyEnv(a.lookupEnv); err != nil {
		return err
	}
	applyFlags(cmd.Flags(), &cfg)
	a.cfg = cfg

	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.log = log
	return nil
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	str := func(name string, dst *string) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	num := func(name string, dst *int) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			if n, err := fs.GetInt(name); err == nil {
				*dst = n
			}
		}
	}
	dur := func(name string, dst *config.Duration) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			if d, err := fs.GetDuration(name); err == nil {
				dst.Duration = d
			}
		}
	}
	str("addr", &cfg.Addr)
	str("models-dir", &cfg.ModelsDir)
	str("cache-dir", &cfg.CacheDir)
	str("runtime", &cfg.Runtime)
	str("runtime-url", &cfg.RuntimeURL)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("ledger-dsn", &cfg.LedgerDSN)
	str("default-model", &cfg.DefaultModel)
	str("default-precision", &cfg.DefaultPrecision)
	str("state-file", &cfg.StateFile)
	num("memory-budget-mb", &cfg.MemoryBudgetMB)
	num("memory-margin-mb", &cfg.MemoryMarginMB)
	num("max-queue-depth", &cfg.MaxQueueDepth)
	num("fetch-concurrency", &cfg.FetchConcurrency)
	num("preload", &cfg.Preload)
	dur("max-wait", &cfg.MaxWait)
	dur("drain-timeout", &cfg.DrainTimeout)
	dur("infer-timeout", &cfg.InferTimeout)
	dur("fetch-timeout", &cfg.FetchTimeout)
	if f := fs.Lookup("auto-resize"); f != nil && f.Changed {
		cfg.AutoResize, _ = fs.GetBool("auto-resize")
	}
	if f := fs.Lookup("cors-origins"); f != nil && f.Changed {
		cfg.CORSOrigins = config.SplitCSV(f.Value.String())
	}
	if f := fs.Lookup("max-body-bytes"); f != nil && f.Changed {
		cfg.MaxBodyBytes, _ = fs.GetInt64("max-body-bytes")
	}
	if f := fs.Lookup("max-pixels"); f != nil && f.Changed {
		cfg.MaxPixels, _ = fs.GetInt64("max-pixels")
	}
}

// components are the long-lived pieces built from the resolved config.
type components struct {
	reg     *registry.Registry
	ledger  ledger.Ledger
	fetcher *fetch.Fetcher
	mgr     *manager.Manager
}

func (c *components) Close() {
	if c.mgr != nil {
		_ = c.mgr.Close()
	}
	if c.ledger != nil {
		_ = c.ledger.Close()
	}
}

func (a *app) build() (*components, error) {
	cfg := a.cfg
	reg, err := registry.Scan(cfg.ModelsDir, a.log)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	rt, err := imgmodel.NewRuntime(cfg.Runtime, cfg.RuntimeURL, a.log)
	if err != nil {
		return nil, err
	}
	led, err := ledger.Open(cfg.LedgerDSN)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	f := fetch.New(cfg.CacheDir, a.log)
	f.Ledger = led
	if cfg.FetchConcurrency > 0 {
		f.Concurrency = cfg.FetchConcurrency
	}
	if cfg.FetchTimeout.Duration > 0 {
		f.Client = &http.Client{Timeout: cfg.FetchTimeout.Duration}
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:         reg,
		Runtime:          rt,
		Fetcher:          f,
		DefaultModel:     cfg.DefaultModel,
		DefaultPrecision: cfg.DefaultPrecision,
		BudgetMB:         cfg.MemoryBudgetMB,
		MarginMB:         cfg.MemoryMarginMB,
		MaxQueueDepth:    cfg.MaxQueueDepth,
		MaxWait:          cfg.MaxWait.Duration,
		DrainTimeout:     cfg.DrainTimeout.Duration,
		AutoResize:       cfg.AutoResize,
		StatePath:        cfg.StateFile,
		Publisher:        manager.LogPublisher{Log: a.log},
		Logger:           a.log,
	})
	return &components{reg: reg, ledger: led, fetcher: f, mgr: mgr}, nil
}

// serveFlags are only meaningful for the server.
func addServeFlags(fs *pflag.FlagSet, cfg config.Config) {
	fs.String("addr", cfg.Addr, "HTTP listen address, e.g. :8080")
	fs.String("default-model", cfg.DefaultModel, "Default model id when a request omits model")
	fs.String("default-precision", cfg.DefaultPrecision, "Default precision when a request omits it")
	fs.Int("memory-budget-mb", cfg.MemoryBudgetMB, "Memory budget in MB for all instances (0=unlimited)")
	fs.Int("memory-margin-mb", cfg.MemoryMarginMB, "Reserved memory margin in MB")
	fs.Int("max-queue-depth", cfg.MaxQueueDepth, "Queued requests per instance before 429")
	fs.Duration("max-wait", cfg.MaxWait.Duration, "Longest a request waits for its turn")
	fs.Duration("drain-timeout", cfg.DrainTimeout.Duration, "Grace period for in-flight work on unload")
	fs.Duration("infer-timeout", cfg.InferTimeout.Duration, "Per-request inference timeout (0 disables)")
	fs.Bool("auto-resize", cfg.AutoResize, "Let the runtime resize inputs instead of resizing in process")
	fs.String("cors-origins", "", "Comma-separated allowed CORS origins (empty disables CORS)")
	fs.String("state-file", cfg.StateFile, "File persisting instance last-used times")
	fs.Int("preload", cfg.Preload, "Load this many recently used instances on start")
	fs.Int64("max-body-bytes", cfg.MaxBodyBytes, "Maximum request body size")
	fs.Int64("max-pixels", cfg.MaxPixels, "Maximum width x height of uploaded images")
}

func timeoutOrDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
