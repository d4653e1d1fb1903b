package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"modelzoo/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP server",
		Example: "  modelzoo serve --runtime ovms --runtime-url http://localhost:9001 --default-model image-retrieval-0001",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	addServeFlags(cmd.Flags(), a.cfg)
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	c, err := a.build()
	if err != nil {
		return err
	}
	defer c.Close()

	rep := c.mgr.SanityCheck()
	ev := a.log.Info()
	if rep.Error != "" {
		ev = a.log.Warn().Str("problem", rep.Error)
	}
	ev.Str("runtime", rep.Runtime).Int("models", rep.Models).Str("cache_dir", rep.CacheDir).
		Bool("cache_writable", rep.CacheWritable).Msg("sanity check")

	httpapi.SetLogger(a.log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
	httpapi.SetMaxPixels(a.cfg.MaxPixels)
	httpapi.SetInferTimeout(a.cfg.InferTimeout.Duration)
	httpapi.SetCORSOptions(len(a.cfg.CORSOrigins) > 0, a.cfg.CORSOrigins,
		[]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		[]string{"Accept", "Content-Type", "X-Log-Level", "X-Request-Id"})

	if a.cfg.Preload > 0 {
		go func() {
			n := c.mgr.Preload(ctx, a.cfg.Preload)
			a.log.Info().Int("instances", n).Msg("preload done")
		}()
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           httpapi.NewMux(c.mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.cfg.Addr).Str("models_dir", a.cfg.ModelsDir).Msg("modelzoo listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeoutOrDefault(a.cfg.DrainTimeout.Duration, 5*time.Second))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	a.log.Info().Msg("server stopped")
	return nil
}
