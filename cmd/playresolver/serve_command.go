package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	apihttp "playresolver/internal/api/http"
	"playresolver/internal/metrics"
	"playresolver/internal/telemetry"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the resolution HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := ctx.env
			if addrFlag != "" {
				cfg.HTTPAddr = addrFlag
			}

			logger := ctx.logger()
			slog.SetDefault(logger)
			metrics.Register(prometheus.DefaultRegisterer)

			rootCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracer, err := telemetry.Init(rootCtx, "playresolver")
			if err != nil {
				logger.Warn("otel init failed", slog.String("error", err.Error()))
			}
			defer func() {
				if shutdownTracer != nil {
					_ = shutdownTracer(context.Background())
				}
			}()

			store, closeStore := buildCache(rootCtx, cfg, logger)
			defer closeStore()

			service, err := buildService(cfg, resolver, store, logger)
			if err != nil {
				return err
			}

			logger.Info("configuration loaded",
				slog.String("service", "playresolver"),
				slog.String("httpAddr", cfg.HTTPAddr),
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("cacheBackend", string(cfg.CacheBackend)),
				slog.String("resolverConfig", cfg.ResolverConfigPath),
				slog.Int("hosts", len(resolver.Hosts)),
				slog.Int("scoreThreshold", resolver.Defaults.Score),
				slog.Duration("resolveTimeout", cfg.ResolveTimeout),
			)

			handler := apihttp.NewServer(service,
				apihttp.WithLogger(logger),
				apihttp.WithRateLimit(float64(cfg.HTTPRateLimitRPS), cfg.HTTPRateLimitBurst),
			).Handler()
			server := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				// Batch calls wait on rate-limited hosts.
				WriteTimeout: cfg.ResolveTimeout + 30*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.ListenAndServe()
			}()

			logger.Info("playresolver started", slog.String("addr", cfg.HTTPAddr))

			select {
			case <-rootCtx.Done():
				logger.Info("shutdown signal received")
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", slog.String("error", err.Error()))
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown error", slog.String("error", err.Error()))
			}
			logger.Info("playresolver stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (overrides HTTP_ADDR)")
	return cmd
}
