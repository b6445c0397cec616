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

	"github.com/spf13/cobra"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/api"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/auth"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/config"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/tracing"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestration HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default: PORT or 7070)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting orchestrator",
		slog.String("version", version),
		slog.String("port", cfg.Port),
		slog.String("log_level", cfg.LogLevel),
	)

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "agentos-orchestrator",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.OTELSampleRate,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tracing, continuing without it", "error", err)
	}

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := &api.ServerOptions{}
	if cfg.OIDCEnabled {
		provider, err := auth.NewProvider(ctx, &auth.Config{
			Issuer:   cfg.OIDCIssuer,
			ClientID: cfg.OIDCClientID,
		})
		if err != nil {
			return err
		}
		opts.Auth = auth.NewMiddleware(provider, &auth.MiddlewareConfig{Enabled: true})
		logger.Info("OIDC authentication enabled", slog.String("issuer", cfg.OIDCIssuer))
	}
	if cfg.RateLimitRPS > 0 {
		opts.RateLimiter = auth.NewPerIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer opts.RateLimiter.Stop()
	}

	handlers := api.NewHandlers(rt.orch, rt.registry, cfg, logger)
	server := api.NewServer(handlers, opts)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}

	logger.Info("server stopped")
	return nil
}
