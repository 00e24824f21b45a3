package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/config"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/jobs"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/middleware"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/redis"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/server"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/service"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/telemetry"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/ws"
)

func newServeCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and live connection server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(commandContext(cmd), *cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	shutdownTracing, err := telemetry.Init(ctx, config.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	st, err := openStore(ctx, cfg, cfg.AutoMigrate)
	if err != nil {
		return err
	}
	defer st.Close()

	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
		limiter = middleware.NewRedisRateLimiter(redisClient.Client)
	} else {
		limiter = middleware.NewRateLimiter()
	}

	sessionService := service.NewSessionService(st.sessions, st.items, service.NewRandomCodeGenerator(), cfg.CodeMaxAttempts)
	hub := ws.NewHub(sessionService, ws.DefaultOptions())
	sessionService.SetNotifier(hub)

	router := server.NewRouter(server.RouterOptions{
		Config:       cfg,
		Sessions:     sessionService,
		Hub:          hub,
		Store:        st.pinger,
		Limiter:      limiter,
		IsProduction: isProduction,
	})

	if cfg.SweepEnabled {
		cleanupJob := jobs.NewCleanupJob(st.sessions, cfg.SweepGrace(), config.SweepJobInterval)
		cleanupJob.Start()
		defer cleanupJob.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-serverErr:
		hub.Close()
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutting down server")

	// Hijacked connections are not tracked by Shutdown.
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}
