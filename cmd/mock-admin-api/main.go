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

	"margem/internal/mockapi"
	"margem/internal/platform/config"
	"margem/internal/platform/logger"
)

// main serves the in-memory admin API until SIGINT or SIGTERM.
func main() {
	cfg := config.MockFromEnv()
	log := logger.New(slog.LevelInfo)

	log.Info("initializing mock admin API",
		"addr", cfg.Addr,
		"token_ttl", cfg.TokenTTL.String(),
		"latency_ms", cfg.Latency.Milliseconds(),
	)

	server, err := mockapi.New(cfg, mockapi.WithLogger(log))
	if err != nil {
		log.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("starting http server",
		"addr", cfg.Addr,
		"base_path", mockapi.BasePath,
		"admin_email", mockapi.DefaultAdminEmail,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
