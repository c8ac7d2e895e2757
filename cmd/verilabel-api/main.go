// Package main provides the VeriLabel API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/verilabel-ai/verilabel/internal/cache"
	"github.com/verilabel-ai/verilabel/internal/config"
	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/ocr"
	"github.com/verilabel-ai/verilabel/internal/pdf"
	"github.com/verilabel-ai/verilabel/internal/storage"
	"github.com/verilabel-ai/verilabel/internal/tesseract"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "verilabel-api",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("cache", cfg.Cache.Driver).
		Msg("Starting VeriLabel API")

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	cacheClient, err := cache.NewClient(cfg.Cache)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open cache")
	}
	defer cacheClient.Close()

	var localOCR domain.LocalOCR
	if cfg.Providers.LocalModel.EnableTesseract {
		localOCR = tesseract.NewEngine(cfg.Providers.LocalModel.TesseractLanguages...)
	}

	engine := ocr.NewEngine(cfg, pdf.NewRasterizer(), localOCR, logger)

	router := NewRouter(cfg, logger, engine, store, cacheClient)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
