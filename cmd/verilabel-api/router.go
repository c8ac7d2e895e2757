// Package main provides the API router setup.
package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/verilabel-ai/verilabel/cmd/verilabel-api/handlers"
	"github.com/verilabel-ai/verilabel/cmd/verilabel-api/middleware"
	"github.com/verilabel-ai/verilabel/internal/cache"
	"github.com/verilabel-ai/verilabel/internal/config"
	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/ocr"
	"github.com/verilabel-ai/verilabel/internal/storage"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(cfg *config.Config, logger *observability.Logger, engine *ocr.Engine, store *storage.Store, cacheClient cache.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	// OCR requests can legitimately run for minutes on large PDFs; the
	// write timeout, not the read timeout, is the right bound here.
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":        "healthy",
			"service":       "verilabel",
			"active_engine": engine.ActiveEngine(),
			"providers":     engine.Health(),
		})
	})

	ocrHandler := handlers.NewOCRHandler(logger, engine, cfg.Server.MaxUploadBytes)
	verifyHandler := handlers.NewVerifyHandler(logger, engine, store, cacheClient, cfg.Cache.TTL, cfg.Server.MaxUploadBytes)
	labelsHandler := handlers.NewLabelsHandler(logger, store)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.Server.APIKey))

		r.Route("/ocr", func(r chi.Router) {
			r.Post("/image", ocrHandler.Image)
			r.Post("/pdf", ocrHandler.PDF)
		})

		r.Post("/verify", verifyHandler.Verify)
		r.Post("/compare", verifyHandler.Compare)
		r.Post("/validate", verifyHandler.Validate)

		r.Route("/labels", func(r chi.Router) {
			r.Post("/", labelsHandler.Create)
			r.Get("/", labelsHandler.List)
			r.Get("/{id}", labelsHandler.Get)
			r.Put("/{id}", labelsHandler.Update)
			r.Delete("/{id}", labelsHandler.Delete)
		})
	})

	return r
}
