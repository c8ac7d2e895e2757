package handlers

import (
	"fmt"
	"net/http"

	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/ocr"
)

// OCRHandler serves the raw recognition endpoints.
type OCRHandler struct {
	logger    *observability.Logger
	engine    *ocr.Engine
	maxUpload int64
}

// NewOCRHandler creates an OCR handler.
func NewOCRHandler(logger *observability.Logger, engine *ocr.Engine, maxUpload int64) *OCRHandler {
	return &OCRHandler{
		logger:    logger,
		engine:    engine,
		maxUpload: maxUpload,
	}
}

// Image handles POST /ocr/image.
func (h *OCRHandler) Image(w http.ResponseWriter, r *http.Request) {
	data, ext, filename, err := readUpload(r, h.maxUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}
	if !imageExtensions[ext] {
		writeError(w, http.StatusBadRequest, "unsupported image type",
			fmt.Sprintf("extension %q is not an accepted image format", ext))
		return
	}

	h.logger.Info().
		Str("filename", filename).
		Int("bytes", len(data)).
		Msg("Processing image upload")

	result, err := h.engine.ProcessImage(r.Context(), data)
	if err != nil {
		h.logger.Error().Str("filename", filename).Err(err).Msg("Image recognition failed")
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PDF handles POST /ocr/pdf.
func (h *OCRHandler) PDF(w http.ResponseWriter, r *http.Request) {
	data, ext, filename, err := readUpload(r, h.maxUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}
	if ext != "pdf" {
		writeError(w, http.StatusBadRequest, "unsupported document type", "only PDF documents are accepted")
		return
	}

	h.logger.Info().
		Str("filename", filename).
		Int("bytes", len(data)).
		Msg("Processing PDF upload")

	result, err := h.engine.ProcessPDF(r.Context(), data)
	if err != nil {
		h.logger.Error().Str("filename", filename).Err(err).Msg("PDF recognition failed")
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
