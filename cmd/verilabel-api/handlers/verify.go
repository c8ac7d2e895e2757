package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/verilabel-ai/verilabel/internal/cache"
	"github.com/verilabel-ai/verilabel/internal/compare"
	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/ocr"
	"github.com/verilabel-ai/verilabel/internal/storage"
	"github.com/verilabel-ai/verilabel/internal/validate"
)

// VerifyHandler serves the end-to-end verification flow plus the standalone
// comparison and validation endpoints.
type VerifyHandler struct {
	logger    *observability.Logger
	engine    *ocr.Engine
	store     *storage.Store
	cache     cache.Client
	validator *validate.Validator
	cacheTTL  time.Duration
	maxUpload int64
}

// NewVerifyHandler creates a verify handler.
func NewVerifyHandler(logger *observability.Logger, engine *ocr.Engine, store *storage.Store, cacheClient cache.Client, cacheTTL time.Duration, maxUpload int64) *VerifyHandler {
	return &VerifyHandler{
		logger:    logger,
		engine:    engine,
		store:     store,
		cache:     cacheClient,
		validator: validate.NewValidator(),
		cacheTTL:  cacheTTL,
		maxUpload: maxUpload,
	}
}

// VerifyResponseDTO bundles the extraction, comparison, and validation
// blocks for one verification.
type VerifyResponseDTO struct {
	ControlID   string                    `json:"control_id"`
	ControlName string                    `json:"control_name"`
	Extraction  *domain.RecognitionResult `json:"extraction"`
	Comparison  compare.Result            `json:"comparison"`
	Validation  validate.Result           `json:"validation"`
	FromCache   bool                      `json:"from_cache"`
}

// Verify handles POST /verify: OCR the upload, compare against the stored
// verified control, and validate the structure.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	data, ext, filename, err := readUpload(r, h.maxUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}

	controlID, err := uuid.Parse(r.FormValue("control_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid control_id", err.Error())
		return
	}

	control, err := h.store.Get(r.Context(), controlID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "verified control not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage error", err.Error())
		return
	}

	result, fromCache, err := h.recognize(r, data, ext)
	if err != nil {
		h.logger.Error().Str("filename", filename).Err(err).Msg("Verification recognition failed")
		writeEngineError(w, err)
		return
	}

	comparison := compare.Texts(control.VerifiedText, result.ExtractedText)
	validation := h.validator.Text(result.ExtractedText)

	h.logger.Info().
		Str("control_id", controlID.String()).
		Str("control_name", control.ControlName).
		Str("comparison", comparison.Status).
		Int("authenticity_score", validation.AuthenticityScore).
		Bool("from_cache", fromCache).
		Msg("Verification complete")

	writeJSON(w, http.StatusOK, VerifyResponseDTO{
		ControlID:   control.ID.String(),
		ControlName: control.ControlName,
		Extraction:  result,
		Comparison:  comparison,
		Validation:  validation,
		FromCache:   fromCache,
	})
}

// recognize runs the engine for an upload, consulting the document cache
// keyed by the digest of the exact uploaded bytes first.
func (h *VerifyHandler) recognize(r *http.Request, data []byte, ext string) (*domain.RecognitionResult, bool, error) {
	sum := sha256.Sum256(data)
	key := "doc:" + hex.EncodeToString(sum[:])

	if cached, err := h.cache.Get(r.Context(), key); err == nil {
		var result domain.RecognitionResult
		if err := json.Unmarshal(cached, &result); err == nil {
			return &result, true, nil
		}
	}

	var result *domain.RecognitionResult
	var err error
	if ext == "pdf" {
		result, err = h.engine.ProcessPDF(r.Context(), data)
	} else if imageExtensions[ext] {
		result, err = h.engine.ProcessImage(r.Context(), data)
	} else {
		return nil, false, domain.ValidationError("unsupported file type: "+ext, nil)
	}
	if err != nil {
		return nil, false, err
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := h.cache.Set(r.Context(), key, encoded, h.cacheTTL); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to cache recognition result")
		}
	}

	return result, false, nil
}

// CompareRequestDTO is the body for POST /compare.
type CompareRequestDTO struct {
	VerifiedText   string `json:"verified_text"`
	ProductionText string `json:"production_text"`
}

// Compare handles POST /compare.
func (h *VerifyHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, compare.Texts(req.VerifiedText, req.ProductionText))
}

// ValidateRequestDTO is the body for POST /validate.
type ValidateRequestDTO struct {
	Text string `json:"text"`
}

// Validate handles POST /validate.
func (h *VerifyHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.validator.Text(req.Text))
}
