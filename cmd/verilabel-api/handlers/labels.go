package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/storage"
)

// LabelsHandler serves verified-label CRUD.
type LabelsHandler struct {
	logger *observability.Logger
	store  *storage.Store
}

// NewLabelsHandler creates a labels handler.
func NewLabelsHandler(logger *observability.Logger, store *storage.Store) *LabelsHandler {
	return &LabelsHandler{logger: logger, store: store}
}

// LabelRequestDTO is the body for creating or updating a verified label.
type LabelRequestDTO struct {
	ControlName  string `json:"control_name"`
	VerifiedText string `json:"verified_text"`
	Status       string `json:"status"`
}

func (dto *LabelRequestDTO) normalize() error {
	dto.ControlName = strings.TrimSpace(dto.ControlName)
	dto.VerifiedText = strings.TrimSpace(dto.VerifiedText)
	dto.Status = strings.ToLower(strings.TrimSpace(dto.Status))

	if dto.ControlName == "" {
		return errors.New("control_name is required")
	}
	if dto.VerifiedText == "" {
		return errors.New("verified_text is required")
	}
	if dto.Status != "" && dto.Status != storage.StatusVerified && dto.Status != storage.StatusRejected {
		return errors.New("status must be 'verified' or 'rejected'")
	}
	return nil
}

// Create handles POST /labels.
func (h *LabelsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req LabelRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	label := &storage.VerifiedLabel{
		ControlName:  req.ControlName,
		VerifiedText: req.VerifiedText,
		Status:       req.Status,
	}
	if err := h.store.Create(r.Context(), label); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create label", err.Error())
		return
	}

	h.logger.Info().
		Str("label_id", label.ID.String()).
		Str("control_name", label.ControlName).
		Msg("Verified label created")

	writeJSON(w, http.StatusCreated, label)
}

// List handles GET /labels.
func (h *LabelsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	labels, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list labels", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, labels)
}

// Get handles GET /labels/{id}.
func (h *LabelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid label id", err.Error())
		return
	}

	label, err := h.store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "label not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load label", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, label)
}

// Update handles PUT /labels/{id}.
func (h *LabelsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid label id", err.Error())
		return
	}

	var req LabelRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	label, err := h.store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "label not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load label", err.Error())
		return
	}

	label.ControlName = req.ControlName
	label.VerifiedText = req.VerifiedText
	if req.Status != "" {
		label.Status = req.Status
	}

	if err := h.store.Update(r.Context(), label); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update label", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, label)
}

// Delete handles DELETE /labels/{id}.
func (h *LabelsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid label id", err.Error())
		return
	}

	err = h.store.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "label not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete label", err.Error())
		return
	}

	h.logger.Info().Str("label_id", id.String()).Msg("Verified label deleted")
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id.String()})
}
