// Package handlers provides HTTP handlers for the VeriLabel API.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/verilabel-ai/verilabel/internal/domain"
)

// imageExtensions is the upload allow-list for single-image recognition.
var imageExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"bmp":  true,
	"tiff": true,
	"tif":  true,
	"webp": true,
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]any{
		"success": false,
		"error":   message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps the engine's typed errors onto HTTP statuses: a
// misconfigured engine is 503, an engine-side failure is 502, an unreadable
// document is 422.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsType(err, domain.ErrorTypeNoEngineAvailable):
		writeError(w, http.StatusServiceUnavailable, "no OCR engine configured", err.Error())
	case domain.IsType(err, domain.ErrorTypeAllEnginesFailed):
		writeError(w, http.StatusBadGateway, "all OCR engines failed", err.Error())
	case domain.IsType(err, domain.ErrorTypeConversionFailed):
		writeError(w, http.StatusUnprocessableEntity, "document could not be parsed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "recognition failed", err.Error())
	}
}

// readUpload extracts the "file" part of a multipart upload, returning its
// bytes, the lowercased filename extension, and the original filename.
func readUpload(r *http.Request, maxBytes int64) ([]byte, string, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", fmt.Errorf("missing file upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", fmt.Errorf("read upload: %w", err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	return data, ext, header.Filename, nil
}
