// Package tesseract adapts the Tesseract OCR library as the deterministic
// offline recognizer behind the local model provider.
package tesseract

import (
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/verilabel-ai/verilabel/internal/domain"
)

// Engine runs Tesseract over in-memory images. A fresh client is created per
// call; gosseract clients are not safe for concurrent reuse and page workers
// may recognize in parallel.
type Engine struct {
	languages []string
}

var _ domain.LocalOCR = (*Engine)(nil)

// NewEngine creates a recognizer for the given language packs, defaulting to
// English.
func NewEngine(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{languages: languages}
}

// Recognize extracts text from one image.
func (e *Engine) Recognize(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", domain.RecognitionFailedError("failed to set OCR languages", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", domain.RecognitionFailedError("failed to load image into OCR", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", domain.RecognitionFailedError("deterministic OCR failed", err)
	}
	return strings.TrimSpace(text), nil
}
