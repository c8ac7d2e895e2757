package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/verilabel-ai/verilabel/internal/config"
	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/retry"
)

type fakeLocalOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeLocalOCR) Recognize(image []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestLocalModel_RecognizeImage(t *testing.T) {
	image := []byte("fake png bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Model != "glm-ocr:latest" {
			t.Errorf("Unexpected model %q", req.Model)
		}
		if req.Stream {
			t.Error("Stream must be false")
		}
		if len(req.Images) != 1 || req.Images[0] != base64.StdEncoding.EncodeToString(image) {
			t.Error("Image payload does not match input")
		}

		json.NewEncoder(w).Encode(generateResponse{Response: "  LOT 42A\nEXP 2027-03  ", Done: true})
	}))
	defer server.Close()

	p := NewLocalModel(config.LocalModelConfig{Endpoint: server.URL}, nil, quietLogger())

	text, err := p.RecognizeImage(context.Background(), image)
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
	if text != "LOT 42A\nEXP 2027-03" {
		t.Errorf("Expected trimmed text, got %q", text)
	}
}

func TestLocalModel_TrailingSlashStripped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer server.Close()

	p := NewLocalModel(config.LocalModelConfig{Endpoint: server.URL + "/"}, nil, quietLogger())
	if _, err := p.RecognizeImage(context.Background(), []byte("img")); err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
}

func TestLocalModel_EmptyResponseIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "   "})
	}))
	defer server.Close()

	p := NewLocalModel(config.LocalModelConfig{Endpoint: server.URL}, nil, quietLogger())

	_, err := p.RecognizeImage(context.Background(), []byte("img"))
	if retry.Classify(err) != retry.ClassMalformed {
		t.Errorf("Expected malformed classification, got %q (%v)", retry.Classify(err), err)
	}
}

func TestLocalModel_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	p := NewLocalModel(config.LocalModelConfig{Endpoint: server.URL}, nil, quietLogger())

	_, err := p.RecognizeImage(context.Background(), []byte("img"))
	if retry.Classify(err) != retry.ClassStatus {
		t.Errorf("Expected status classification, got %q (%v)", retry.Classify(err), err)
	}
}

func TestLocalModel_OfflineFallback(t *testing.T) {
	// Closing the server up front guarantees a connection failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	t.Run("deterministic OCR recovers", func(t *testing.T) {
		fallback := &fakeLocalOCR{text: "PARACETAMOL 500mg"}
		p := NewLocalModel(config.LocalModelConfig{Endpoint: endpoint}, fallback, quietLogger())

		text, err := p.RecognizeImage(context.Background(), []byte("img"))
		if err != nil {
			t.Fatalf("Expected fallback to recover, got %v", err)
		}
		if text != "PARACETAMOL 500mg" {
			t.Errorf("Unexpected text %q", text)
		}
		if fallback.calls != 1 {
			t.Errorf("Expected one fallback call, got %d", fallback.calls)
		}
	})

	t.Run("no fallback configured", func(t *testing.T) {
		p := NewLocalModel(config.LocalModelConfig{Endpoint: endpoint}, nil, quietLogger())

		_, err := p.RecognizeImage(context.Background(), []byte("img"))
		if !domain.IsType(err, domain.ErrorTypeRecognitionFailed) {
			t.Fatalf("Expected RecognitionFailed, got %v", err)
		}
		if retry.Classify(err) != retry.ClassConnection {
			t.Errorf("Expected connection classification, got %q", retry.Classify(err))
		}
	})

	t.Run("fallback returns empty text", func(t *testing.T) {
		fallback := &fakeLocalOCR{text: "   "}
		p := NewLocalModel(config.LocalModelConfig{Endpoint: endpoint}, fallback, quietLogger())

		_, err := p.RecognizeImage(context.Background(), []byte("img"))
		if err == nil {
			t.Fatal("Empty fallback text must not mask the transport error")
		}
	})
}
