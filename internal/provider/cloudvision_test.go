package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/verilabel-ai/verilabel/internal/config"
	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/retry"
)

func TestNewCloudVision_RequiresAPIKey(t *testing.T) {
	_, err := NewCloudVision(config.CloudVisionConfig{}, quietLogger())
	if !domain.IsType(err, domain.ErrorTypeProviderUnavailable) {
		t.Fatalf("Expected ProviderUnavailable, got %v", err)
	}
}

func TestCloudVision_RecognizeImage(t *testing.T) {
	image := []byte("fake png bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Error("API key missing from query")
		}

		var req visionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Fatalf("Expected one content with prompt and image parts, got %+v", req)
		}
		if !strings.Contains(req.Contents[0].Parts[0].Text, "pharmaceutical label") {
			t.Error("Prompt part missing")
		}
		data := req.Contents[0].Parts[1].InlineData
		if data == nil || data.Data != base64.StdEncoding.EncodeToString(image) {
			t.Error("Inline image data does not match input")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]string{{"text": "BATCH AB-2024-123456"}},
				},
			}},
		})
	}))
	defer server.Close()

	p, err := NewCloudVision(config.CloudVisionConfig{APIKey: "secret", Endpoint: server.URL}, quietLogger())
	if err != nil {
		t.Fatalf("Constructor failed: %v", err)
	}

	text, err := p.RecognizeImage(context.Background(), image)
	if err != nil {
		t.Fatalf("RecognizeImage failed: %v", err)
	}
	if text != "BATCH AB-2024-123456" {
		t.Errorf("Unexpected text %q", text)
	}
}

func TestCloudVision_StatusErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p, _ := NewCloudVision(config.CloudVisionConfig{APIKey: "secret", Endpoint: server.URL}, quietLogger())

	_, err := p.RecognizeImage(context.Background(), []byte("img"))
	if !domain.IsType(err, domain.ErrorTypeRecognitionFailed) {
		t.Fatalf("Expected RecognitionFailed, got %v", err)
	}
	if retry.Classify(err) != retry.ClassStatus {
		t.Errorf("Expected status classification, got %q", retry.Classify(err))
	}
}

func TestCloudVision_EmptyCandidatesIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	p, _ := NewCloudVision(config.CloudVisionConfig{APIKey: "secret", Endpoint: server.URL}, quietLogger())

	_, err := p.RecognizeImage(context.Background(), []byte("img"))
	if retry.Classify(err) != retry.ClassMalformed {
		t.Errorf("Expected malformed classification, got %q (%v)", retry.Classify(err), err)
	}
}
