package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/verilabel-ai/verilabel/internal/config"
	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/retry"
)

const (
	defaultLocalEndpoint = "http://127.0.0.1:11434"
	defaultLocalModel    = "glm-ocr:latest"
	defaultLocalTimeout  = 120 * time.Second

	localPrompt = "Extract all text from this image. Return only the extracted text."
)

// LocalModel recognizes text through a locally hosted vision model server.
// When the server is unreachable it falls back to the injected deterministic
// OCR before reporting failure, so an offline box still produces text.
type LocalModel struct {
	endpoint string
	model    string
	client   *http.Client
	fallback domain.LocalOCR
	logger   *observability.Logger
}

var _ domain.Provider = (*LocalModel)(nil)

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewLocalModel constructs the adapter. Every field has a working default,
// so the local model is always constructible; fallback may be nil when
// deterministic OCR is disabled.
func NewLocalModel(cfg config.LocalModelConfig, fallback domain.LocalOCR, logger *observability.Logger) *LocalModel {
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultLocalEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultLocalModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}

	return &LocalModel{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
		logger:   logger.WithProvider(domain.ProviderLocalModel),
	}
}

// Name identifies the adapter in engine selection and health reporting.
func (p *LocalModel) Name() string { return domain.ProviderLocalModel }

// Model returns the backing model identifier.
func (p *LocalModel) Model() string { return p.model }

// RecognizeImage sends one image to the local model server and returns the
// generated text. Transport failures try the deterministic OCR before the
// error propagates.
func (p *LocalModel) RecognizeImage(ctx context.Context, image []byte) (string, error) {
	payload := generateRequest{
		Model:  p.model,
		Prompt: localPrompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Stream: false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", domain.RecognitionFailedError("failed to marshal generate request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", domain.RecognitionFailedError("failed to build generate request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if text, ok := p.recognizeOffline(image, err); ok {
			return text, nil
		}
		return "", domain.RecognitionFailedError("local model request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", domain.RecognitionFailedError("local model rejected the request",
			&retry.StatusError{Code: resp.StatusCode, Body: string(respBody)})
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.RecognitionFailedError("failed to decode generate response",
			fmt.Errorf("%w: %v", retry.ErrMalformedResponse, err))
	}

	text := strings.TrimSpace(parsed.Response)
	if text == "" {
		return "", domain.RecognitionFailedError("local model returned empty text", retry.ErrMalformedResponse)
	}

	p.logger.Debug().Int("chars", len(text)).Msg("Local model recognition complete")
	return text, nil
}

// recognizeOffline runs the deterministic OCR when the model server cannot be
// reached. It only reports success for non-empty text; anything else lets the
// original transport error propagate.
func (p *LocalModel) recognizeOffline(image []byte, cause error) (string, bool) {
	if p.fallback == nil {
		return "", false
	}

	p.logger.Warn().Err(cause).Msg("Local model unreachable, trying deterministic OCR")

	text, err := p.fallback.Recognize(image)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Deterministic OCR failed")
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	p.logger.Info().Int("chars", len(text)).Msg("Deterministic OCR recovered the page")
	return text, true
}
