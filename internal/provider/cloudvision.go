// Package provider implements the OCR backend adapters. Every adapter speaks
// one wire protocol and exposes the same narrow surface: recognize a single
// image, return its text. Page splitting, caching, retry, and failover all
// live above this package.
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
	defaultVisionBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultVisionModel   = "gemini-2.0-flash"
	defaultVisionTimeout = 30 * time.Second

	// labelPrompt keeps the model from wrapping the transcription in
	// commentary; downstream comparison needs the raw text only.
	labelPrompt = "Extract all text from this pharmaceutical label exactly as it appears. " +
		"Return only the extracted text - no explanations, no formatting, no extra words."
)

// CloudVision recognizes text through a hosted multimodal vision model.
type CloudVision struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *observability.Logger
}

var _ domain.Provider = (*CloudVision)(nil)

// visionRequest is the generateContent payload.
type visionRequest struct {
	Contents []visionContent `json:"contents"`
}

type visionContent struct {
	Parts []visionPart `json:"parts"`
}

type visionPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type visionResponse struct {
	Candidates []struct {
		Content visionContent `json:"content"`
	} `json:"candidates"`
}

// NewCloudVision constructs the adapter. Without an API key the provider is
// unavailable; the engine skips it rather than failing startup.
func NewCloudVision(cfg config.CloudVisionConfig, logger *observability.Logger) (*CloudVision, error) {
	if cfg.APIKey == "" {
		return nil, domain.ProviderUnavailableError(domain.ProviderCloudVision, "no API key configured")
	}

	baseURL := strings.TrimSuffix(cfg.Endpoint, "/")
	if baseURL == "" {
		baseURL = defaultVisionBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultVisionModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultVisionTimeout
	}

	return &CloudVision{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithProvider(domain.ProviderCloudVision),
	}, nil
}

// Name identifies the adapter in engine selection and health reporting.
func (p *CloudVision) Name() string { return domain.ProviderCloudVision }

// Model returns the backing model identifier.
func (p *CloudVision) Model() string { return p.model }

// RecognizeImage sends one image to the vision model and returns the
// transcribed text.
func (p *CloudVision) RecognizeImage(ctx context.Context, image []byte) (string, error) {
	payload := visionRequest{
		Contents: []visionContent{{
			Parts: []visionPart{
				{Text: labelPrompt},
				{InlineData: &inlineData{
					MimeType: http.DetectContentType(image),
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", domain.RecognitionFailedError("failed to marshal vision request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", domain.RecognitionFailedError("failed to build vision request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", domain.RecognitionFailedError("vision request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", domain.RecognitionFailedError("vision API rejected the request",
			&retry.StatusError{Code: resp.StatusCode, Body: string(respBody)})
	}

	var parsed visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.RecognitionFailedError("failed to decode vision response",
			fmt.Errorf("%w: %v", retry.ErrMalformedResponse, err))
	}

	if len(parsed.Candidates) == 0 {
		return "", domain.RecognitionFailedError("vision response has no candidates", retry.ErrMalformedResponse)
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", domain.RecognitionFailedError("vision response has no text", retry.ErrMalformedResponse)
	}

	p.logger.Debug().Int("chars", len(text)).Msg("Vision recognition complete")
	return text, nil
}
