package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/verilabel-ai/verilabel/internal/config"
	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/retry"
)

const (
	defaultOCREndpoint = "https://api.ocr.space/parse/image"
	defaultOCRLanguage = "eng"
	defaultOCRTimeout  = 60 * time.Second
)

// CloudOCR recognizes text through a hosted OCR service with a multipart
// upload API.
type CloudOCR struct {
	apiKey   string
	endpoint string
	language string
	client   *http.Client
	logger   *observability.Logger
}

var _ domain.Provider = (*CloudOCR)(nil)

type ocrParseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool         `json:"IsErroredOnProcessing"`
	ErrorMessage          errorMessage `json:"ErrorMessage"`
}

// errorMessage tolerates the service returning either a single string or a
// list of strings in the ErrorMessage field.
type errorMessage []string

func (m *errorMessage) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = []string{single}
		return nil
	}
	return fmt.Errorf("unexpected ErrorMessage payload: %s", data)
}

func (m errorMessage) String() string {
	return strings.Join(m, "; ")
}

// NewCloudOCR constructs the adapter. Without an API key the provider is
// unavailable; the engine skips it rather than failing startup.
func NewCloudOCR(cfg config.CloudOCRConfig, logger *observability.Logger) (*CloudOCR, error) {
	if cfg.APIKey == "" {
		return nil, domain.ProviderUnavailableError(domain.ProviderCloudOCR, "no API key configured")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOCREndpoint
	}
	language := cfg.Language
	if language == "" {
		language = defaultOCRLanguage
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOCRTimeout
	}

	return &CloudOCR{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		language: language,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.WithProvider(domain.ProviderCloudOCR),
	}, nil
}

// Name identifies the adapter in engine selection and health reporting.
func (p *CloudOCR) Name() string { return domain.ProviderCloudOCR }

// Model returns the backing engine identifier; the hosted service does not
// expose a model name, so the language profile stands in.
func (p *CloudOCR) Model() string { return "ocr-" + p.language }

// RecognizeImage uploads one image and joins the parsed text of every result
// region in order.
func (p *CloudOCR) RecognizeImage(ctx context.Context, image []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"apikey":            p.apiKey,
		"language":          p.language,
		"isOverlayRequired": "false",
	}
	for key, val := range fields {
		if err := writer.WriteField(key, val); err != nil {
			return "", domain.RecognitionFailedError("failed to build upload form", err)
		}
	}

	part, err := writer.CreateFormFile("file", "label.png")
	if err != nil {
		return "", domain.RecognitionFailedError("failed to build upload form", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", domain.RecognitionFailedError("failed to write upload payload", err)
	}
	if err := writer.Close(); err != nil {
		return "", domain.RecognitionFailedError("failed to finalize upload form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return "", domain.RecognitionFailedError("failed to build OCR request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", domain.RecognitionFailedError("OCR request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", domain.RecognitionFailedError("OCR API rejected the request",
			&retry.StatusError{Code: resp.StatusCode, Body: string(respBody)})
	}

	var parsed ocrParseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.RecognitionFailedError("failed to decode OCR response",
			fmt.Errorf("%w: %v", retry.ErrMalformedResponse, err))
	}

	if parsed.IsErroredOnProcessing {
		return "", domain.RecognitionFailedError(
			fmt.Sprintf("OCR processing failed: %s", parsed.ErrorMessage),
			retry.ErrMalformedResponse)
	}

	texts := make([]string, 0, len(parsed.ParsedResults))
	for _, result := range parsed.ParsedResults {
		texts = append(texts, result.ParsedText)
	}
	text := strings.TrimSpace(strings.Join(texts, "\n"))
	if text == "" {
		return "", domain.RecognitionFailedError("OCR response has no text", retry.ErrMalformedResponse)
	}

	p.logger.Debug().Int("regions", len(parsed.ParsedResults)).Int("chars", len(text)).Msg("OCR recognition complete")
	return text, nil
}
