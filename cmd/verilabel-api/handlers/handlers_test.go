package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verilabel-ai/verilabel/internal/cache"
	"github.com/verilabel-ai/verilabel/internal/config"
	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/ocr"
	"github.com/verilabel-ai/verilabel/internal/storage"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:       "error",
		Output:      io.Discard,
		ServiceName: "test",
	})
}

type stubProvider struct {
	text string
}

func (p *stubProvider) Name() string  { return "stub" }
func (p *stubProvider) Model() string { return "stub-model" }

func (p *stubProvider) RecognizeImage(ctx context.Context, image []byte) (string, error) {
	return p.text, nil
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(config.StorageConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func multipartUpload(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for key, val := range fields {
		require.NoError(t, mw.WriteField(key, val))
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func decodeEnvelope(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope
}

func TestCompareEndpoint(t *testing.T) {
	h := NewVerifyHandler(quietLogger(), nil, nil, cache.NewMemoryClient(8), time.Minute, 1<<20)

	body := strings.NewReader(`{"verified_text":"Paracetamol 500 mg","production_text":"Paracetamol 500 mg"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/compare", body)
	rec := httptest.NewRecorder()

	h.Compare(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec.Body)
	require.Equal(t, true, envelope["success"])

	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(100), data["match_percentage"])
	assert.Equal(t, "PASS", data["status"])
}

func TestValidateEndpoint(t *testing.T) {
	h := NewVerifyHandler(quietLogger(), nil, nil, cache.NewMemoryClient(8), time.Minute, 1<<20)

	body := strings.NewReader(`{"text":"Paracetamol 500 mg Batch AB123456 Exp 05/2026 Manufactured by Acme"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", body)
	rec := httptest.NewRecorder()

	h.Validate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec.Body)["data"].(map[string]any)
	assert.Equal(t, float64(100), data["authenticity_score"])
	assert.Equal(t, true, data["is_structurally_authentic"])
}

func TestValidateEndpoint_BadBody(t *testing.T) {
	h := NewVerifyHandler(quietLogger(), nil, nil, cache.NewMemoryClient(8), time.Minute, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	h.Validate(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec.Body)
	assert.Equal(t, false, envelope["success"])
	assert.NotEmpty(t, envelope["error"])
}

func TestOCRImage_RejectsUnknownExtension(t *testing.T) {
	engine := ocr.NewEngineWithProviders(&stubProvider{text: "text"}, nil, nil, ocr.Options{}, quietLogger())
	h := NewOCRHandler(quietLogger(), engine, 1<<20)

	buf, contentType := multipartUpload(t, "label.exe", []byte("payload"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/image", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Image(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOCRImage_Success(t *testing.T) {
	engine := ocr.NewEngineWithProviders(&stubProvider{text: "BATCH AB-2024-123456"}, nil, nil, ocr.Options{}, quietLogger())
	h := NewOCRHandler(quietLogger(), engine, 1<<20)

	buf, contentType := multipartUpload(t, "label.png", []byte("fake image bytes"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/image", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Image(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec.Body)["data"].(map[string]any)
	assert.Equal(t, "BATCH AB-2024-123456", data["extracted_text"])
	assert.Equal(t, "primary", data["engine_used"])
}

func TestVerifyEndpoint(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	control := &storage.VerifiedLabel{
		ControlName:  "paracetamol-500",
		VerifiedText: "Paracetamol 500 mg Batch AB123456 Exp 05/2026 Manufactured by Acme",
	}
	require.NoError(t, store.Create(ctx, control))

	engine := ocr.NewEngineWithProviders(
		&stubProvider{text: control.VerifiedText}, nil, nil, ocr.Options{}, quietLogger())
	h := NewVerifyHandler(quietLogger(), engine, store, cache.NewMemoryClient(8), time.Minute, 1<<20)

	buf, contentType := multipartUpload(t, "label.png", []byte("fake image bytes"),
		map[string]string{"control_id": control.ID.String()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec.Body)["data"].(map[string]any)

	comparison := data["comparison"].(map[string]any)
	assert.Equal(t, "PASS", comparison["status"])

	validation := data["validation"].(map[string]any)
	assert.Equal(t, true, validation["is_structurally_authentic"])

	assert.Equal(t, false, data["from_cache"])

	// Same bytes again: served from the document cache.
	buf2, contentType2 := multipartUpload(t, "label.png", []byte("fake image bytes"),
		map[string]string{"control_id": control.ID.String()})
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/verify", buf2)
	req2.Header.Set("Content-Type", contentType2)
	rec2 := httptest.NewRecorder()

	h.Verify(rec2, req2)

	require.Equal(t, http.StatusOK, rec2.Code)
	data2 := decodeEnvelope(t, rec2.Body)["data"].(map[string]any)
	assert.Equal(t, true, data2["from_cache"])
}

func TestVerifyEndpoint_UnknownControl(t *testing.T) {
	store := openTestStore(t)
	engine := ocr.NewEngineWithProviders(&stubProvider{text: "text"}, nil, nil, ocr.Options{}, quietLogger())
	h := NewVerifyHandler(quietLogger(), engine, store, cache.NewMemoryClient(8), time.Minute, 1<<20)

	buf, contentType := multipartUpload(t, "label.png", []byte("bytes"),
		map[string]string{"control_id": "3b9f6f3e-4f77-4f3b-9a34-111111111111"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLabelsCRUD(t *testing.T) {
	store := openTestStore(t)
	h := NewLabelsHandler(quietLogger(), store)

	// Create
	body := strings.NewReader(`{"control_name":"amoxicillin-250","verified_text":"Amoxicillin 250 mg"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/labels", body)
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeEnvelope(t, rec.Body)["data"].(map[string]any)
	id := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "verified", created["status"])

	// List
	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/labels", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeEnvelope(t, rec.Body)["data"].([]any)
	assert.Len(t, listed, 1)

	// Create with a bad status is rejected
	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/labels",
		strings.NewReader(`{"control_name":"x","verified_text":"y","status":"pending"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
