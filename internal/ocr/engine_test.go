package ocr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/retry"
)

type fakeProvider struct {
	name  string
	model string

	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, image []byte) (string, error)
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Model() string { return p.model }

func (p *fakeProvider) RecognizeImage(ctx context.Context, image []byte) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.fn(ctx, image)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeRasterizer struct {
	pages []domain.PageImage
	err   error
}

func (r *fakeRasterizer) Rasterize(ctx context.Context, pdf []byte, dpi int) ([]domain.PageImage, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.pages, nil
}

func fastOptions() Options {
	return Options{
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
		Workers:         4,
		PageGrace:       30 * time.Millisecond,
		ProviderTimeout: 20 * time.Millisecond,
	}
}

func TestEngine_FailoverToFallback(t *testing.T) {
	// Primary answers HTTP 500 on every attempt; the fallback serves the
	// request and the result is tagged with the fallback role.
	primary := &fakeProvider{
		name:  "cloud-vision",
		model: "gemini-2.0-flash",
		fn: func(ctx context.Context, image []byte) (string, error) {
			return "", &retry.StatusError{Code: 500, Body: "internal error"}
		},
	}
	fallback := &fakeProvider{
		name:  "local-model",
		model: "glm-ocr:latest",
		fn: func(ctx context.Context, image []byte) (string, error) {
			return "BATCH AB-2024-123456", nil
		},
	}

	e := NewEngineWithProviders(primary, fallback, nil, fastOptions(), quietLogger())
	require.Equal(t, domain.EngineStateReady, e.State())

	result, err := e.ProcessImage(context.Background(), []byte("label"))
	require.NoError(t, err)

	assert.Equal(t, "BATCH AB-2024-123456", result.ExtractedText)
	assert.Equal(t, domain.EngineRoleFallback, result.EngineUsed)
	assert.Equal(t, "glm-ocr:latest", result.ModelName)
	assert.Equal(t, 3, primary.callCount(), "primary should be retried to exhaustion before failover")
	assert.Equal(t, 1, fallback.callCount())
}

func TestEngine_AllEnginesFailed(t *testing.T) {
	primary := &fakeProvider{
		name:  "cloud-vision",
		model: "gemini-2.0-flash",
		fn: func(ctx context.Context, image []byte) (string, error) {
			return "", errors.New("quota exceeded")
		},
	}
	fallback := &fakeProvider{
		name:  "local-model",
		model: "glm-ocr:latest",
		fn: func(ctx context.Context, image []byte) (string, error) {
			return "", errors.New("connection refused")
		},
	}

	opts := fastOptions()
	opts.MaxAttempts = 1
	e := NewEngineWithProviders(primary, fallback, nil, opts, quietLogger())

	_, err := e.ProcessImage(context.Background(), []byte("label"))
	require.Error(t, err)

	assert.True(t, domain.IsType(err, domain.ErrorTypeAllEnginesFailed))
	assert.Contains(t, err.Error(), "cloud-vision")
	assert.Contains(t, err.Error(), "local-model")
}

func TestEngine_Unavailable(t *testing.T) {
	e := NewEngineWithProviders(nil, nil, nil, fastOptions(), quietLogger())

	require.Equal(t, domain.EngineStateUnavailable, e.State())
	assert.Equal(t, "none", e.ActiveEngine())

	_, err := e.ProcessImage(context.Background(), []byte("label"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeNoEngineAvailable))

	_, err = e.ProcessPDF(context.Background(), []byte("%PDF"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeNoEngineAvailable))
}

func TestEngine_Degraded(t *testing.T) {
	fallback := &fakeProvider{
		name:  "local-model",
		model: "glm-ocr:latest",
		fn: func(ctx context.Context, image []byte) (string, error) {
			return "text", nil
		},
	}

	e := NewEngineWithProviders(nil, fallback, nil, fastOptions(), quietLogger())

	require.Equal(t, domain.EngineStateDegraded, e.State())
	assert.Equal(t, "local-model", e.ActiveEngine())

	result, err := e.ProcessImage(context.Background(), []byte("label"))
	require.NoError(t, err)
	assert.Equal(t, domain.EngineRoleFallback, result.EngineUsed)
}

func TestEngine_PDFPartialFailure(t *testing.T) {
	// Page 2 never answers within its deadline; the document still succeeds
	// with an inline marker in page order.
	primary := &fakeProvider{
		name:  "cloud-vision",
		model: "gemini-2.0-flash",
		fn: func(ctx context.Context, image []byte) (string, error) {
			if string(image) == "page-2" {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "text of " + string(image), nil
		},
	}

	opts := fastOptions()
	opts.MaxAttempts = 1
	rast := &fakeRasterizer{pages: makePages(3)}
	e := NewEngineWithProviders(primary, nil, rast, opts, quietLogger())

	result, err := e.ProcessPDF(context.Background(), []byte("%PDF"))
	require.NoError(t, err)

	want := "text of page-1\n--- Page Break ---\n[Page 2: timeout]\n--- Page Break ---\ntext of page-3"
	assert.Equal(t, want, result.ExtractedText)
	assert.Equal(t, 3, result.PagesProcessed)
	assert.Equal(t, domain.EngineRolePrimary, result.EngineUsed)
}

func TestEngine_PDFAllPagesFailedTriggersFailover(t *testing.T) {
	primary := &fakeProvider{
		name:  "cloud-vision",
		model: "gemini-2.0-flash",
		fn: func(ctx context.Context, image []byte) (string, error) {
			return "", errors.New("service down")
		},
	}
	fallback := &fakeProvider{
		name:  "local-model",
		model: "glm-ocr:latest",
		fn: func(ctx context.Context, image []byte) (string, error) {
			return "recovered " + string(image), nil
		},
	}

	opts := fastOptions()
	opts.MaxAttempts = 1
	rast := &fakeRasterizer{pages: makePages(2)}
	e := NewEngineWithProviders(primary, fallback, rast, opts, quietLogger())

	result, err := e.ProcessPDF(context.Background(), []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, domain.EngineRoleFallback, result.EngineUsed)
	assert.Equal(t, "recovered page-1\n--- Page Break ---\nrecovered page-2", result.ExtractedText)
	assert.Equal(t, 2, result.PagesProcessed)
}

func TestEngine_ConversionFailureIsFatal(t *testing.T) {
	fallback := &fakeProvider{
		name:  "local-model",
		model: "glm-ocr:latest",
		fn: func(ctx context.Context, image []byte) (string, error) {
			return "never reached", nil
		},
	}

	rast := &fakeRasterizer{err: domain.ConversionFailedError("corrupt document", nil)}
	e := NewEngineWithProviders(nil, fallback, rast, fastOptions(), quietLogger())

	_, err := e.ProcessPDF(context.Background(), []byte("not a pdf"))
	require.Error(t, err)

	assert.True(t, domain.IsType(err, domain.ErrorTypeConversionFailed))
	assert.Equal(t, 0, fallback.callCount(), "rasterization failures must not reach providers")
}

func TestEngine_CacheSkipsRepeatRecognition(t *testing.T) {
	primary := &fakeProvider{
		name:  "cloud-vision",
		model: "gemini-2.0-flash",
		fn: func(ctx context.Context, image []byte) (string, error) {
			return "cached text", nil
		},
	}

	e := NewEngineWithProviders(primary, nil, nil, fastOptions(), quietLogger())

	for i := 0; i < 3; i++ {
		result, err := e.ProcessImage(context.Background(), []byte("same label"))
		require.NoError(t, err)
		assert.Equal(t, "cached text", result.ExtractedText)
	}

	assert.Equal(t, 1, primary.callCount(), "identical bytes should hit the cache")
}

func TestEngine_HealthSnapshot(t *testing.T) {
	primary := &fakeProvider{name: "cloud-vision", model: "m"}
	fallback := &fakeProvider{name: "local-model", model: "m"}

	e := NewEngineWithProviders(primary, fallback, nil, fastOptions(), quietLogger())

	health := e.Health()
	require.Len(t, health, 2)
	assert.True(t, health["cloud-vision"].Available)
	assert.True(t, health["local-model"].Available)
	assert.Equal(t, "cloud-vision", e.ActiveEngine())
}
