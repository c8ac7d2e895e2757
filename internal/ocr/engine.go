// Package ocr orchestrates recognition across interchangeable provider
// backends: a facade that picks a primary provider from available
// credentials, keeps the local model as permanent fallback, and fans
// multi-page documents out to a bounded worker pool.
package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/verilabel-ai/verilabel/internal/config"
	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/observability"
	"github.com/verilabel-ai/verilabel/internal/preprocess"
	"github.com/verilabel-ai/verilabel/internal/provider"
	"github.com/verilabel-ai/verilabel/internal/retry"
)

const defaultProviderTimeout = 120 * time.Second

// Options tunes engine orchestration. Zero values fall back to the
// documented defaults.
type Options struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	Workers       int
	DPI           int
	PageGrace     time.Duration
	CacheCapacity int

	// ProviderTimeout bounds a single provider call when the provider has no
	// recorded timeout of its own; the per-page deadline adds PageGrace on
	// top of it.
	ProviderTimeout time.Duration
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.DPI <= 0 {
		o.DPI = 150
	}
	if o.PageGrace <= 0 {
		o.PageGrace = 10 * time.Second
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = defaultProviderTimeout
	}
	return o
}

// tier is one rung of the failover ladder.
type tier struct {
	provider domain.Provider
	role     string
}

// Engine is the single entry point for recognition. It owns provider
// selection, preprocessing, caching, retries, and failover; callers only see
// ProcessImage and ProcessPDF.
//
// Provider selection happens once at construction and is read-only
// afterwards. The engine is safe for concurrent use.
type Engine struct {
	state    domain.EngineState
	primary  domain.Provider
	fallback domain.Provider
	health   map[string]domain.ProviderHealth
	timeouts map[string]time.Duration

	rasterizer domain.Rasterizer
	cache      *ResultCache
	executor   *retry.Executor
	opts       Options
	logger     *observability.Logger
}

// NewEngine probes provider configuration in priority order (cloud-vision,
// cloud-ocr, local-model) and wires the facade. The first constructible
// cloud provider becomes primary; the local model is always constructed last
// and, when present, is the permanent fallback. A provider whose credentials
// are absent is simply excluded, never a startup failure.
func NewEngine(cfg *config.Config, rasterizer domain.Rasterizer, localOCR domain.LocalOCR, logger *observability.Logger) *Engine {
	var primary, fallback domain.Provider
	health := make(map[string]domain.ProviderHealth)
	timeouts := map[string]time.Duration{
		domain.ProviderCloudVision: cfg.Providers.CloudVision.Timeout,
		domain.ProviderCloudOCR:    cfg.Providers.CloudOCR.Timeout,
		domain.ProviderLocalModel:  cfg.Providers.LocalModel.Timeout,
	}

	if p, err := provider.NewCloudVision(cfg.Providers.CloudVision, logger); err != nil {
		health[domain.ProviderCloudVision] = domain.ProviderHealth{LastError: err.Error()}
		logger.Info().Str("provider", domain.ProviderCloudVision).Msg("Provider disabled")
	} else {
		health[domain.ProviderCloudVision] = domain.ProviderHealth{Available: true}
		primary = p
	}

	if p, err := provider.NewCloudOCR(cfg.Providers.CloudOCR, logger); err != nil {
		health[domain.ProviderCloudOCR] = domain.ProviderHealth{LastError: err.Error()}
		logger.Info().Str("provider", domain.ProviderCloudOCR).Msg("Provider disabled")
	} else {
		health[domain.ProviderCloudOCR] = domain.ProviderHealth{Available: true}
		if primary == nil {
			primary = p
		}
	}

	fallback = provider.NewLocalModel(cfg.Providers.LocalModel, localOCR, logger)
	health[domain.ProviderLocalModel] = domain.ProviderHealth{Available: true}

	opts := Options{
		MaxAttempts:   cfg.OCR.MaxAttempts,
		BaseDelay:     cfg.OCR.BaseDelay,
		Workers:       cfg.OCR.Workers,
		DPI:           cfg.OCR.DPI,
		PageGrace:     cfg.OCR.PageGrace,
		CacheCapacity: cfg.OCR.CacheCapacity,
	}

	e := newEngine(primary, fallback, rasterizer, opts, logger)
	e.health = health
	e.timeouts = timeouts

	switch e.state {
	case domain.EngineStateReady:
		logger.Info().
			Str("primary", e.primary.Name()).
			Str("fallback", e.fallback.Name()).
			Msg("OCR engine ready")
	case domain.EngineStateDegraded:
		logger.Warn().
			Str("fallback", e.fallback.Name()).
			Msg("No cloud provider configured, running on local model only")
	case domain.EngineStateUnavailable:
		logger.Error().Msg("No OCR engine available: set a cloud API key or ensure the local model server is running")
	}

	return e
}

// NewEngineWithProviders wires the facade around already-constructed
// providers. Either provider may be nil; with both nil the engine is
// unavailable and every request fails fast.
func NewEngineWithProviders(primary, fallback domain.Provider, rasterizer domain.Rasterizer, opts Options, logger *observability.Logger) *Engine {
	e := newEngine(primary, fallback, rasterizer, opts, logger)
	e.health = make(map[string]domain.ProviderHealth)
	if primary != nil {
		e.health[primary.Name()] = domain.ProviderHealth{Available: true}
	}
	if fallback != nil {
		e.health[fallback.Name()] = domain.ProviderHealth{Available: true}
	}
	return e
}

func newEngine(primary, fallback domain.Provider, rasterizer domain.Rasterizer, opts Options, logger *observability.Logger) *Engine {
	opts = opts.normalized()

	state := domain.EngineStateUnavailable
	switch {
	case primary != nil:
		state = domain.EngineStateReady
	case fallback != nil:
		state = domain.EngineStateDegraded
	}

	return &Engine{
		state:      state,
		primary:    primary,
		fallback:   fallback,
		rasterizer: rasterizer,
		cache:      NewResultCache(opts.CacheCapacity),
		executor:   retry.NewExecutor(opts.MaxAttempts, opts.BaseDelay, logger),
		opts:       opts,
		logger:     logger,
	}
}

// State reports the startup outcome.
func (e *Engine) State() domain.EngineState { return e.state }

// ActiveEngine names the provider currently serving requests first: the
// primary when one exists, the fallback in degraded mode, "none" otherwise.
func (e *Engine) ActiveEngine() string {
	if e.primary != nil {
		return e.primary.Name()
	}
	if e.fallback != nil {
		return e.fallback.Name()
	}
	return "none"
}

// Health returns a snapshot of per-provider availability recorded at
// construction.
func (e *Engine) Health() map[string]domain.ProviderHealth {
	out := make(map[string]domain.ProviderHealth, len(e.health))
	for name, h := range e.health {
		out[name] = h
	}
	return out
}

// ProcessImage recognizes a single raster image, trying the primary provider
// first and the fallback on failure. It either returns a complete result or
// an error enumerating every attempted provider's cause.
func (e *Engine) ProcessImage(ctx context.Context, data []byte) (*domain.RecognitionResult, error) {
	if e.state == domain.EngineStateUnavailable {
		return nil, domain.NoEngineAvailableError()
	}

	start := time.Now()
	var causes []string
	var errs []error

	for _, t := range e.tiers() {
		text, err := e.recognize(ctx, t.provider, data)
		if err != nil {
			causes = append(causes, fmt.Sprintf("%s: %v", t.provider.Name(), err))
			errs = append(errs, err)
			e.logger.Warn().
				Str("provider", t.provider.Name()).
				Str("role", t.role).
				Err(err).
				Msg("Provider failed, trying next tier")
			continue
		}

		e.logger.Info().
			Str("provider", t.provider.Name()).
			Str("role", t.role).
			Int("chars", len(text)).
			Dur("elapsed", time.Since(start)).
			Msg("Image recognized")

		return &domain.RecognitionResult{
			ExtractedText:    text,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			ModelName:        t.provider.Model(),
			EngineUsed:       t.role,
		}, nil
	}

	return nil, domain.AllEnginesFailedError(causes, errs...)
}

// ProcessPDF rasterizes the document once and recognizes its pages through a
// bounded worker pool, reassembled in page order. Rasterization failures are
// fatal and never fail over; a provider tier fails over only when every one
// of its pages failed.
func (e *Engine) ProcessPDF(ctx context.Context, data []byte) (*domain.RecognitionResult, error) {
	if e.state == domain.EngineStateUnavailable {
		return nil, domain.NoEngineAvailableError()
	}

	start := time.Now()

	pages, err := e.rasterizer.Rasterize(ctx, data, e.opts.DPI)
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Int("pages", len(pages)).
		Int("dpi", e.opts.DPI).
		Msg("PDF rasterized")

	var causes []string
	var errs []error

	for _, t := range e.tiers() {
		// A fresh pool per document keeps resource usage predictable under
		// concurrent requests.
		sched := NewScheduler(e.opts.Workers, e.pageDeadline(t.provider), e.logger)
		text, processed, err := sched.Process(ctx, pages, func(ctx context.Context, image []byte) (string, error) {
			return e.recognize(ctx, t.provider, image)
		})
		if err != nil {
			causes = append(causes, fmt.Sprintf("%s: %v", t.provider.Name(), err))
			errs = append(errs, err)
			e.logger.Warn().
				Str("provider", t.provider.Name()).
				Str("role", t.role).
				Err(err).
				Msg("Provider failed for all pages, trying next tier")
			continue
		}

		e.logger.Info().
			Str("provider", t.provider.Name()).
			Str("role", t.role).
			Int("pages", processed).
			Dur("elapsed", time.Since(start)).
			Msg("PDF recognized")

		return &domain.RecognitionResult{
			ExtractedText:    text,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			ModelName:        t.provider.Model(),
			EngineUsed:       t.role,
			PagesProcessed:   processed,
		}, nil
	}

	return nil, domain.AllEnginesFailedError(causes, errs...)
}

// recognize is the full per-image pipeline behind one provider: preprocess,
// cache lookup, retried provider call, cache fill.
func (e *Engine) recognize(ctx context.Context, p domain.Provider, image []byte) (string, error) {
	prepared := preprocess.Run(image)
	digest := Digest(prepared)

	if text, ok := e.cache.Get(digest); ok {
		e.logger.Debug().Str("digest", digest[:12]).Msg("Recognition cache hit")
		return text, nil
	}

	text, err := e.executor.Do(ctx, func(ctx context.Context) (string, error) {
		return p.RecognizeImage(ctx, prepared)
	})
	if err != nil {
		return "", err
	}

	e.cache.Put(digest, text)
	return text, nil
}

// tiers returns the failover ladder for one request: primary first, then the
// fallback when it is a distinct provider.
func (e *Engine) tiers() []tier {
	var out []tier
	if e.primary != nil {
		out = append(out, tier{provider: e.primary, role: domain.EngineRolePrimary})
	}
	if e.fallback != nil && e.fallback != e.primary {
		out = append(out, tier{provider: e.fallback, role: domain.EngineRoleFallback})
	}
	return out
}

// pageDeadline bounds one page end to end: the provider's own call timeout
// plus a grace period for queueing and preprocessing.
func (e *Engine) pageDeadline(p domain.Provider) time.Duration {
	timeout := e.timeouts[p.Name()]
	if timeout <= 0 {
		timeout = e.opts.ProviderTimeout
	}
	return timeout + e.opts.PageGrace
}
