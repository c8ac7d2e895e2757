package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/verilabel-ai/verilabel/internal/domain"
	"github.com/verilabel-ai/verilabel/internal/observability"
)

// PageBreakSeparator joins recognized page segments in document order.
const PageBreakSeparator = "\n--- Page Break ---\n"

// DefaultWorkers bounds page concurrency when no worker count is configured.
const DefaultWorkers = 4

// recognizeFunc recognizes one page image. The engine hands the scheduler its
// full per-page pipeline (preprocess, cache, retry, provider) behind this.
type recognizeFunc func(ctx context.Context, image []byte) (string, error)

// Scheduler fans a document's pages out to a bounded worker pool and
// reassembles the results strictly in page order. One slow or broken page
// never cancels its siblings; it degrades to an inline marker instead.
type Scheduler struct {
	workers     int
	pageTimeout time.Duration
	logger      *observability.Logger
}

// NewScheduler creates a scheduler. pageTimeout bounds each page end to end,
// covering provider retries plus grace.
func NewScheduler(workers int, pageTimeout time.Duration, logger *observability.Logger) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scheduler{
		workers:     workers,
		pageTimeout: pageTimeout,
		logger:      logger,
	}
}

// Process recognizes every page and joins the segments with
// PageBreakSeparator. A page that exceeds its deadline yields
// "[Page N: timeout]", any other page failure yields "[Page N: error]", and
// the document still succeeds as long as one page produced text. Only when
// every page fails does the whole attempt fail, which lets the engine try
// another provider. pagesProcessed always reports the full page count.
func (s *Scheduler) Process(ctx context.Context, pages []domain.PageImage, recognize recognizeFunc) (string, int, error) {
	total := len(pages)
	if total == 0 {
		return "", 0, domain.RecognitionFailedError("document produced no pages", nil)
	}

	segments := make([]string, total)
	succeeded := make([]bool, total)
	pageErrs := make([]error, total)

	workers := s.workers
	if total < workers {
		workers = total
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				s.processPage(ctx, pages[idx], recognize, idx, segments, succeeded, pageErrs)
			}
		}()
	}

	for idx := range pages {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	successes := 0
	for _, ok := range succeeded {
		if ok {
			successes++
		}
	}
	if successes == 0 {
		return "", 0, domain.RecognitionFailedError(
			fmt.Sprintf("all %d pages failed recognition", total),
			errors.Join(pageErrs...))
	}

	s.logger.Info().
		Int("pages", total).
		Int("recognized", successes).
		Msg("Document pages assembled")

	return strings.Join(segments, PageBreakSeparator), total, nil
}

func (s *Scheduler) processPage(ctx context.Context, page domain.PageImage, recognize recognizeFunc, idx int, segments []string, succeeded []bool, pageErrs []error) {
	pageCtx, cancel := context.WithTimeout(ctx, s.pageTimeout)
	defer cancel()

	text, err := recognize(pageCtx, page.Data)
	if err == nil {
		segments[idx] = text
		succeeded[idx] = true
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn().
			Int("page", page.PageNumber).
			Dur("deadline", s.pageTimeout).
			Msg("Page recognition timed out")
		segments[idx] = fmt.Sprintf("[Page %d: timeout]", page.PageNumber)
		pageErrs[idx] = domain.PageTimeoutError(page.PageNumber)
		return
	}

	s.logger.Warn().
		Int("page", page.PageNumber).
		Err(err).
		Msg("Page recognition failed")
	segments[idx] = fmt.Sprintf("[Page %d: error]", page.PageNumber)
	pageErrs[idx] = err
}
