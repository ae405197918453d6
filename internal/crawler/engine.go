package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mlefevre/upc-decisions/internal/decisions"
	"github.com/mlefevre/upc-decisions/internal/metrics"
)

// RecordSink persists extracted records. Append is called once per page so
// everything scraped before a later failure is already durable. It returns
// the number of records actually kept after deduplication.
type RecordSink interface {
	Append(ctx context.Context, records []decisions.Record) (int, error)
}

// RowExtractor parses a rendered listing page into records.
type RowExtractor interface {
	Extract(html string, page int) ([]decisions.Record, error)
}

// CrawlError reports an unrecoverable crawl failure. Records collected
// before the failure remain persisted; Result carries them back to the
// caller, which must treat them as valid partial output.
type CrawlError struct {
	Page int
	Err  error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl aborted at page %d: %v", e.Page, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// Result summarizes a crawl run.
type Result struct {
	// Records holds every record collected this run, in page order. They
	// are already persisted through the sink by the time Crawl returns.
	Records  []decisions.Record
	Appended int
	Pages    int
	LastPage int
}

// cursor is the engine's pagination state.
type cursor struct {
	page         int
	emptyPages   int
	errorPages   int
	totalRecords int
}

// Engine drives the page provider forward page by page. It is strictly
// sequential: the provider holds single-session browser state.
type Engine struct {
	provider  PageProvider
	extractor RowExtractor
	sink      RecordSink
	retry     RetryPolicy
	cfg       Config
	logger    *zap.Logger
}

// New constructs a crawl engine.
func New(provider PageProvider, extractor RowExtractor, sink RecordSink, retry RetryPolicy, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		provider:  provider,
		extractor: extractor,
		sink:      sink,
		retry:     retry,
		cfg:       cfg,
		logger:    logger,
	}
}

// Crawl walks listing pages from the configured start page until the
// consecutive-empty-page threshold is reached, the provider reports the
// end of the listing, or too many consecutive pages fail. The returned
// Result is valid even when the error is non-nil.
func (e *Engine) Crawl(ctx context.Context) (Result, error) {
	cur := cursor{page: e.cfg.StartPage}
	var res Result

	for {
		if err := ctx.Err(); err != nil {
			res.LastPage = cur.page
			return res, fmt.Errorf("crawl canceled: %w", err)
		}

		html, err := e.renderWithRetry(ctx, cur.page)
		switch {
		case errors.Is(err, ErrNoMorePages):
			e.logger.Info("provider reported end of listing", zap.Int("page", cur.page))
			res.LastPage = cur.page
			return res, nil
		case err != nil:
			cur.errorPages++
			metrics.PageErrors.Inc()
			e.logger.Error("page failed after retries",
				zap.Int("page", cur.page),
				zap.Int("consecutive_errors", cur.errorPages),
				zap.Int("max_errors", e.cfg.MaxErrors),
				zap.Error(err),
			)
			if cur.errorPages >= e.cfg.MaxErrors {
				res.LastPage = cur.page
				return res, &CrawlError{Page: cur.page, Err: err}
			}
			cur.page++
			continue
		}
		cur.errorPages = 0
		metrics.PagesScraped.Inc()

		records, err := e.extractor.Extract(html, cur.page)
		if err != nil {
			res.LastPage = cur.page
			return res, &CrawlError{Page: cur.page, Err: fmt.Errorf("extract rows: %w", err)}
		}

		if len(records) == 0 {
			cur.emptyPages++
			e.logger.Info("empty page",
				zap.Int("page", cur.page),
				zap.Int("consecutive_empty", cur.emptyPages),
				zap.Int("max_empty", e.cfg.MaxEmptyPages),
			)
			if cur.emptyPages >= e.cfg.MaxEmptyPages {
				res.LastPage = cur.page
				return res, nil
			}
			cur.page++
			continue
		}
		cur.emptyPages = 0

		appended, err := e.sink.Append(ctx, records)
		if err != nil {
			// Pages persisted before this one stay durable; this page's
			// records are lost, so the failure is unrecoverable.
			res.LastPage = cur.page
			return res, &CrawlError{Page: cur.page, Err: fmt.Errorf("persist records: %w", err)}
		}
		cur.totalRecords += len(records)
		metrics.RecordsExtracted.Add(float64(len(records)))

		res.Records = append(res.Records, records...)
		res.Appended += appended
		res.Pages++
		e.logger.Info("page scraped",
			zap.Int("page", cur.page),
			zap.Int("records", len(records)),
			zap.Int("appended", appended),
		)
		cur.page++
	}
}

// renderWithRetry asks the provider for a page, retrying transient
// failures according to the retry policy.
func (e *Engine) renderWithRetry(ctx context.Context, page int) (string, error) {
	attempt := 0
	for {
		html, err := e.provider.RenderPage(ctx, page)
		if err == nil || errors.Is(err, ErrNoMorePages) {
			return html, err
		}
		attempt++
		if !e.retry.ShouldRetry(err, attempt) {
			return "", err
		}
		delay := e.retry.Backoff(attempt - 1)
		e.logger.Warn("retrying page",
			zap.Int("page", page),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return "", err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
