package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// tableSelector is the CSS selector the provider waits on before declaring
// a listing page rendered.
const tableSelector = "table.views-table tbody tr"

// ChromedpProvider renders listing pages using headless Chrome via chromedp.
// One browser process serves the whole crawl; each page gets its own tab.
type ChromedpProvider struct {
	cfg             Config
	logger          *zap.Logger
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
}

// NewChromedpProvider starts the headless browser and warms it up.
func NewChromedpProvider(cfg Config, logger *zap.Logger) (*ChromedpProvider, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &ChromedpProvider{
		cfg:             cfg,
		logger:          logger,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (p *ChromedpProvider) Close(_ context.Context) error {
	if p == nil {
		return nil
	}
	p.browserCancel()
	p.allocatorCancel()
	return nil
}

// RenderPage navigates to the listing page and waits for the results table.
// A missing table or navigation timeout surfaces as a TransientError so the
// engine's retry policy can decide what to do with it.
func (p *ChromedpProvider) RenderPage(ctx context.Context, page int) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(p.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, p.cfg.WaitTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var html string
	tasks := chromedp.Tasks{
		emulation.SetScriptExecutionDisabled(!p.cfg.EnableJS),
		chromedp.Navigate(p.pageURL(page)),
		chromedp.WaitReady(tableSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		if parentErr := ctx.Err(); parentErr != nil {
			return "", fmt.Errorf("render page %d: %w", page, parentErr)
		}
		// Waiting for the table times out both when the page is slow and
		// when the table genuinely never appears; either way retrying is
		// the right first response.
		if errors.Is(err, context.DeadlineExceeded) {
			return "", Transient(fmt.Errorf("page %d: table not ready within %s: %w", page, p.cfg.WaitTimeout, err))
		}
		return "", Transient(fmt.Errorf("page %d: chromedp run: %w", page, err))
	}
	p.logger.Debug("page rendered", zap.Int("page", page), zap.Int("bytes", len(html)))
	return html, nil
}

func (p *ChromedpProvider) pageURL(page int) string {
	if page <= 0 {
		return p.cfg.BaseURL
	}
	return fmt.Sprintf("%s?page=%d", p.cfg.BaseURL, page)
}

// forwardCancel propagates parent cancellation into a chromedp task context.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
