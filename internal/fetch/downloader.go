package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
)

// Downloader retrieves one document and returns its bytes.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// CollyDownloader implements Downloader with a Colly collector. Each call
// clones the base collector, so per-request state never leaks between
// workers.
type CollyDownloader struct {
	base    *colly.Collector
	timeout time.Duration
}

// NewCollyDownloader builds a downloader with the given user agent and
// per-request timeout.
func NewCollyDownloader(userAgent string, timeout time.Duration) *CollyDownloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.Async(false),
	)
	c.IgnoreRobotsTxt = true
	return &CollyDownloader{base: c, timeout: timeout}
}

// Download fetches the URL synchronously and returns the response body.
// HTTP errors and malformed responses surface as errors; the caller marks
// the task failed.
func (d *CollyDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("download canceled: %w", err)
	}

	collector := d.base.Clone()
	collector.SetRequestTimeout(d.timeout)

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := collector.Visit(url); err != nil {
		return nil, fmt.Errorf("visit %s: %w", url, err)
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s (status %d): %w", url, status, fetchErr)
	}
	if status >= 400 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, status)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("fetch %s: empty response body", url)
	}
	return body, nil
}
