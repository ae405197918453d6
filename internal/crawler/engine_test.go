package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mlefevre/upc-decisions/internal/decisions"
)

// scriptedProvider replays a fixed sequence of outcomes per page. Each
// RenderPage call on a page consumes the next outcome; the sequence must
// cover every call the engine makes.
type scriptedProvider struct {
	script map[int][]pageOutcome
	calls  []int
}

type pageOutcome struct {
	rows int
	err  error
}

func (p *scriptedProvider) RenderPage(_ context.Context, page int) (string, error) {
	p.calls = append(p.calls, page)
	outcomes := p.script[page]
	if len(outcomes) == 0 {
		return "", fmt.Errorf("unscripted page %d", page)
	}
	next := outcomes[0]
	p.script[page] = outcomes[1:]
	if next.err != nil {
		return "", next.err
	}
	return fmt.Sprintf("rows=%d;page=%d", next.rows, page), nil
}

func (p *scriptedProvider) Close(context.Context) error { return nil }

// countExtractor turns the provider's synthetic pages back into records.
type countExtractor struct{}

func (countExtractor) Extract(html string, page int) ([]decisions.Record, error) {
	var rows, got int
	if _, err := fmt.Sscanf(html, "rows=%d;page=%d", &rows, &got); err != nil {
		return nil, fmt.Errorf("malformed synthetic page %q: %w", html, err)
	}
	records := make([]decisions.Record, rows)
	for i := range records {
		records[i] = decisions.Record{
			Registry:    fmt.Sprintf("ORD_%d_%d/2023", page, i),
			DocumentURL: fmt.Sprintf("https://example.org/%d/%d.pdf", page, i),
			Page:        page,
		}
	}
	return records, nil
}

// memorySink collects appended records and can be told to fail.
type memorySink struct {
	records []decisions.Record
	err     error
}

func (s *memorySink) Append(_ context.Context, records []decisions.Record) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.records = append(s.records, records...)
	return len(records), nil
}

func newTestEngine(provider PageProvider, sink RecordSink, cfg Config) *Engine {
	retry := NewExponentialRetryPolicy(cfg.RetryAttempts, time.Millisecond)
	return New(provider, countExtractor{}, sink, retry, cfg, zap.NewNop())
}

func testConfig() Config {
	return Config{
		MaxEmptyPages: 2,
		MaxErrors:     2,
		RetryAttempts: 3,
	}
}

func TestCrawlStopsAfterConsecutiveEmptyPages(t *testing.T) {
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		0: {{rows: 2}},
		1: {{rows: 0}}, // single empty page resets on the next hit
		2: {{rows: 3}},
		3: {{rows: 0}},
		4: {{rows: 0}},
	}}
	sink := &memorySink{}

	res, err := newTestEngine(provider, sink, testConfig()).Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 5)
	require.Equal(t, 5, res.Appended)
	require.Equal(t, 2, res.Pages)
	require.Equal(t, 4, res.LastPage)
	require.Len(t, sink.records, 5)
	require.Equal(t, []int{0, 1, 2, 3, 4}, provider.calls)
}

func TestCrawlCollectsAllRowsBeforeEmptyRun(t *testing.T) {
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		0: {{rows: 10}},
		1: {{rows: 10}},
		2: {{rows: 0}},
	}}
	sink := &memorySink{}
	cfg := testConfig()
	cfg.MaxEmptyPages = 1

	res, err := newTestEngine(provider, sink, cfg).Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 20)
	require.Equal(t, 20, res.Appended)
	require.Equal(t, 2, res.Pages)
}

func TestCrawlFirstPageEmptyIsValid(t *testing.T) {
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		0: {{rows: 0}},
		1: {{rows: 0}},
	}}
	sink := &memorySink{}

	res, err := newTestEngine(provider, sink, testConfig()).Crawl(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Records)
	require.Zero(t, res.Pages)
}

func TestCrawlEndsOnProviderExhaustion(t *testing.T) {
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		0: {{rows: 1}},
		1: {{err: ErrNoMorePages}},
	}}
	sink := &memorySink{}

	res, err := newTestEngine(provider, sink, testConfig()).Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	require.Equal(t, 1, res.LastPage)
}

func TestCrawlRetriesTransientFailures(t *testing.T) {
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		0: {
			{err: Transient(errors.New("table not ready"))},
			{err: Transient(errors.New("table not ready"))},
			{rows: 2},
		},
		1: {{err: ErrNoMorePages}},
	}}
	sink := &memorySink{}

	res, err := newTestEngine(provider, sink, testConfig()).Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	require.Equal(t, []int{0, 0, 0, 1}, provider.calls)
}

func TestCrawlRetriesTimedOutPages(t *testing.T) {
	timeout := Transient(fmt.Errorf("page 0: table not ready within 10s: %w", context.DeadlineExceeded))
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		0: {
			{err: timeout},
			{rows: 2},
		},
		1: {{err: ErrNoMorePages}},
	}}
	sink := &memorySink{}

	res, err := newTestEngine(provider, sink, testConfig()).Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	require.Equal(t, []int{0, 0, 1}, provider.calls)
}

func TestCrawlAbortsAfterMaxConsecutiveErrors(t *testing.T) {
	hard := errors.New("browser crashed")
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		0: {{rows: 2}},
		1: {{err: hard}},
		2: {{err: hard}},
	}}
	sink := &memorySink{}

	res, err := newTestEngine(provider, sink, testConfig()).Crawl(context.Background())

	var crawlErr *CrawlError
	require.ErrorAs(t, err, &crawlErr)
	require.Equal(t, 2, crawlErr.Page)
	require.ErrorIs(t, err, hard)

	// Records scraped before the abort are still in the partial result.
	require.Len(t, res.Records, 2)
	require.Equal(t, 2, res.LastPage)
	require.Len(t, sink.records, 2)
}

func TestCrawlErrorCounterResetsOnSuccess(t *testing.T) {
	hard := errors.New("browser crashed")
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		0: {{err: hard}},
		1: {{rows: 1}},
		2: {{err: hard}},
		3: {{err: ErrNoMorePages}},
	}}
	sink := &memorySink{}

	res, err := newTestEngine(provider, sink, testConfig()).Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	require.Equal(t, 3, res.LastPage)
}

func TestCrawlStartsAtConfiguredPage(t *testing.T) {
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		5: {{rows: 1}},
		6: {{err: ErrNoMorePages}},
	}}
	sink := &memorySink{}
	cfg := testConfig()
	cfg.StartPage = 5

	res, err := newTestEngine(provider, sink, cfg).Crawl(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{5, 6}, provider.calls)
	require.Equal(t, 5, res.Records[0].Page)
}

func TestCrawlAbortsWhenSinkFails(t *testing.T) {
	provider := &scriptedProvider{script: map[int][]pageOutcome{
		0: {{rows: 2}},
	}}
	sink := &memorySink{err: errors.New("disk full")}

	res, err := newTestEngine(provider, sink, testConfig()).Crawl(context.Background())

	var crawlErr *CrawlError
	require.ErrorAs(t, err, &crawlErr)
	require.Equal(t, 0, crawlErr.Page)
	require.Empty(t, res.Records)
}

func TestCrawlHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{script: map[int][]pageOutcome{}}
	res, err := newTestEngine(provider, &memorySink{}, testConfig()).Crawl(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, res.Records)
	require.Empty(t, provider.calls)
}
