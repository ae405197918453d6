package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mlefevre/upc-decisions/internal/metrics"
)

// DefaultWorkers is the pool size when the caller does not configure one.
const DefaultWorkers = 4

// Pool downloads documents with a fixed set of workers. Tasks are
// independent; workers share only the task queue and each writes the
// outcome of its own task.
type Pool struct {
	downloader Downloader
	docsDir    string
	workers    int
	hostQPS    float64
	limiters   sync.Map
	logger     *zap.Logger
}

// NewPool constructs a pool writing documents into docsDir.
// workers < 1 falls back to DefaultWorkers; hostQPS <= 0 disables the
// per-host politeness limiter.
func NewPool(downloader Downloader, docsDir string, workers int, hostQPS float64, logger *zap.Logger) (*Pool, error) {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if err := os.MkdirAll(docsDir, 0o750); err != nil {
		return nil, fmt.Errorf("create docs dir %s: %w", docsDir, err)
	}
	return &Pool{
		downloader: downloader,
		docsDir:    docsDir,
		workers:    workers,
		hostQPS:    hostQPS,
		logger:     logger,
	}, nil
}

// FetchAll runs every task to a terminal state and returns them in input
// order. A failed task records its reason and never aborts its siblings.
// Once ctx is canceled the pool stops dequeuing; tasks never started are
// returned failed with the cancellation reason.
func (p *Pool) FetchAll(ctx context.Context, tasks []Task) []Task {
	results := make([]Task, len(tasks))
	queue := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = p.runTask(ctx, tasks[i])
			}
		}()
	}

	for i := range tasks {
		queue <- i
	}
	close(queue)
	wg.Wait()
	return results
}

func (p *Pool) runTask(ctx context.Context, task Task) Task {
	if err := ctx.Err(); err != nil {
		return p.fail(task, fmt.Errorf("not started: %w", err))
	}

	dest := filepath.Join(p.docsDir, task.Filename)
	if info, err := os.Stat(dest); err == nil {
		// Re-runs are idempotent: a previously downloaded document counts
		// as done without touching the network.
		task.Status = StatusDone
		task.Bytes = info.Size()
		return task
	}

	if err := p.waitHostBudget(ctx, task.URL); err != nil {
		return p.fail(task, err)
	}

	body, err := p.downloader.Download(ctx, task.URL)
	if err != nil {
		return p.fail(task, err)
	}
	if err := writeAtomic(dest, body); err != nil {
		return p.fail(task, err)
	}

	task.Status = StatusDone
	task.Bytes = int64(len(body))
	metrics.DocumentsFetched.Inc()
	p.logger.Debug("document fetched",
		zap.String("registry", task.Registry),
		zap.String("file", task.Filename),
		zap.Int64("bytes", task.Bytes),
	)
	return task
}

func (p *Pool) fail(task Task, err error) Task {
	task.Status = StatusFailed
	task.Err = err.Error()
	metrics.FetchFailures.Inc()
	p.logger.Warn("document fetch failed",
		zap.String("registry", task.Registry),
		zap.String("url", task.URL),
		zap.Error(err),
	)
	return task
}

func (p *Pool) waitHostBudget(ctx context.Context, rawURL string) error {
	if p.hostQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse document url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := p.limiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(p.hostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait host budget: %w", err)
	}
	return nil
}

// writeAtomic writes via a temp file and rename so a crashed worker never
// leaves a truncated document behind.
func writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", dest, err)
	}
	return nil
}
