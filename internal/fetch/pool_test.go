package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDownloader serves canned bodies per URL and tracks how many
// downloads run at once.
type fakeDownloader struct {
	bodies    map[string][]byte
	failing   map[string]error
	delay     time.Duration
	calls     atomic.Int64
	inFlight  atomic.Int64
	maxActive atomic.Int64
}

func (d *fakeDownloader) Download(_ context.Context, url string) ([]byte, error) {
	d.calls.Add(1)
	active := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		prev := d.maxActive.Load()
		if active <= prev || d.maxActive.CompareAndSwap(prev, active) {
			break
		}
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if err, ok := d.failing[url]; ok {
		return nil, err
	}
	body, ok := d.bodies[url]
	if !ok {
		return nil, fmt.Errorf("unexpected url %s", url)
	}
	return body, nil
}

func newTestPool(t *testing.T, d Downloader, workers int) (*Pool, string) {
	t.Helper()
	dir := t.TempDir()
	pool, err := NewPool(d, dir, workers, 0, zap.NewNop())
	require.NoError(t, err)
	return pool, dir
}

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{
			Registry: fmt.Sprintf("ACT_%d/2023", i),
			URL:      fmt.Sprintf("https://example.org/doc-%d.pdf", i),
			Filename: fmt.Sprintf("doc-%d.pdf", i),
			Status:   StatusPending,
		}
	}
	return tasks
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	tasks := makeTasks(5)
	d := &fakeDownloader{
		bodies:  make(map[string][]byte),
		failing: map[string]error{tasks[2].URL: errors.New("status 404")},
	}
	for i, task := range tasks {
		if i != 2 {
			d.bodies[task.URL] = []byte(fmt.Sprintf("content-%d", i))
		}
	}
	pool, dir := newTestPool(t, d, 2)

	results := pool.FetchAll(context.Background(), tasks)
	require.Len(t, results, 5)

	done, failed := 0, 0
	for i, task := range results {
		// Results come back in input order so failures stay attributable.
		require.Equal(t, tasks[i].Registry, task.Registry)
		switch task.Status {
		case StatusDone:
			done++
			content, err := os.ReadFile(filepath.Join(dir, task.Filename))
			require.NoError(t, err)
			require.Equal(t, task.Bytes, int64(len(content)))
		case StatusFailed:
			failed++
			require.Contains(t, task.Err, "404")
		default:
			t.Fatalf("task %d left in state %q", i, task.Status)
		}
	}
	require.Equal(t, 4, done)
	require.Equal(t, 1, failed)
	require.Equal(t, StatusFailed, results[2].Status)
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	tasks := makeTasks(8)
	d := &fakeDownloader{bodies: make(map[string][]byte), delay: 20 * time.Millisecond}
	for _, task := range tasks {
		d.bodies[task.URL] = []byte("content")
	}
	pool, _ := newTestPool(t, d, 3)

	pool.FetchAll(context.Background(), tasks)
	require.LessOrEqual(t, d.maxActive.Load(), int64(3))
	require.Equal(t, int64(8), d.calls.Load())
}

func TestFetchAllSkipsExistingDocuments(t *testing.T) {
	tasks := makeTasks(2)
	d := &fakeDownloader{bodies: map[string][]byte{
		tasks[1].URL: []byte("fresh"),
	}}
	pool, dir := newTestPool(t, d, 1)

	existing := []byte("already here")
	require.NoError(t, os.WriteFile(filepath.Join(dir, tasks[0].Filename), existing, 0o600))

	results := pool.FetchAll(context.Background(), tasks)
	require.Equal(t, StatusDone, results[0].Status)
	require.Equal(t, int64(len(existing)), results[0].Bytes)
	require.Equal(t, StatusDone, results[1].Status)
	// Only the missing document touched the network.
	require.Equal(t, int64(1), d.calls.Load())
}

func TestFetchAllCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := makeTasks(3)
	d := &fakeDownloader{bodies: make(map[string][]byte)}
	pool, _ := newTestPool(t, d, 2)

	results := pool.FetchAll(ctx, tasks)
	require.Len(t, results, 3)
	for _, task := range results {
		require.Equal(t, StatusFailed, task.Status)
		require.Contains(t, task.Err, "not started")
	}
	require.Equal(t, int64(0), d.calls.Load())
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "doc.pdf")
	require.NoError(t, writeAtomic(dest, []byte("content")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "doc.pdf", entries[0].Name())
}
