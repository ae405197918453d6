// Package fetch implements the concurrent document download pool: tasks
// derived from records, a bounded worker pool, and a sqlite ledger that
// keeps per-run outcomes enumerable after the fact.
package fetch

import (
	"github.com/mlefevre/upc-decisions/internal/decisions"
)

// Status is the lifecycle state of a fetch task.
type Status string

// Task status values. Every task returned by the pool is terminal.
const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Task is one document download unit derived from a record's document link.
type Task struct {
	Registry string
	URL      string
	Filename string
	Status   Status
	// Err holds the failure reason for failed tasks.
	Err   string
	Bytes int64
}

// BuildTasks derives one pending task per record carrying a document link.
// Destination filenames are deterministic; the rare full collision (same
// date, parties, court, and registry digest prefix) is resolved with a
// numeric suffix so no download overwrites another.
func BuildTasks(records []decisions.Record) []Task {
	taken := make(map[string]bool, len(records))
	tasks := make([]Task, 0, len(records))
	for _, rec := range records {
		if !rec.HasDocument() {
			continue
		}
		name := decisions.Disambiguate(decisions.DocumentFilename(rec), func(n string) bool {
			return taken[n]
		})
		taken[name] = true
		tasks = append(tasks, Task{
			Registry: rec.Registry,
			URL:      rec.DocumentURL,
			Filename: name,
			Status:   StatusPending,
		})
	}
	return tasks
}
