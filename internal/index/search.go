package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// ErrInvalidQuery is returned when a search specifies neither a keyword
// nor a date bound.
var ErrInvalidQuery = errors.New("query requires a keyword or a date bound")

// DefaultLimit caps result counts when the caller does not set one.
const DefaultLimit = 50

// Query is one search request. Start and End are calendar dates with
// inclusive bounds; End covers its whole day.
type Query struct {
	Keyword string
	Start   *time.Time
	End     *time.Time
	Limit   int
}

// Entry is the metadata returned for one matching document. Document text
// never leaves the index.
type Entry struct {
	DocID    string `json:"doc_id"`
	Date     string `json:"date,omitempty"`
	Registry string `json:"registry"`
	Parties  string `json:"parties"`
	Court    string `json:"court"`
	Action   string `json:"action"`
}

// Engine answers queries against a built index. It opens the index
// read-only, so searching never contends with a completed build.
type Engine struct {
	idx bleve.Index
}

// OpenEngine opens the index at path for reading. A path with no index
// yields a valid engine whose searches return no results.
func OpenEngine(path string) (*Engine, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Engine{}, nil
	}
	idx, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return &Engine{idx: idx}, nil
}

// Close releases the index. Safe on an empty engine.
func (e *Engine) Close() error {
	if e.idx == nil {
		return nil
	}
	return e.idx.Close()
}

// Search runs the keyword match, narrows by the inclusive date range when
// bounds are present, and returns entries ordered by relevance then date
// descending.
func (e *Engine) Search(ctx context.Context, q Query) ([]Entry, error) {
	if q.Keyword == "" && q.Start == nil && q.End == nil {
		return nil, ErrInvalidQuery
	}
	if e.idx == nil {
		return []Entry{}, nil
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	req := bleve.NewSearchRequest(buildQuery(q))
	req.Size = q.Limit
	req.Fields = []string{fieldRegistry, fieldParties, fieldCourt, fieldAction, fieldDate, fieldRawDate}
	req.SortBy([]string{"-_score", "-" + fieldDate})

	res, err := e.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	entries := make([]Entry, 0, len(res.Hits))
	for _, hit := range res.Hits {
		entries = append(entries, hitEntry(hit.ID, hit.Fields))
	}
	return entries, nil
}

func buildQuery(q Query) query.Query {
	var parts []query.Query
	if q.Keyword != "" {
		parts = append(parts, bleve.NewMatchQuery(q.Keyword))
	}
	if q.Start != nil || q.End != nil {
		var start, end time.Time
		if q.Start != nil {
			start = q.Start.UTC()
		}
		if q.End != nil {
			// End bound is a calendar date; cover its whole day.
			end = q.End.UTC().Add(24*time.Hour - time.Nanosecond)
		}
		inclusive := true
		dr := bleve.NewDateRangeInclusiveQuery(start, end, &inclusive, &inclusive)
		dr.SetField(fieldDate)
		parts = append(parts, dr)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return bleve.NewConjunctionQuery(parts...)
}

func hitEntry(id string, fields map[string]interface{}) Entry {
	entry := Entry{
		DocID:    id,
		Registry: fieldString(fields, fieldRegistry),
		Parties:  fieldString(fields, fieldParties),
		Court:    fieldString(fields, fieldCourt),
		Action:   fieldString(fields, fieldAction),
	}
	if raw := fieldString(fields, fieldDate); raw != "" {
		if dt, err := time.Parse(time.RFC3339, raw); err == nil {
			entry.Date = dt.Format("2006-01-02")
		}
	}
	if entry.Date == "" {
		entry.Date = fieldString(fields, fieldRawDate)
	}
	return entry
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
