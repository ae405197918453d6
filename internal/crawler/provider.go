// Package crawler implements the paginated crawl over the decisions table:
// a page provider renders listing pages, an extractor parses rows, and the
// engine drives pagination with retry and termination logic.
package crawler

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoMorePages is returned by a PageProvider when the source signals
// that no further listing pages exist. The engine treats it as a
// successful end of the crawl.
var ErrNoMorePages = errors.New("no more pages")

// TransientError wraps a provider failure that is worth retrying, such as
// the results table not being present yet or a navigation timeout.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient page error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError. Nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PageProvider renders one listing page and returns its HTML. The browser
// session behind it is stateful, so the engine never requests page N+1
// before page N has completed.
type PageProvider interface {
	// RenderPage returns the rendered HTML of the zero-based page index.
	// It returns ErrNoMorePages past the last page, a TransientError for
	// retryable conditions, and any other error for unrecoverable ones.
	RenderPage(ctx context.Context, page int) (string, error)

	// Close releases the underlying browser resources.
	Close(ctx context.Context) error
}
