// Package decisions defines the record types shared by the crawler, the
// document fetcher, the tabular store, and the search index.
package decisions

import (
	"strings"
	"time"
)

// SiteDateLayout is the date format used by the decisions table ("2 January 2006").
const SiteDateLayout = "2 January 2006"

// DisplayDateLayout is the format records carry in the tabular store.
const DisplayDateLayout = "02/01/2006"

// Record is one parsed decision/order row from the source table.
// Records are immutable once extracted; Registry is the identity key.
type Record struct {
	// Date is the decision date. Zero when the site value could not be
	// parsed, in which case RawDate holds the original cell text.
	Date    time.Time
	RawDate string

	// Registry holds the case number(s), newline separated when the row
	// lists several.
	Registry string

	FullDetailsURL string
	Court          string
	ActionType     string
	Parties        string

	// DocumentURL links the decision document (PDF). Empty when the row
	// carries no document.
	DocumentURL string

	// Page is the zero-based index of the listing page the record was
	// scraped from.
	Page int
}

// ParseSiteDate parses a date in the table's "2 January 2006" format.
func ParseSiteDate(raw string) (time.Time, error) {
	return time.Parse(SiteDateLayout, strings.TrimSpace(raw))
}

// ParseDisplayDate parses a DD/MM/YYYY date as stored in the tabular store.
func ParseDisplayDate(raw string) (time.Time, error) {
	return time.Parse(DisplayDateLayout, strings.TrimSpace(raw))
}

// DisplayDate renders the record date for the tabular store. Unparseable
// dates round-trip as the raw cell text.
func (r Record) DisplayDate() string {
	if r.Date.IsZero() {
		return r.RawDate
	}
	return r.Date.Format(DisplayDateLayout)
}

// Key identifies a record for deduplication. The site occasionally lists
// the same registry number with distinct documents (procedural orders), so
// the document URL is part of the key.
func (r Record) Key() string {
	return r.Registry + "\x00" + r.DocumentURL
}

// HasDocument reports whether the record links a downloadable document.
func (r Record) HasDocument() bool {
	return strings.TrimSpace(r.DocumentURL) != ""
}
