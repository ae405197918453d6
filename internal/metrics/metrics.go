// Package metrics registers the Prometheus counters exposed by the serve command.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesScraped tracks listing pages successfully rendered and parsed.
	PagesScraped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upcd_pages_scraped_total",
		Help: "The total number of listing pages scraped.",
	})
	// PageErrors tracks listing pages that failed after retries.
	PageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upcd_page_errors_total",
		Help: "The total number of listing pages that failed to load.",
	})
	// RecordsExtracted tracks decision records parsed from listing pages.
	RecordsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upcd_records_extracted_total",
		Help: "The total number of decision records extracted.",
	})
	// DocumentsFetched tracks documents downloaded by the fetch pool.
	DocumentsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upcd_documents_fetched_total",
		Help: "The total number of documents downloaded.",
	})
	// FetchFailures tracks fetch tasks that ended in a failed state.
	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upcd_fetch_failures_total",
		Help: "The total number of document downloads that failed.",
	})
	// DocumentsIndexed tracks documents written into the search index.
	DocumentsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "upcd_documents_indexed_total",
		Help: "The total number of documents added to the search index.",
	})
)
