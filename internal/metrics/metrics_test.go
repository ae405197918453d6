package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAreRegisteredAndUsable(t *testing.T) {
	before := testutil.ToFloat64(DocumentsFetched)
	DocumentsFetched.Inc()
	if got := testutil.ToFloat64(DocumentsFetched); got != before+1 {
		t.Errorf("expected DocumentsFetched to be %f, got %f", before+1, got)
	}

	before = testutil.ToFloat64(PagesScraped)
	PagesScraped.Inc()
	if got := testutil.ToFloat64(PagesScraped); got != before+1 {
		t.Errorf("expected PagesScraped to be %f, got %f", before+1, got)
	}
}
