package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newDocServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	})
	mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/empty.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollyDownloaderFetchesBody(t *testing.T) {
	srv := newDocServer(t)
	d := NewCollyDownloader("upcd-test/1.0", 5*time.Second)

	body, err := d.Download(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4 fake"), body)
}

func TestCollyDownloaderReportsHTTPErrors(t *testing.T) {
	srv := newDocServer(t)
	d := NewCollyDownloader("upcd-test/1.0", 5*time.Second)

	_, err := d.Download(context.Background(), srv.URL+"/missing.pdf")
	require.Error(t, err)
}

func TestCollyDownloaderRejectsEmptyBody(t *testing.T) {
	srv := newDocServer(t)
	d := NewCollyDownloader("upcd-test/1.0", 5*time.Second)

	_, err := d.Download(context.Background(), srv.URL+"/empty.pdf")
	require.ErrorContains(t, err, "empty response body")
}

func TestCollyDownloaderCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewCollyDownloader("upcd-test/1.0", 5*time.Second)
	_, err := d.Download(ctx, "https://example.org/doc.pdf")
	require.ErrorIs(t, err, context.Canceled)
}
