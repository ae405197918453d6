package decisions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSiteDate(t *testing.T) {
	dt, err := ParseSiteDate("4 July 2023")
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, time.July, 4, 0, 0, 0, 0, time.UTC), dt)

	dt, err = ParseSiteDate("  15 January 2024 ")
	require.NoError(t, err)
	require.Equal(t, 15, dt.Day())

	_, err = ParseSiteDate("July 4, 2023")
	require.Error(t, err)
}

func TestParseDisplayDate(t *testing.T) {
	dt, err := ParseDisplayDate("04/07/2023")
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, time.July, 4, 0, 0, 0, 0, time.UTC), dt)

	_, err = ParseDisplayDate("2023-07-04")
	require.Error(t, err)
}

func TestDisplayDateRoundTrip(t *testing.T) {
	rec := Record{Date: time.Date(2023, time.July, 4, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, "04/07/2023", rec.DisplayDate())

	back, err := ParseDisplayDate(rec.DisplayDate())
	require.NoError(t, err)
	require.True(t, back.Equal(rec.Date))
}

func TestDisplayDateFallsBackToRawText(t *testing.T) {
	rec := Record{RawDate: "sometime in 2023"}
	require.Equal(t, "sometime in 2023", rec.DisplayDate())
}

func TestKeyIncludesDocumentURL(t *testing.T) {
	a := Record{Registry: "CC_1/2023", DocumentURL: "https://example.org/a.pdf"}
	b := Record{Registry: "CC_1/2023", DocumentURL: "https://example.org/b.pdf"}
	c := Record{Registry: "CC_1/2023", DocumentURL: "https://example.org/a.pdf"}

	require.NotEqual(t, a.Key(), b.Key())
	require.Equal(t, a.Key(), c.Key())
}

func TestHasDocument(t *testing.T) {
	require.True(t, Record{DocumentURL: "https://example.org/a.pdf"}.HasDocument())
	require.False(t, Record{}.HasDocument())
	require.False(t, Record{DocumentURL: "   "}.HasDocument())
}
