package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mlefevre/upc-decisions/internal/decisions"
)

// fullDetailsLabel is the link text the registry cell mixes into the case
// numbers; it is stripped from the registry value and used to locate the
// details URL.
const fullDetailsLabel = "Full Details"

// minRowCells is the number of columns a well-formed decisions row carries.
const minRowCells = 6

// Extractor parses rendered listing pages into decision records.
// It is stateless; one instance serves the whole crawl.
type Extractor struct {
	base *url.URL
}

// NewExtractor builds an extractor resolving relative links against baseURL.
func NewExtractor(baseURL string) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Extractor{base: base}, nil
}

// Extract parses every row of the decisions table in the rendered HTML.
// Rows with fewer than the expected cells are skipped; a page without the
// table yields zero records, which the engine interprets as an empty page.
func (e *Extractor) Extract(html string, page int) ([]decisions.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page %d html: %w", page, err)
	}

	var records []decisions.Record
	doc.Find(tableSelector).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < minRowCells {
			return
		}
		records = append(records, e.extractRow(cells, page))
	})
	return records, nil
}

func (e *Extractor) extractRow(cells *goquery.Selection, page int) decisions.Record {
	rec := decisions.Record{
		RawDate:    cellText(cells.Eq(0)),
		Court:      cellText(cells.Eq(2)),
		ActionType: cellText(cells.Eq(3)),
		Parties:    cellText(cells.Eq(4)),
		Page:       page,
	}
	if dt, err := decisions.ParseSiteDate(rec.RawDate); err == nil {
		rec.Date = dt
	}

	rec.Registry, rec.FullDetailsURL = e.extractRegistry(cells.Eq(1))
	rec.DocumentURL = e.firstHref(cells.Eq(cells.Length() - 1))
	return rec
}

// extractRegistry splits the registry cell into case numbers and the
// "Full Details" link it also contains.
func (e *Extractor) extractRegistry(cell *goquery.Selection) (registry, detailsURL string) {
	var lines []string
	for _, line := range strings.Split(cell.Text(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, fullDetailsLabel) {
			continue
		}
		lines = append(lines, line)
	}
	registry = strings.Join(lines, "\n")

	cell.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != fullDetailsLabel {
			return true
		}
		if href, ok := a.Attr("href"); ok {
			detailsURL = e.resolve(href)
		}
		return false
	})
	return registry, detailsURL
}

func (e *Extractor) firstHref(cell *goquery.Selection) string {
	href, ok := cell.Find("a").First().Attr("href")
	if !ok {
		return ""
	}
	return e.resolve(href)
}

func (e *Extractor) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return strings.TrimSpace(href)
	}
	return e.base.ResolveReference(ref).String()
}

func cellText(cell *goquery.Selection) string {
	return strings.TrimSpace(cell.Text())
}
