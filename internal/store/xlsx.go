// Package store persists decision records in an xlsx workbook, the
// tabular interchange format consumed by the index builder. Writes are
// append-only: existing rows are never mutated or removed.
package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/mlefevre/upc-decisions/internal/decisions"
)

const sheetName = "Sheet1"

// Column headers, in sheet order. Kept stable so workbooks written by
// earlier runs keep loading.
var columns = []string{
	"Date",
	"Registry",
	"Full Details",
	"Court",
	"Type of action",
	"Parties",
	"UPC Document",
	"Page",
}

// Store is the xlsx-backed record store. It loads the workbook once at
// open and tracks seen record keys for deduplication across appends.
type Store struct {
	path string

	mu      sync.Mutex
	records []decisions.Record
	keys    map[string]bool
}

// Open loads the workbook at path, or starts an empty store when the
// file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		keys: make(map[string]bool),
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return s, nil
	}

	idx := headerIndex(rows[0])
	for _, row := range rows[1:] {
		rec := rowRecord(row, idx)
		if rec.Registry == "" && rec.RawDate == "" {
			continue
		}
		s.records = append(s.records, rec)
		s.keys[rec.Key()] = true
	}
	return s, nil
}

// Records returns the records loaded and appended so far, in row order.
func (s *Store) Records() []decisions.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]decisions.Record, len(s.records))
	copy(out, s.records)
	return out
}

// MaxPage returns the highest crawl page index recorded, or -1 when the
// store is empty. Crawls resume at MaxPage()+1.
func (s *Store) MaxPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := -1
	for _, rec := range s.records {
		if rec.Page > max {
			max = rec.Page
		}
	}
	return max
}

// Append writes records not seen before (by registry + document URL) as
// new rows at the end of the sheet and returns how many were kept.
// It satisfies the crawler's RecordSink.
func (s *Store) Append(ctx context.Context, records []decisions.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("append canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Seen keys are only committed after a successful save, so a failed
	// write leaves the records eligible for a later append.
	fresh := make([]decisions.Record, 0, len(records))
	batch := make(map[string]bool, len(records))
	for _, rec := range records {
		key := rec.Key()
		if s.keys[key] || batch[key] {
			continue
		}
		batch[key] = true
		fresh = append(fresh, rec)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	f, created, err := s.openWorkbook()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	next := len(s.records) + 2 // 1-based rows, header on row 1
	if created {
		if err := writeRow(f, 1, headerCells()); err != nil {
			return 0, err
		}
	}
	for i, rec := range fresh {
		if err := writeRow(f, next+i, recordCells(rec)); err != nil {
			return 0, err
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return 0, fmt.Errorf("save workbook %s: %w", s.path, err)
	}

	for _, rec := range fresh {
		s.keys[rec.Key()] = true
	}
	s.records = append(s.records, fresh...)
	return len(fresh), nil
}

func (s *Store) openWorkbook() (*excelize.File, bool, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return excelize.NewFile(), true, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	return f, false, nil
}

func writeRow(f *excelize.File, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func headerCells() []interface{} {
	cells := make([]interface{}, len(columns))
	for i, c := range columns {
		cells[i] = c
	}
	return cells
}

func recordCells(rec decisions.Record) []interface{} {
	return []interface{}{
		rec.DisplayDate(),
		rec.Registry,
		rec.FullDetailsURL,
		rec.Court,
		rec.ActionType,
		rec.Parties,
		rec.DocumentURL,
		rec.Page,
	}
}

// headerIndex maps known column names to their position, tolerating
// workbooks with reordered or extra columns.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return idx
}

func rowRecord(row []string, idx map[string]int) decisions.Record {
	get := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rec := decisions.Record{
		RawDate:        get("Date"),
		Registry:       get("Registry"),
		FullDetailsURL: get("Full Details"),
		Court:          get("Court"),
		ActionType:     get("Type of action"),
		Parties:        get("Parties"),
		DocumentURL:    get("UPC Document"),
	}
	if dt, err := decisions.ParseDisplayDate(rec.RawDate); err == nil {
		rec.Date = dt
	}
	if page, err := strconv.Atoi(get("Page")); err == nil {
		rec.Page = page
	}
	return rec
}
