// Package index maintains the persistent search index joining extracted
// document text with decision record metadata, and answers keyword plus
// date-range queries against it.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"

	"github.com/mlefevre/upc-decisions/internal/decisions"
	"github.com/mlefevre/upc-decisions/internal/extract"
	"github.com/mlefevre/upc-decisions/internal/metrics"
)

// Field names in the index. content is searchable only; the metadata
// fields are stored and returned with hits.
const (
	fieldContent  = "content"
	fieldRegistry = "registry"
	fieldParties  = "parties"
	fieldCourt    = "court"
	fieldAction   = "action"
	fieldDate     = "date"
	fieldRawDate  = "raw_date"
)

// buildMapping defines the index schema. The standard analyzer (lowercase
// + tokenize, no stemming) keeps queries literal: "injunction" matches
// "injunction", not a stem.
func buildMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false
	doc.AddFieldMappingsAt(fieldContent, content)

	meta := bleve.NewTextFieldMapping()
	meta.Analyzer = standard.Name
	for _, f := range []string{fieldRegistry, fieldParties, fieldCourt, fieldAction, fieldRawDate} {
		doc.AddFieldMappingsAt(f, meta)
	}

	date := bleve.NewDateTimeFieldMapping()
	doc.AddFieldMappingsAt(fieldDate, date)

	im.DefaultMapping = doc
	return im
}

// Stats summarizes one build run.
type Stats struct {
	Indexed        int `json:"indexed"`
	NoDocument     int `json:"no_document"`
	SkippedMissing int `json:"skipped_missing"`
	SkippedExtract int `json:"skipped_extract"`
}

// Builder writes index entries. It is the sole writer of the index
// directory; the query engine only ever opens it read-only.
type Builder struct {
	idx    bleve.Index
	logger *zap.Logger
}

// NewBuilder opens the index at path, creating it when absent.
func NewBuilder(path string, logger *zap.Logger) (*Builder, error) {
	idx, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &Builder{idx: idx, logger: logger}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open index %s: %w", path, openErr)
		}
		return idx, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create index parent dir: %w", err)
	}
	idx, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", path, err)
	}
	return idx, nil
}

// Close releases the index.
func (b *Builder) Close() error {
	return b.idx.Close()
}

// Build joins each record with its downloaded document (via the derived
// filename) and indexes the pair. Records without documents, missing
// files, and extraction failures are counted and skipped. Everything is
// staged in one batch committed at the end, so a failed build leaves the
// existing index untouched. Document IDs are the derived filenames, which
// makes rebuilding over a superset idempotent.
func (b *Builder) Build(ctx context.Context, records []decisions.Record, docsDir string) (Stats, error) {
	var stats Stats
	batch := b.idx.NewBatch()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("build canceled: %w", err)
		}
		if !rec.HasDocument() {
			stats.NoDocument++
			continue
		}
		filename := decisions.DocumentFilename(rec)
		path := filepath.Join(docsDir, filename)
		if _, err := os.Stat(path); err != nil {
			stats.SkippedMissing++
			continue
		}
		text, err := extract.Text(path)
		if err != nil {
			stats.SkippedExtract++
			b.logger.Warn("text extraction failed",
				zap.String("file", filename),
				zap.Error(err),
			)
			continue
		}
		if err := batch.Index(filename, entryFields(rec, text)); err != nil {
			return stats, fmt.Errorf("stage entry %s: %w", filename, err)
		}
		stats.Indexed++
	}

	if batch.Size() > 0 {
		if err := b.idx.Batch(batch); err != nil {
			return stats, fmt.Errorf("commit index batch: %w", err)
		}
	}
	metrics.DocumentsIndexed.Add(float64(stats.Indexed))
	b.logger.Info("index build finished",
		zap.Int("indexed", stats.Indexed),
		zap.Int("no_document", stats.NoDocument),
		zap.Int("skipped_missing", stats.SkippedMissing),
		zap.Int("skipped_extract", stats.SkippedExtract),
	)
	return stats, nil
}

// entryFields assembles the indexed document. A map keeps the unparseable
// date case simple: the field is omitted rather than indexed as zero time.
func entryFields(rec decisions.Record, text string) map[string]interface{} {
	fields := map[string]interface{}{
		fieldContent:  text,
		fieldRegistry: rec.Registry,
		fieldParties:  rec.Parties,
		fieldCourt:    rec.Court,
		fieldAction:   rec.ActionType,
		fieldRawDate:  rec.RawDate,
	}
	if !rec.Date.IsZero() {
		fields[fieldDate] = rec.Date.UTC().Format(time.RFC3339)
	}
	return fields
}
