package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"meddoc/internal/index"
	"meddoc/internal/slug"
)

// Indexed field names.
const (
	FieldText       = "text"
	FieldDocType    = "doc_type"
	FieldDeviceSlug = "device_slug"
	FieldCategory   = "category"
	FieldPath       = "path"
)

const (
	defaultLimit = 10
	// foldedAnalyzer tokenizes without English stop words, which would
	// swallow folded Vietnamese syllables such as "do" or "to".
	foldedAnalyzer = "folded"
)

// Hit is one search result.
type Hit struct {
	RecordID   int64   `json:"record_id"`
	Path       string  `json:"path"`
	DocType    string  `json:"doc_type"`
	DeviceSlug string  `json:"device_slug"`
	Score      float64 `json:"score"`
}

// Index wraps a bleve index of confirmed records.
type Index struct {
	idx bleve.Index
}

// CreateIndexMapping returns the mapping for record documents.
func CreateIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()
	if err := indexMapping.AddCustomAnalyzer(foldedAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicodetokenizer.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = foldedAnalyzer
	docMapping.AddFieldMappingsAt(FieldText, textField)

	for _, name := range []string{FieldDocType, FieldDeviceSlug, FieldCategory} {
		field := bleve.NewTextFieldMapping()
		field.Analyzer = keyword.Name
		field.Store = true
		docMapping.AddFieldMappingsAt(name, field)
	}

	pathField := bleve.NewTextFieldMapping()
	pathField.Index = false
	pathField.Store = true
	docMapping.AddFieldMappingsAt(FieldPath, pathField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping, nil
}

// Open opens the index at path, creating it when absent.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Index{idx: idx}, nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create search index dir: %w", err)
	}
	m, err := CreateIndexMapping()
	if err != nil {
		return nil, err
	}
	idx, err = bleve.New(path, m)
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// OpenMemory returns an index that lives only in memory.
func OpenMemory() (*Index, error) {
	m, err := CreateIndexMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Close releases the index.
func (i *Index) Close() error {
	if i == nil || i.idx == nil {
		return nil
	}
	return i.idx.Close()
}

// Put indexes rec when confirmed and removes it otherwise.
func (i *Index) Put(rec index.Record) error {
	id := docID(rec.ID)
	if !rec.Confirmed {
		return i.idx.Delete(id)
	}
	if err := i.idx.Index(id, document(rec)); err != nil {
		return fmt.Errorf("index record %d: %w", rec.ID, err)
	}
	return nil
}

// Remove drops a record from the index.
func (i *Index) Remove(id int64) error {
	return i.idx.Delete(docID(id))
}

// Rebuild replaces the contents of the index with records.
func (i *Index) Rebuild(ctx context.Context, records []index.Record) (int, error) {
	count, err := i.idx.DocCount()
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	if count > 0 {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
		res, err := i.idx.SearchInContext(ctx, req)
		if err != nil {
			return 0, fmt.Errorf("list documents: %w", err)
		}
		batch := i.idx.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := i.idx.Batch(batch); err != nil {
			return 0, fmt.Errorf("clear index: %w", err)
		}
	}

	batch := i.idx.NewBatch()
	indexed := 0
	for _, rec := range records {
		if !rec.Confirmed {
			continue
		}
		if err := batch.Index(docID(rec.ID), document(rec)); err != nil {
			return indexed, fmt.Errorf("batch record %d: %w", rec.ID, err)
		}
		indexed++
	}
	if err := i.idx.Batch(batch); err != nil {
		return 0, fmt.Errorf("write batch: %w", err)
	}
	return indexed, nil
}

// Search runs an operator query. A recognized doc type keyword becomes a
// filter; the rest is matched against file name, vendor, model and summary
// with diacritics folded.
func (i *Index) Search(ctx context.Context, raw string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	docType, text := ParseQuery(raw)

	var must []query.Query
	if docType != "" {
		tq := bleve.NewTermQuery(docType)
		tq.SetField(FieldDocType)
		must = append(must, tq)
	}
	if folded := foldText(text); folded != "" {
		mq := bleve.NewMatchQuery(folded)
		mq.SetField(FieldText)
		mq.SetOperator(query.MatchQueryOperatorAnd)
		must = append(must, mq)
	}
	var q query.Query
	switch len(must) {
	case 0:
		q = bleve.NewMatchAllQuery()
	case 1:
		q = must[0]
	default:
		q = bleve.NewConjunctionQuery(must...)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{FieldPath, FieldDocType, FieldDeviceSlug}
	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{
			RecordID:   id,
			Path:       stringField(h.Fields, FieldPath),
			DocType:    stringField(h.Fields, FieldDocType),
			DeviceSlug: stringField(h.Fields, FieldDeviceSlug),
			Score:      h.Score,
		})
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	return i.idx.DocCount()
}

func document(rec index.Record) map[string]any {
	name := strings.TrimSuffix(filepath.Base(rec.Path), filepath.Ext(rec.Path))
	return map[string]any{
		FieldText:       foldText(strings.Join([]string{name, rec.Vendor, rec.Model, rec.DeviceSlug, rec.Summary}, " ")),
		FieldDocType:    rec.DocType,
		FieldDeviceSlug: rec.DeviceSlug,
		FieldCategory:   rec.CategorySlug,
		FieldPath:       rec.Path,
	}
}

// foldText strips diacritics and punctuation so "máy xquang" matches
// "May X-Quang".
func foldText(text string) string {
	return strings.ReplaceAll(slug.Normalize(text), "_", " ")
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func stringField(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
