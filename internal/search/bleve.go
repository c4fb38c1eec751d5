package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	unicodetokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/docindex/mcp-server/internal/searchindex"
)

// BatchSize is the number of entries submitted per bleve batch
const BatchSize = 100

// Analysis chain names stored in the index mapping
const (
	normalizeFilterName = "docindex_normalize"
	textAnalyzerName    = "docindex_text"
	exactAnalyzerName   = "docindex_exact"

	// pageKeyField holds the normalized page title as a single term
	pageKeyField = "page_key"
)

func init() {
	registry.RegisterTokenFilter(normalizeFilterName,
		func(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
			return normalizeFilter{}, nil
		})
}

// normalizeFilter applies the Scanner's normalization to every token, so
// both engines compare the same folded forms. No stop words are removed.
type normalizeFilter struct{}

func (normalizeFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, token := range input {
		token.Term = []byte(collapse(Normalize(string(token.Term))))
	}
	return input
}

// BleveEngine is a full-text engine backed by a bleve index of searchindex entries
type BleveEngine struct {
	index  bleve.Index
	closed atomic.Bool
}

// NewBleveEngine wraps an open bleve index
func NewBleveEngine(index bleve.Index) *BleveEngine {
	return &BleveEngine{index: index}
}

// IndexMapping returns the mapping used for searchindex entries
func IndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	if err := indexMapping.AddCustomAnalyzer(textAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetokenizer.Name,
		"token_filters": []string{normalizeFilterName},
	}); err != nil {
		panic(fmt.Sprintf("search: %s analyzer: %v", textAnalyzerName, err))
	}
	if err := indexMapping.AddCustomAnalyzer(exactAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{normalizeFilterName},
	}); err != nil {
		panic(fmt.Sprintf("search: %s analyzer: %v", exactAnalyzerName, err))
	}

	textField := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = textAnalyzerName
		return fm
	}

	entryMapping := bleve.NewDocumentMapping()

	// Searchable text
	for _, field := range []string{"title", "text", "breadcrumb", "keywords"} {
		entryMapping.AddFieldMappingsAt(field, textField())
	}

	pageKey := bleve.NewTextFieldMapping()
	pageKey.Name = pageKeyField
	pageKey.Analyzer = exactAnalyzerName
	pageKey.Store = false
	pageKey.IncludeInAll = false
	pageKey.IncludeTermVectors = false
	entryMapping.AddFieldMappingsAt("page", textField(), pageKey)

	// Exact-match fields used as filters
	for _, field := range []string{"location", "path", "anchor", "category"} {
		entryMapping.AddFieldMappingsAt(field, bleve.NewKeywordFieldMapping())
	}

	entryMapping.AddFieldMappingsAt("ordinal", bleve.NewNumericFieldMapping())
	entryMapping.AddFieldMappingsAt("token_count", bleve.NewNumericFieldMapping())
	entryMapping.AddFieldMappingsAt("id", bleve.NewKeywordFieldMapping())

	indexMapping.DefaultMapping = entryMapping
	return indexMapping
}

// BuildBleve indexes every entry of idx into a new bleve index at path.
// An empty path builds a memory-only index.
func BuildBleve(path string, idx *searchindex.Index) (*BleveEngine, error) {
	var (
		index bleve.Index
		err   error
	)
	if path == "" {
		index, err = bleve.NewMemOnly(IndexMapping())
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		index, err = bleve.New(path, IndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	entries := idx.Entries()
	batch := index.NewBatch()
	for i, entry := range entries {
		if err := batch.Index(entry.ID, entry); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to add entry %s to batch: %w", entry.ID, err)
		}

		if (i+1)%BatchSize == 0 {
			if err := index.Batch(batch); err != nil {
				index.Close()
				return nil, fmt.Errorf("failed to index batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to index final batch: %w", err)
		}
	}

	return NewBleveEngine(index), nil
}

// OpenBleve opens an index previously written by BuildBleve
func OpenBleve(path string) (*BleveEngine, error) {
	index, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return NewBleveEngine(index), nil
}

// queryTerms splits a normalized query at every rune the index tokenizer
// treats as a separator
func queryTerms(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
	seen := make(map[string]bool, len(fields))
	terms := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}

// buildQuery requires every query term to occur inside a title or text
// term, like Scanner's substring match. Phrases, whole terms, keywords and
// a prefix on the last term only add to the score: title matches rank
// above text matches, phrases above loose terms.
func buildQuery(q Query) (query.Query, bool) {
	text := collapse(Normalize(q.Text))
	terms := queryTerms(text)
	if len(terms) == 0 {
		return nil, false
	}

	field := func(qq interface {
		SetField(string)
		SetBoost(float64)
	}, name string, boost float64) {
		qq.SetField(name)
		qq.SetBoost(boost)
	}

	required := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		inTitle := bleve.NewWildcardQuery("*" + term + "*")
		field(inTitle, "title", scoreTextToken)
		inText := bleve.NewWildcardQuery("*" + term + "*")
		field(inText, "text", scoreTextToken)
		required = append(required, bleve.NewDisjunctionQuery(inTitle, inText))
	}
	must := []query.Query{bleve.NewConjunctionQuery(required...)}

	titlePhrase := bleve.NewMatchPhraseQuery(text)
	field(titlePhrase, "title", scoreTitlePhrase)
	textPhrase := bleve.NewMatchPhraseQuery(text)
	field(textPhrase, "text", scoreTextPhrase)

	titleTerms := bleve.NewMatchQuery(text)
	field(titleTerms, "title", scoreTitleToken)
	titleTerms.SetOperator(query.MatchQueryOperatorAnd)
	textTerms := bleve.NewMatchQuery(text)
	field(textTerms, "text", scoreTextToken)
	textTerms.SetOperator(query.MatchQueryOperatorAnd)

	keywords := bleve.NewMatchQuery(text)
	field(keywords, "keywords", scoreTextToken)

	should := []query.Query{titlePhrase, textPhrase, titleTerms, textTerms, keywords}

	if last := terms[len(terms)-1]; len([]rune(last)) >= 2 {
		titlePrefix := bleve.NewPrefixQuery(last)
		field(titlePrefix, "title", scoreTitleToken)
		textPrefix := bleve.NewPrefixQuery(last)
		field(textPrefix, "text", scoreTextToken)
		should = append(should, titlePrefix, textPrefix)
	}

	if q.Category != "" {
		category := bleve.NewTermQuery(q.Category)
		category.SetField("category")
		must = append(must, category)
	}
	if q.Page != "" {
		path := bleve.NewTermQuery(q.Page)
		path.SetField("path")
		title := bleve.NewTermQuery(collapse(Normalize(q.Page)))
		title.SetField(pageKeyField)
		must = append(must, bleve.NewDisjunctionQuery(path, title))
	}

	return query.NewBooleanQuery(must, should, nil), true
}

// Search implements Engine
func (e *BleveEngine) Search(ctx context.Context, q Query) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	result := &Result{Query: q.Text, Hits: []Hit{}}

	bq, ok := buildQuery(q)
	if !ok {
		return result, nil
	}

	size := q.Limit
	if size <= 0 {
		count, err := e.index.DocCount()
		if err != nil {
			return nil, fmt.Errorf("failed to count documents: %w", err)
		}
		size = int(count)
	}

	req := bleve.NewSearchRequestOptions(bq, size, 0, false)
	req.Fields = []string{"*"}
	req.IncludeLocations = true
	req.SortBy([]string{"-_score", "ordinal"})

	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	for _, hit := range res.Hits {
		h := Hit{Score: hit.Score}
		h.Record.Location, _ = hit.Fields["location"].(string)
		h.Record.Page, _ = hit.Fields["page"].(string)
		h.Record.Title, _ = hit.Fields["title"].(string)
		h.Record.Text, _ = hit.Fields["text"].(string)
		h.Record.Category, _ = hit.Fields["category"].(string)
		if ordinal, ok := hit.Fields["ordinal"].(float64); ok {
			h.Ordinal = int(ordinal)
		}
		for field := range hit.Locations {
			if field == "title" || field == "text" {
				h.Matched = append(h.Matched, field)
			}
		}
		if len(h.Matched) == 2 && h.Matched[0] == "text" {
			h.Matched[0], h.Matched[1] = "title", "text"
		}
		result.Hits = append(result.Hits, h)
	}
	result.Total = int(res.Total)

	return result, nil
}

// Count implements Engine
func (e *BleveEngine) Count() (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	return e.index.DocCount()
}

// Close implements Engine. Closing twice is a no-op.
func (e *BleveEngine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.index.Close()
}
