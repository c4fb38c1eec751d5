package search

import (
	"context"
	"errors"

	"github.com/docindex/mcp-server/internal/searchindex"
)

// ErrClosed is returned by an engine used after Close
var ErrClosed = errors.New("search engine is closed")

// DefaultLimit is used by callers that don't bound their queries
const DefaultLimit = 10

// Query describes a search over the records of an index
type Query struct {
	Text     string `json:"text"`
	Limit    int    `json:"limit,omitempty"`    // <= 0 returns every match
	Category string `json:"category,omitempty"` // exact category filter
	Page     string `json:"page,omitempty"`     // page path ("api/") or page title filter
}

// Hit is a matching record with its relevance score
type Hit struct {
	Record  searchindex.Record `json:"record"`
	Ordinal int                `json:"ordinal"`
	Score   float64            `json:"score"`
	Matched []string           `json:"matched,omitempty"` // fields the query matched in
}

// Result is the ordered outcome of a query
type Result struct {
	Query string `json:"query"`
	Hits  []Hit  `json:"hits"`
	Total int    `json:"total"` // matches before the limit was applied
}

// Engine searches one immutable search index
type Engine interface {
	// Search returns matches ordered by relevance, then document order
	Search(ctx context.Context, q Query) (*Result, error)

	// Count returns the number of indexed records
	Count() (uint64, error)

	// Close releases the engine's resources
	Close() error
}
