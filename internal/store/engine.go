package store

import (
	"context"
	"strings"

	"github.com/docindex/mcp-server/internal/search"
	"github.com/docindex/mcp-server/internal/searchindex"
)

// LikeEngine serves search.Engine queries from an exported database with
// SearchLike. Matching is a phrase substring; every hit scores the same and
// comes back in document order.
type LikeEngine struct {
	store *Store
}

// NewLikeEngine wraps an open store
func NewLikeEngine(s *Store) *LikeEngine {
	return &LikeEngine{store: s}
}

// Search implements search.Engine
func (e *LikeEngine) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	result := &search.Result{Query: q.Text, Hits: []search.Hit{}}

	matches, err := e.store.SearchLike(ctx, q.Text, 0)
	if err != nil {
		return nil, err
	}

	phrase := strings.ToLower(strings.TrimSpace(q.Text))
	page := normalizeTitle(q.Page)
	for _, m := range matches {
		if q.Category != "" && m.Record.Category != q.Category {
			continue
		}
		if q.Page != "" {
			path, _ := searchindex.SplitLocation(m.Record.Location)
			if path != q.Page && normalizeTitle(m.Record.Page) != page {
				continue
			}
		}

		hit := search.Hit{Record: m.Record, Ordinal: m.Ordinal, Score: 1}
		if strings.Contains(strings.ToLower(m.Record.Title), phrase) {
			hit.Matched = append(hit.Matched, "title")
		}
		if strings.Contains(strings.ToLower(m.Record.Text), phrase) {
			hit.Matched = append(hit.Matched, "text")
		}
		result.Hits = append(result.Hits, hit)
	}

	result.Total = len(result.Hits)
	if q.Limit > 0 && len(result.Hits) > q.Limit {
		result.Hits = result.Hits[:q.Limit]
	}
	return result, nil
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(search.Normalize(s)), " ")
}

// Count implements search.Engine
func (e *LikeEngine) Count() (uint64, error) {
	meta, err := e.store.Meta(context.Background())
	if err != nil {
		return 0, err
	}
	return uint64(meta.Records), nil
}

// Close implements search.Engine and closes the store
func (e *LikeEngine) Close() error {
	return e.store.Close()
}
