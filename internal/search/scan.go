package search

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/docindex/mcp-server/internal/searchindex"
)

// Relevance weights used by Scanner
const (
	scoreTitleEquals  = 10
	scoreTitlePhrase  = 6
	scoreTextPhrase   = 3
	scoreTitleToken   = 2
	scoreTextToken    = 1
	scoreSectionBoost = 1
)

type scanEntry struct {
	record searchindex.Record
	title  string
	text   string
}

// Scanner is an in-memory engine doing a linear, case-insensitive scan of
// titles and texts. It matches the whole query as a substring, or every
// query token as a substring.
type Scanner struct {
	entries []scanEntry
	closed  atomic.Bool
}

// NewScanner prepares normalized copies of every record of idx
func NewScanner(idx *searchindex.Index) *Scanner {
	s := &Scanner{entries: make([]scanEntry, idx.Len())}
	for n := 0; n < idx.Len(); n++ {
		rec := idx.At(n)
		s.entries[n] = scanEntry{
			record: rec,
			title:  collapse(Normalize(rec.Title)),
			text:   collapse(Normalize(rec.Text)),
		}
	}
	return s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Search implements Engine
func (s *Scanner) Search(ctx context.Context, q Query) (*Result, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	result := &Result{Query: q.Text, Hits: []Hit{}}

	phrase := collapse(Normalize(q.Text))
	if phrase == "" {
		return result, nil
	}
	tokens := Tokenize(q.Text)
	page := collapse(Normalize(q.Page))

	for n, entry := range s.entries {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if q.Category != "" && entry.record.Category != q.Category {
			continue
		}
		if page != "" && !matchesPage(entry, q.Page, page) {
			continue
		}

		if hit, ok := score(entry, phrase, tokens); ok {
			hit.Ordinal = n
			result.Hits = append(result.Hits, hit)
		}
	}

	// input is in document order, so a stable sort keeps it for equal scores
	sort.SliceStable(result.Hits, func(i, j int) bool {
		return result.Hits[i].Score > result.Hits[j].Score
	})

	result.Total = len(result.Hits)
	if q.Limit > 0 && len(result.Hits) > q.Limit {
		result.Hits = result.Hits[:q.Limit]
	}
	return result, nil
}

func matchesPage(entry scanEntry, raw, normalized string) bool {
	path, _ := searchindex.SplitLocation(entry.record.Location)
	return path == raw || collapse(Normalize(entry.record.Page)) == normalized
}

func score(entry scanEntry, phrase string, tokens []string) (Hit, bool) {
	var total float64
	inTitle, inText := false, false

	phraseTitle := strings.Contains(entry.title, phrase)
	phraseText := strings.Contains(entry.text, phrase)

	if entry.title == phrase {
		total += scoreTitleEquals
	}
	if phraseTitle {
		total += scoreTitlePhrase
		inTitle = true
	}
	if phraseText {
		total += scoreTextPhrase
		inText = true
	}

	allTokens := true
	for _, tok := range tokens {
		tTitle := strings.Contains(entry.title, tok)
		tText := strings.Contains(entry.text, tok)
		if tTitle {
			total += scoreTitleToken
			inTitle = true
		}
		if tText {
			total += scoreTextToken
			inText = true
		}
		if !tTitle && !tText {
			allTokens = false
		}
	}

	if !phraseTitle && !phraseText && !allTokens {
		return Hit{}, false
	}

	if entry.record.Category == searchindex.CategorySection {
		total += scoreSectionBoost
	}

	var matched []string
	if inTitle {
		matched = append(matched, "title")
	}
	if inText {
		matched = append(matched, "text")
	}

	return Hit{Record: entry.record, Score: total, Matched: matched}, true
}

// Count implements Engine
func (s *Scanner) Count() (uint64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return uint64(len(s.entries)), nil
}

// Close implements Engine
func (s *Scanner) Close() error {
	s.closed.Store(true)
	return nil
}
