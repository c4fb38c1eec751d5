package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docindex/mcp-server/internal/search"
	"github.com/docindex/mcp-server/internal/searchindex"
)

const fixture = "../searchindex/testdata/search_index.js"

func loadFixture(t *testing.T) *searchindex.Index {
	t.Helper()
	idx, err := searchindex.ParseFile(fixture)
	require.NoError(t, err)
	return idx
}

func ordinals(hits []search.Hit) []int {
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Ordinal)
	}
	return out
}

func TestScanner_RelevanceOrder(t *testing.T) {
	scanner := search.NewScanner(loadFixture(t))

	result, err := scanner.Search(context.Background(), search.Query{Text: "weight"})
	require.NoError(t, err)

	// title+text, section title, then text-only matches in document order
	assert.Equal(t, []int{5, 4, 7, 10}, ordinals(result.Hits))
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, []string{"title", "text"}, result.Hits[0].Matched)
	assert.Equal(t, []string{"title"}, result.Hits[1].Matched)
	assert.Equal(t, []string{"text"}, result.Hits[2].Matched)
	assert.Greater(t, result.Hits[0].Score, result.Hits[1].Score)
	assert.Equal(t, result.Hits[2].Score, result.Hits[3].Score)
}

func TestScanner_Queries(t *testing.T) {
	scanner := search.NewScanner(loadFixture(t))

	tests := []struct {
		name  string
		query search.Query
		want  []int
	}{
		{
			name:  "case insensitive",
			query: search.Query{Text: "REMOVE EVERY"},
			want:  []int{8},
		},
		{
			name:  "all tokens required when the phrase is absent",
			query: search.Query{Text: "reset tally"},
			want:  []int{8},
		},
		{
			name:  "exact title ranks first",
			query: search.Query{Text: "api"},
			want:  []int{6},
		},
		{
			name:  "compatibility forms are folded",
			query: search.Query{Text: "µ"}, // micro sign, text uses Greek mu
			want:  []int{5},
		},
		{
			name:  "category filter",
			query: search.Query{Text: "tally", Category: searchindex.CategorySection},
			want:  []int{9},
		},
		{
			name:  "page filter by path",
			query: search.Query{Text: "tally", Page: "api/"},
			want:  []int{7, 8},
		},
		{
			name:  "page filter by title",
			query: search.Query{Text: "tally", Page: "api"},
			want:  []int{7, 8},
		},
		{
			name:  "whitespace query",
			query: search.Query{Text: "   "},
			want:  []int{},
		},
		{
			name:  "no match",
			query: search.Query{Text: "posterior"},
			want:  []int{},
		},
		{
			name:  "phrase spanning a line break",
			query: search.Query{Text: "pkg.add(\"tally\") using"},
			want:  []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := scanner.Search(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ordinals(result.Hits))
		})
	}
}

func TestScanner_Limit(t *testing.T) {
	scanner := search.NewScanner(loadFixture(t))

	all, err := scanner.Search(context.Background(), search.Query{Text: "tally"})
	require.NoError(t, err)
	require.Greater(t, len(all.Hits), 2)

	limited, err := scanner.Search(context.Background(), search.Query{Text: "tally", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited.Hits, 2)
	assert.Equal(t, all.Total, limited.Total)
	assert.Equal(t, all.Hits[:2], limited.Hits)
}

func TestScanner_Cancelled(t *testing.T) {
	scanner := search.NewScanner(loadFixture(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scanner.Search(ctx, search.Query{Text: "tally"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_Count(t *testing.T) {
	scanner := search.NewScanner(loadFixture(t))
	count, err := scanner.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(12), count)
	assert.NoError(t, scanner.Close())

	_, err = scanner.Count()
	assert.ErrorIs(t, err, search.ErrClosed)
	_, err = scanner.Search(context.Background(), search.Query{Text: "tally"})
	assert.ErrorIs(t, err, search.ErrClosed)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"weighted", "counts"}, search.Tokenize("  Weighted COUNTS weighted "))
	assert.Equal(t, []string{"yi"}, search.Tokenize("Yᵢ"))
	assert.Empty(t, search.Tokenize(""))
}
