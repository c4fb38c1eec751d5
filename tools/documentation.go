package tools

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docindex/mcp-server/internal/fetch"
	"github.com/docindex/mcp-server/internal/search"
	"github.com/docindex/mcp-server/internal/searchindex"
)

// maxResultsLimit caps max_results regardless of configuration
const maxResultsLimit = 100

// SearchResult is one matching search record
type SearchResult struct {
	Location   string   `json:"location"`
	URL        string   `json:"url,omitempty"`
	Page       string   `json:"page"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Category   string   `json:"category"`
	Breadcrumb string   `json:"breadcrumb"`
	Ordinal    int      `json:"ordinal"`
	Score      float64  `json:"score"`
	Matched    []string `json:"matched,omitempty"`
}

// SearchDocumentationInput defines input for search_documentation tool
type SearchDocumentationInput struct {
	Query      string `json:"query" jsonschema:"Text matched against section titles and excerpts"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (optional, defaults to the configured max_results, at most 100)"`
	Category   string `json:"category,omitempty" jsonschema:"Only return records of this category, e.g. page or section (optional)"`
	Page       string `json:"page,omitempty" jsonschema:"Only return records of this page, given as location path or page title (optional)"`
}

// SearchDocumentationOutput defines output for search_documentation tool
type SearchDocumentationOutput struct {
	Results   []SearchResult `json:"results"`
	Query     string         `json:"query"`
	TotalHits int            `json:"total_hits"`
	Engine    string         `json:"engine"`
}

// ListPagesInput defines input for list_pages tool
type ListPagesInput struct{}

// ListPagesOutput defines output for list_pages tool
type ListPagesOutput struct {
	Pages []searchindex.PageSummary `json:"pages"`
	Total int                       `json:"total"`
}

// GetPageInput defines input for get_page tool
type GetPageInput struct {
	Location string `json:"location" jsonschema:"Page location, e.g. guide/ or guide/#Section (the anchor is ignored); empty for the home page"`
}

// GetPageOutput defines output for get_page tool
type GetPageOutput struct {
	Location string               `json:"location"`
	URL      string               `json:"url,omitempty"`
	Title    string               `json:"title"`
	Sections []string             `json:"sections"`
	Records  []searchindex.Record `json:"records"`
}

// ValidateSearchIndexInput defines input for validate_search_index tool
type ValidateSearchIndexInput struct {
	Strict bool `json:"strict,omitempty" jsonschema:"Reject empty locations, including the home page (optional)"`
	Schema bool `json:"schema,omitempty" jsonschema:"Also validate against the JSON Schema of the asset (optional)"`
}

// ValidateSearchIndexOutput defines output for validate_search_index tool
type ValidateSearchIndexOutput struct {
	Report searchindex.Report `json:"report"`
	Source string             `json:"source"`
	Digest string             `json:"digest"`
}

// RefreshDocumentationIndexInput defines input for refresh_documentation_index tool
type RefreshDocumentationIndexInput struct {
	Force bool   `json:"force,omitempty" jsonschema:"Re-download even if the cache is fresh (optional, defaults to false)"`
	URL   string `json:"url,omitempty" jsonschema:"search_index.js URL to download instead of the configured source_url (optional)"`
}

// RefreshDocumentationIndexOutput defines output for refresh_documentation_index tool
type RefreshDocumentationIndexOutput struct {
	Updated        bool      `json:"updated"`
	LastUpdate     time.Time `json:"last_update"`
	RecordsIndexed int       `json:"records_indexed"`
	Errors         int       `json:"errors"`
	Warnings       int       `json:"warnings"`
	Message        string    `json:"message"`
}

// SearchDocumentation searches the loaded search index
func SearchDocumentation(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentationInput) (*mcp.CallToolResult, SearchDocumentationOutput, error) {
	snap, release, err := currentSnapshot()
	if err != nil {
		return nil, SearchDocumentationOutput{}, err
	}
	defer release()

	limit := input.MaxResults
	if limit <= 0 {
		limit = settings.MaxResults
	}
	if limit > maxResultsLimit {
		limit = maxResultsLimit
	}

	result, err := snap.engine.Search(ctx, search.Query{
		Text:     input.Query,
		Limit:    limit,
		Category: input.Category,
		Page:     input.Page,
	})
	if err != nil {
		return nil, SearchDocumentationOutput{}, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		rec := hit.Record
		results = append(results, SearchResult{
			Location:   rec.Location,
			URL:        siteURL(snap, rec.Location),
			Page:       rec.Page,
			Title:      rec.Title,
			Text:       rec.Text,
			Category:   rec.Category,
			Breadcrumb: searchindex.Breadcrumb(rec.Page, rec.Title),
			Ordinal:    hit.Ordinal,
			Score:      hit.Score,
			Matched:    hit.Matched,
		})
	}

	return nil, SearchDocumentationOutput{
		Results:   results,
		Query:     input.Query,
		TotalHits: result.Total,
		Engine:    settings.Engine,
	}, nil
}

// ListPages lists the pages of the documentation site
func ListPages(ctx context.Context, req *mcp.CallToolRequest, input ListPagesInput) (*mcp.CallToolResult, ListPagesOutput, error) {
	snap, release, err := currentSnapshot()
	if err != nil {
		return nil, ListPagesOutput{}, err
	}
	defer release()

	pages := snap.index.Pages()
	return nil, ListPagesOutput{Pages: pages, Total: len(pages)}, nil
}

// GetPage returns every record of one page in document order
func GetPage(ctx context.Context, req *mcp.CallToolRequest, input GetPageInput) (*mcp.CallToolResult, GetPageOutput, error) {
	snap, release, err := currentSnapshot()
	if err != nil {
		return nil, GetPageOutput{}, err
	}
	defer release()

	path, _ := searchindex.SplitLocation(strings.TrimSpace(input.Location))
	records := snap.index.Page(path)
	if len(records) == 0 {
		return nil, GetPageOutput{}, fmt.Errorf("page %q not found in the search index, use list_pages to see available pages", path)
	}

	output := GetPageOutput{
		Location: path,
		URL:      siteURL(snap, path),
		Title:    records[0].Page,
		Sections: []string{},
		Records:  records,
	}
	for _, rec := range records {
		if _, anchor := searchindex.SplitLocation(rec.Location); anchor != "" && rec.Category == searchindex.CategorySection {
			output.Sections = append(output.Sections, anchor)
		}
	}

	return nil, output, nil
}

// ValidateSearchIndex checks the loaded search index
func ValidateSearchIndex(ctx context.Context, req *mcp.CallToolRequest, input ValidateSearchIndexInput) (*mcp.CallToolResult, ValidateSearchIndexOutput, error) {
	snap, release, err := currentSnapshot()
	if err != nil {
		return nil, ValidateSearchIndexOutput{}, err
	}
	defer release()

	report := searchindex.Validate(snap.index, searchindex.ValidateOptions{StrictLocation: input.Strict})

	if input.Schema {
		data, err := snap.index.Bytes(searchindex.EncodeOptions{Format: searchindex.FormatJS})
		if err != nil {
			return nil, ValidateSearchIndexOutput{}, fmt.Errorf("failed to encode index: %w", err)
		}
		issues, err := searchindex.ValidateSchema(data)
		if err != nil {
			return nil, ValidateSearchIndexOutput{}, fmt.Errorf("schema validation failed: %w", err)
		}
		report.Add(issues...)
	}

	return nil, ValidateSearchIndexOutput{
		Report: report,
		Source: snap.source,
		Digest: snap.index.Digest(),
	}, nil
}

// RefreshDocumentationIndex downloads and re-indexes the documentation
func RefreshDocumentationIndex(ctx context.Context, req *mcp.CallToolRequest, input RefreshDocumentationIndexInput) (*mcp.CallToolResult, RefreshDocumentationIndexOutput, error) {
	output := RefreshDocumentationIndexOutput{}

	result, err := refreshDocumentationIndex(ctx, input.Force, input.URL)
	if err != nil {
		return nil, output, fmt.Errorf("refresh failed: %w", err)
	}

	if !result.Updated {
		last, _ := fetch.LastUpdate(docsPath())
		output.LastUpdate = last
		output.Message = fmt.Sprintf("Cache is fresh (last updated: %s)", last.Format(time.RFC3339))
		return nil, output, nil
	}

	output.Updated = true
	output.LastUpdate = time.Now()
	output.RecordsIndexed = result.Records
	output.Errors = len(result.Report.Errors)
	output.Warnings = len(result.Report.Warnings)
	output.Message = fmt.Sprintf("Documentation refreshed successfully, %d records indexed. %s",
		result.Records, result.Report.Summary)

	return nil, output, nil
}

// siteURL resolves a location against the site the asset was published
// on. Documenter writes search_index.js at the site root.
func siteURL(snap *snapshot, location string) string {
	base := settings.SourceURL
	if strings.HasPrefix(snap.source, "http://") || strings.HasPrefix(snap.source, "https://") {
		base = snap.source
	}
	if base == "" {
		return ""
	}
	i := strings.LastIndex(base, "/")
	return base[:i+1] + location
}

// RegisterDocSearchTools initializes the index and registers the tools
func RegisterDocSearchTools(server *mcp.Server) error {
	if err := InitializeDocSearch(); err != nil {
		log.Printf("Warning: Documentation search initialization failed: %v", err)
		log.Printf("Documentation search will attempt to initialize on first use")
	}

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_documentation",
			Description: "Search the documentation search index. Returns matching records (location, page, section title, excerpt) best first.",
		},
		SearchDocumentation,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_pages",
			Description: "List every documentation page with its title, record count and section anchors.",
		},
		ListPages,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_page",
			Description: "Return all search records of one documentation page in document order.",
		},
		GetPage,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "validate_search_index",
			Description: "Validate the loaded search index: non-empty fields, known categories, duplicated blocks and per-page record order.",
		},
		ValidateSearchIndex,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "refresh_documentation_index",
			Description: fmt.Sprintf("Re-download and re-index the documentation search index (cache considered fresh for %v)", settings.CacheTTL),
		},
		RefreshDocumentationIndex,
	)

	return nil
}
