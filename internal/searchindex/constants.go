package searchindex

const (
	// CategoryPage marks a paragraph-level record of a page
	CategoryPage = "page"

	// CategorySection marks a heading record that owns an anchor
	CategorySection = "section"

	// DefaultGlobal is the variable name the documentation generator assigns the index to
	DefaultGlobal = "documenterSearchIndex"

	// DocsKey is the single key of the index object
	DocsKey = "docs"

	// CharsPerToken is the approximation for token estimation
	CharsPerToken = 4

	// MaxKeywords caps the keywords extracted per entry
	MaxKeywords = 10

	// IndexSchemaVersion increments when the full-text mapping or entry metadata changes
	// v1: title/text only, v2: keyword fields, ordinal and breadcrumb,
	// v3: stop-word free normalizing analyzer and exact page key
	IndexSchemaVersion = 3
)
