package searchindex

import "fmt"

// Severity of a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes reported by Validate, ValidateSchema and anchor checks
const (
	CodeEmptyCollection   = "EMPTY_COLLECTION"
	CodeEmptyField        = "EMPTY_FIELD"
	CodeUnknownCategory   = "UNKNOWN_CATEGORY"
	CodeSectionNoAnchor   = "SECTION_WITHOUT_ANCHOR"
	CodeDuplicateRecord   = "DUPLICATE_RECORD"
	CodePageNotContiguous = "PAGE_NOT_CONTIGUOUS"
	CodePageTitleMismatch = "PAGE_TITLE_MISMATCH"
	CodeSchemaViolation   = "SCHEMA_VIOLATION"
	CodeMissingPage       = "MISSING_PAGE"
	CodeMissingAnchor     = "MISSING_ANCHOR"
)

// Issue is a single validation finding. Index is -1 for collection-level issues.
type Issue struct {
	Index    int      `json:"index"`
	Field    string   `json:"field,omitempty"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.Index < 0 {
		return fmt.Sprintf("%s [%s] %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("%s [%s] docs[%d].%s: %s", i.Severity, i.Code, i.Index, i.Field, i.Message)
}

// Report is the outcome of validating an index
type Report struct {
	Valid    bool    `json:"valid"`
	Records  int     `json:"records"`
	Pages    int     `json:"pages"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Summary  string  `json:"summary"`
}

// Add files an issue under errors or warnings by severity
func (r *Report) Add(issues ...Issue) {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			r.Errors = append(r.Errors, issue)
		} else {
			r.Warnings = append(r.Warnings, issue)
		}
	}
	r.finish()
}

func (r *Report) finish() {
	r.Valid = len(r.Errors) == 0
	if r.Valid {
		r.Summary = fmt.Sprintf("Search index is valid: %d records across %d pages (%d warnings)",
			r.Records, r.Pages, len(r.Warnings))
	} else {
		r.Summary = fmt.Sprintf("Search index has %d error(s) and %d warning(s) across %d records",
			len(r.Errors), len(r.Warnings), r.Records)
	}
}

// ValidateOptions tunes Validate
type ValidateOptions struct {
	// StrictLocation rejects empty locations. By default an empty location
	// addresses the site root page.
	StrictLocation bool

	// Categories lists the accepted categories; nil means page and section
	Categories []string
}

// Validate checks the structural properties of a search index:
// non-empty collection and fields, known categories, no duplicated content
// blocks, and records appended per page in document order.
func Validate(idx *Index, opts ValidateOptions) Report {
	report := Report{
		Records:  idx.Len(),
		Pages:    len(idx.Pages()),
		Errors:   []Issue{},
		Warnings: []Issue{},
	}

	if idx.Len() == 0 {
		report.Add(Issue{
			Index:    -1,
			Code:     CodeEmptyCollection,
			Severity: SeverityError,
			Message:  "search index contains no records",
		})
		return report
	}

	categories := map[string]bool{CategoryPage: true, CategorySection: true}
	if opts.Categories != nil {
		categories = make(map[string]bool, len(opts.Categories))
		for _, c := range opts.Categories {
			categories[c] = true
		}
	}

	seen := make(map[Record]int)
	pageTitles := make(map[string]string)
	closedPages := make(map[string]bool)
	reportedPages := make(map[string]bool)
	currentPath := ""

	for n, rec := range idx.docs {
		report.Add(checkFields(n, rec, opts)...)

		if rec.Category != "" && !categories[rec.Category] {
			report.Add(Issue{
				Index:    n,
				Field:    "category",
				Code:     CodeUnknownCategory,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("unknown category %q", rec.Category),
			})
		}

		path, anchor := SplitLocation(rec.Location)
		if rec.Category == CategorySection && anchor == "" {
			report.Add(Issue{
				Index:    n,
				Field:    "location",
				Code:     CodeSectionNoAnchor,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("section %q has no anchor in location %q", rec.Title, rec.Location),
			})
		}

		if first, ok := seen[rec]; ok {
			report.Add(Issue{
				Index:    n,
				Field:    "text",
				Code:     CodeDuplicateRecord,
				Severity: SeverityError,
				Message:  fmt.Sprintf("duplicates the content block of docs[%d]", first),
			})
		} else {
			seen[rec] = n
		}

		if title, ok := pageTitles[path]; ok && title != rec.Page {
			report.Add(Issue{
				Index:    n,
				Field:    "page",
				Code:     CodePageTitleMismatch,
				Severity: SeverityError,
				Message:  fmt.Sprintf("page %q was titled %q earlier, now %q", path, title, rec.Page),
			})
		} else if !ok {
			pageTitles[path] = rec.Page
		}

		if n == 0 || path != currentPath {
			if n > 0 {
				closedPages[currentPath] = true
			}
			if closedPages[path] && !reportedPages[path] {
				reportedPages[path] = true
				report.Add(Issue{
					Index:    n,
					Field:    "location",
					Code:     CodePageNotContiguous,
					Severity: SeverityError,
					Message:  fmt.Sprintf("records of page %q are interleaved with other pages", path),
				})
			}
			currentPath = path
		}
	}

	report.finish()
	return report
}

func checkFields(n int, rec Record, opts ValidateOptions) []Issue {
	var issues []Issue
	empty := func(field string) {
		issues = append(issues, Issue{
			Index:    n,
			Field:    field,
			Code:     CodeEmptyField,
			Severity: SeverityError,
			Message:  field + " must not be empty",
		})
	}

	if opts.StrictLocation && rec.Location == "" {
		empty("location")
	}
	if rec.Page == "" {
		empty("page")
	}
	if rec.Title == "" {
		empty("title")
	}
	if rec.Category == "" {
		empty("category")
	}
	return issues
}
