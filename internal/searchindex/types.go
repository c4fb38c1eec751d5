package searchindex

// Record is one entry of a documentation search index
type Record struct {
	Location string `json:"location"` // page-relative URL, optionally with #anchor
	Page     string `json:"page"`     // title of the containing page
	Title    string `json:"title"`    // title of the section, may equal Page
	Text     string `json:"text"`     // excerpt used for full-text matching
	Category string `json:"category"` // structural role: "page" or "section"
}

// Entry is a Record enriched with the metadata used by the full-text index
type Entry struct {
	ID         string   `json:"id"`
	Ordinal    int      `json:"ordinal"` // position in the source document
	Location   string   `json:"location"`
	Path       string   `json:"path"`
	Anchor     string   `json:"anchor,omitempty"`
	Page       string   `json:"page"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Category   string   `json:"category"`
	Breadcrumb string   `json:"breadcrumb,omitempty"` // "Page > Title"
	Keywords   []string `json:"keywords,omitempty"`
	TokenCount int      `json:"token_count,omitempty"`
}

// PageSummary describes one page of the documentation site as seen by the index
type PageSummary struct {
	Location string   `json:"location"`
	Title    string   `json:"title"`
	Records  int      `json:"records"`
	Sections []string `json:"sections,omitempty"` // anchors in document order
}

// Record returns the plain search record the entry was built from
func (e Entry) Record() Record {
	return Record{
		Location: e.Location,
		Page:     e.Page,
		Title:    e.Title,
		Text:     e.Text,
		Category: e.Category,
	}
}
