package searchindex

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Format identifies the envelope a search index was read from or is written to
type Format string

const (
	FormatJS    Format = "js"    // var documenterSearchIndex = {"docs": [...]}
	FormatJSON  Format = "json"  // {"docs": [...]}
	FormatArray Format = "array" // [...]
)

// ParseFormat converts a user supplied format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJS, FormatJSON, FormatArray:
		return Format(s), nil
	case "":
		return FormatJS, nil
	}
	return "", fmt.Errorf("unknown index format %q (want js, json or array)", s)
}

// Index is an immutable, ordered collection of search records.
// It is produced in one batch and replaced wholesale, never edited in place.
type Index struct {
	docs   []Record
	global string
	format Format
}

// New creates an index from records in document order
func New(docs []Record) *Index {
	copied := make([]Record, len(docs))
	copy(copied, docs)
	return &Index{docs: copied, global: DefaultGlobal, format: FormatJS}
}

// Len returns the number of records
func (i *Index) Len() int {
	return len(i.docs)
}

// At returns the record at position n
func (i *Index) At(n int) Record {
	return i.docs[n]
}

// Records returns a copy of all records in document order
func (i *Index) Records() []Record {
	out := make([]Record, len(i.docs))
	copy(out, i.docs)
	return out
}

// Global returns the JavaScript variable name the index was assigned to
func (i *Index) Global() string {
	return i.global
}

// Format returns the envelope the index was parsed from
func (i *Index) Format() Format {
	return i.format
}

// Entries converts records into enriched entries for full-text indexing
func (i *Index) Entries() []Entry {
	entries := make([]Entry, len(i.docs))
	for n, rec := range i.docs {
		entries[n] = Entry{
			ID:       fmt.Sprintf("rec_%d", n),
			Ordinal:  n,
			Location: rec.Location,
			Page:     rec.Page,
			Title:    rec.Title,
			Text:     rec.Text,
			Category: rec.Category,
		}
		EnrichEntry(&entries[n])
	}
	return entries
}

// Pages summarises the index per page path in first-appearance order
func (i *Index) Pages() []PageSummary {
	var pages []PageSummary
	byPath := make(map[string]int)

	for _, rec := range i.docs {
		path, anchor := SplitLocation(rec.Location)
		n, ok := byPath[path]
		if !ok {
			n = len(pages)
			byPath[path] = n
			pages = append(pages, PageSummary{Location: path, Title: rec.Page})
		}
		pages[n].Records++
		if rec.Category == CategorySection && anchor != "" {
			pages[n].Sections = append(pages[n].Sections, anchor)
		}
	}

	return pages
}

// Page returns the records whose location path equals path
func (i *Index) Page(path string) []Record {
	var out []Record
	for _, rec := range i.docs {
		if p, _ := SplitLocation(rec.Location); p == path {
			out = append(out, rec)
		}
	}
	return out
}

// Digest returns the sha256 of the canonical JavaScript encoding
func (i *Index) Digest() string {
	h := sha256.New()
	// writes to a hash never fail
	_ = i.Encode(h, EncodeOptions{Format: FormatJS, Global: DefaultGlobal})
	return hex.EncodeToString(h.Sum(nil))
}

// Equivalent reports whether two indexes hold the same records in the same order
func Equivalent(a, b *Index) bool {
	if a.Len() != b.Len() {
		return false
	}
	for n := range a.docs {
		if a.docs[n] != b.docs[n] {
			return false
		}
	}
	return true
}
