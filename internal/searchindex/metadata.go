package searchindex

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "as": true, "by": true, "is": true,
	"it": true, "be": true, "with": true, "from": true, "that": true,
	"we": true, "this": true, "are": true, "our": true, "can": true,
}

// SplitLocation separates a location into its page path and anchor
// Example: "api/#API" -> ("api/", "API"), "" -> ("", "")
func SplitLocation(location string) (path, anchor string) {
	if i := strings.IndexByte(location, '#'); i >= 0 {
		return location[:i], location[i+1:]
	}
	return location, ""
}

// EstimateTokens estimates the token count for a text string
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}

// ExtractKeywords extracts significant terms from title and the start of text.
// Keywords keep first-seen order so that rebuilding an index is deterministic.
func ExtractKeywords(title, text string) []string {
	words := strings.Fields(strings.ToLower(title))

	preview := text
	if len(preview) > 200 {
		preview = preview[:200]
		// don't cut a multi-byte rune in half
		for len(preview) > 0 && !utf8.RuneStart(text[len(preview)]) {
			preview = preview[:len(preview)-1]
		}
	}
	words = append(words, strings.Fields(strings.ToLower(preview))...)

	seen := make(map[string]bool)
	keywords := make([]string, 0, MaxKeywords)
	for _, word := range words {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(word)) <= 2 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == MaxKeywords {
			break
		}
	}

	return keywords
}

// Breadcrumb builds "Page > Title", collapsing the title when it repeats the page
func Breadcrumb(page, title string) string {
	switch {
	case page == "":
		return title
	case title == "" || title == page:
		return page
	default:
		return page + " > " + title
	}
}

// EnrichEntry fills the derived metadata of an entry from its record fields
func EnrichEntry(entry *Entry) {
	entry.Path, entry.Anchor = SplitLocation(entry.Location)
	entry.Breadcrumb = Breadcrumb(entry.Page, entry.Title)
	entry.Keywords = ExtractKeywords(entry.Title, entry.Text)
	entry.TokenCount = EstimateTokens(entry.Text)
}
