// Package site verifies search index locations against a built documentation site.
package site

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/docindex/mcp-server/internal/searchindex"
)

// Checker resolves index locations to pages of a built site and caches
// the anchors found on each page.
type Checker struct {
	fsys    fs.FS
	anchors map[string]map[string]bool // page file -> ids; nil map means missing page
}

// NewChecker creates a checker over the root of a built site
func NewChecker(fsys fs.FS) *Checker {
	return &Checker{fsys: fsys, anchors: make(map[string]map[string]bool)}
}

// PageFile maps a location path to the HTML file that serves it
// Example: "api/" -> "api/index.html", "" -> "index.html", "faq.html" -> "faq.html"
func PageFile(locationPath string) string {
	p := strings.TrimPrefix(locationPath, "/")
	switch {
	case p == "":
		return "index.html"
	case strings.HasSuffix(p, "/"):
		return p + "index.html"
	case path.Ext(p) == "":
		return p + "/index.html"
	default:
		return p
	}
}

// CheckAnchors reports records whose page is missing from the site or whose
// anchor is not an id on that page
func CheckAnchors(fsys fs.FS, idx *searchindex.Index) ([]searchindex.Issue, error) {
	return NewChecker(fsys).Check(idx)
}

// Check implements CheckAnchors with the checker's cache
func (c *Checker) Check(idx *searchindex.Index) ([]searchindex.Issue, error) {
	var issues []searchindex.Issue
	reportedPages := make(map[string]bool)

	for n := 0; n < idx.Len(); n++ {
		rec := idx.At(n)
		locPath, anchor := searchindex.SplitLocation(rec.Location)
		file := PageFile(locPath)

		ids, err := c.pageAnchors(file)
		if err != nil {
			return nil, err
		}

		if ids == nil {
			if !reportedPages[file] {
				reportedPages[file] = true
				issues = append(issues, searchindex.Issue{
					Index:    n,
					Field:    "location",
					Code:     searchindex.CodeMissingPage,
					Severity: searchindex.SeverityError,
					Message:  fmt.Sprintf("page %s for location %q does not exist", file, rec.Location),
				})
			}
			continue
		}

		if anchor != "" && !ids[anchor] {
			issues = append(issues, searchindex.Issue{
				Index:    n,
				Field:    "location",
				Code:     searchindex.CodeMissingAnchor,
				Severity: searchindex.SeverityError,
				Message:  fmt.Sprintf("anchor #%s not found in %s", anchor, file),
			})
		}
	}

	return issues, nil
}

func (c *Checker) pageAnchors(file string) (map[string]bool, error) {
	if ids, ok := c.anchors[file]; ok {
		return ids, nil
	}

	f, err := c.fsys.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.anchors[file] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	ids, err := CollectIDs(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	c.anchors[file] = ids
	return ids, nil
}

// CollectIDs returns every id and legacy <a name> attribute in an HTML document
func CollectIDs(r io.Reader) (map[string]bool, error) {
	ids := make(map[string]bool)
	z := html.NewTokenizer(r)

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			return ids, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch {
				case string(key) == "id":
					ids[string(val)] = true
				case string(key) == "name" && tag == "a":
					ids[string(val)] = true
				}
			}
		}
	}
}
