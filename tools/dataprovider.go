package tools

import (
	"io/fs"
)

// DataProvider gives access to the files bundled with the server.
// Tests swap in MockDataProvider to control what is "embedded".
type DataProvider interface {
	// ReadFile reads the named file, e.g. "data/docs/search_index.js"
	ReadFile(name string) ([]byte, error)

	// ReadDir lists the named directory, e.g. "data/docs"
	ReadDir(name string) ([]fs.DirEntry, error)
}
