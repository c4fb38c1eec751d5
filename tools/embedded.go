package tools

import (
	"embed"
	"io/fs"
)

// The bundled search index lets the server answer queries before any
// source_url is configured or reachable.
//
//go:embed data/docs/*
var embeddedFS embed.FS

// embeddedDataProvider implements DataProvider using embed.FS
type embeddedDataProvider struct {
	fs embed.FS
}

// NewEmbeddedDataProvider creates a DataProvider over the bundled files
func NewEmbeddedDataProvider() DataProvider {
	return &embeddedDataProvider{fs: embeddedFS}
}

// ReadFile reads the named file from the embedded filesystem.
func (p *embeddedDataProvider) ReadFile(name string) ([]byte, error) {
	return p.fs.ReadFile(name)
}

// ReadDir reads the named directory from the embedded filesystem.
func (p *embeddedDataProvider) ReadDir(name string) ([]fs.DirEntry, error) {
	return p.fs.ReadDir(name)
}

var defaultDataProvider DataProvider = NewEmbeddedDataProvider()
