package tools

import (
	"io/fs"
	"testing/fstest"
)

// MockDataProvider serves bundled files from memory
type MockDataProvider struct {
	files fstest.MapFS
}

// NewMockDataProvider creates a provider with no files
func NewMockDataProvider() *MockDataProvider {
	return &MockDataProvider{files: fstest.MapFS{}}
}

// AddFile stores content under a slash-separated name; parent directories are implied
func (m *MockDataProvider) AddFile(name string, content []byte) {
	m.files[name] = &fstest.MapFile{Data: content, Mode: 0644}
}

func (m *MockDataProvider) ReadFile(name string) ([]byte, error) {
	return m.files.ReadFile(name)
}

func (m *MockDataProvider) ReadDir(name string) ([]fs.DirEntry, error) {
	return m.files.ReadDir(name)
}

// SetDefaultDataProvider replaces the provider used for bundled files
func SetDefaultDataProvider(provider DataProvider) {
	defaultDataProvider = provider
}

// ResetDefaultDataProvider restores the embedded provider
func ResetDefaultDataProvider() {
	defaultDataProvider = NewEmbeddedDataProvider()
}
