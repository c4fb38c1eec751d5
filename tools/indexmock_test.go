package tools

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/docindex/mcp-server/internal/search"
)

// mockEngine is an in-memory search.Engine for holder tests
type mockEngine struct {
	id          int
	count       uint64
	searchError error
	closeError  error
	closed      atomic.Bool
}

func newMockEngine(id int) *mockEngine {
	return &mockEngine{
		id:    id,
		count: 100,
	}
}

func (m *mockEngine) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("index closed")
	}
	if m.searchError != nil {
		return nil, m.searchError
	}
	return &search.Result{Query: q.Text, Hits: []search.Hit{}, Total: int(m.count)}, nil
}

func (m *mockEngine) Count() (uint64, error) {
	if m.closed.Load() {
		return 0, fmt.Errorf("index closed")
	}
	return m.count, nil
}

func (m *mockEngine) Close() error {
	if m.closed.Load() {
		return fmt.Errorf("already closed")
	}
	m.closed.Store(true)
	return m.closeError
}

func (m *mockEngine) IsClosed() bool {
	return m.closed.Load()
}
