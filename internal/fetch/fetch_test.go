package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docindex/mcp-server/internal/fetch"
)

const asset = "var documenterSearchIndex = {\"docs\":\n[{\"location\":\"\",\"page\":\"Home\",\"title\":\"Home\",\"text\":\"hi\",\"category\":\"page\"}]\n}\n"

func fastDownloader() *fetch.Downloader {
	d := fetch.New()
	d.InitialInterval = time.Millisecond
	d.MaxInterval = 5 * time.Millisecond
	d.MaxElapsedTime = 2 * time.Second
	return d
}

func TestDownload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(asset))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "docs", "search_index.js")

	n, err := fastDownloader().Download(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(asset)), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, asset, string(data))

	last, err := fetch.LastUpdate(filepath.Dir(dest))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), last, time.Minute)
	assert.False(t, fetch.NeedsRefresh(filepath.Dir(dest), time.Hour))
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(asset))
		}
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "search_index.js")
	_, err := fastDownloader().Download(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "search_index.js")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0644))

	_, err := fastDownloader().Download(context.Background(), srv.URL, dest)
	require.Error(t, err)

	var statusErr *fetch.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())

	// the previous asset is left untouched
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assert.True(t, fetch.NeedsRefresh(dir, time.Hour))
}

func TestDownload_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastDownloader().Download(ctx, srv.URL, filepath.Join(t.TempDir(), "search_index.js"))
	assert.Error(t, err)
}

func TestNeedsRefresh(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, fetch.NeedsRefresh(dir, time.Hour), "missing meta")

	require.NoError(t, fetch.WriteMeta(dir, "https://example.org/search_index.js"))
	assert.False(t, fetch.NeedsRefresh(dir, time.Hour))
	assert.True(t, fetch.NeedsRefresh(dir, -time.Second))

	require.NoError(t, os.WriteFile(filepath.Join(dir, fetch.MetaFile), []byte("garbage\n"), 0644))
	assert.True(t, fetch.NeedsRefresh(dir, time.Hour))
}

func TestStatusError_Temporary(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		err := &fetch.StatusError{URL: "u", StatusCode: tt.code}
		if got := err.Temporary(); got != tt.want {
			t.Errorf("Temporary() for %d = %v, want %v", tt.code, got, tt.want)
		}
	}
}
