// Package fetch downloads published search_index.js assets.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// MetaFile records when the asset next to it was last downloaded
	MetaFile = "cache.meta"

	// MaxAssetSize bounds the size of a downloaded asset
	MaxAssetSize = 64 << 20
)

var ErrTooLarge = errors.New("asset exceeds maximum size")

// StatusError is returned for a response other than 200 OK
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download of %s failed with status: %d", e.URL, e.StatusCode)
}

// Temporary reports whether retrying the request may succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Downloader fetches assets with exponential backoff
type Downloader struct {
	Client *http.Client

	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// New returns a Downloader with the default retry policy
func New() *Downloader {
	return &Downloader{
		Client:          &http.Client{Timeout: 60 * time.Second},
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  30 * time.Second,
	}
}

// Download fetches url and writes it to dest with the default Downloader
func Download(ctx context.Context, url, dest string) (int64, error) {
	return New().Download(ctx, url, dest)
}

// Download fetches url into dest, replacing dest only once the whole body
// has been received, then records the time in cache.meta beside dest.
// Server errors, 429 responses and network failures are retried.
func (d *Downloader) Download(ctx context.Context, url, dest string) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	var written int64
	operation := func() error {
		n, err := d.fetchOnce(ctx, url, dest)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				return backoff.Permanent(err)
			}
			if errors.Is(err, ErrTooLarge) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		written = n
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.InitialInterval
	b.MaxInterval = d.MaxInterval
	b.MaxElapsedTime = d.MaxElapsedTime

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return 0, err
	}

	if err := WriteMeta(dir, url); err != nil {
		return written, err
	}
	return written, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("invalid request: %w", err))
	}
	req.Header.Set("Accept", "application/javascript, application/json, */*")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, MaxAssetSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if n > MaxAssetSize {
		return 0, ErrTooLarge
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}
	return n, nil
}

// WriteMeta records the download time and source in dir/cache.meta
func WriteMeta(dir, url string) error {
	content := fmt.Sprintf("last_update: %s\nsource: %s\n", time.Now().Format(time.RFC3339), url)
	if err := os.WriteFile(filepath.Join(dir, MetaFile), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write meta file: %w", err)
	}
	return nil
}

// LastUpdate returns the time recorded in dir/cache.meta
func LastUpdate(dir string) (time.Time, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return time.Time{}, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(line, "last_update: "); ok {
			return time.Parse(time.RFC3339, strings.TrimSpace(v))
		}
	}
	return time.Time{}, fmt.Errorf("no last_update in %s", MetaFile)
}

// NeedsRefresh reports whether the asset cached in dir is older than ttl
func NeedsRefresh(dir string, ttl time.Duration) bool {
	last, err := LastUpdate(dir)
	if err != nil {
		return true // no cache, needs refresh
	}
	return time.Since(last) > ttl
}
