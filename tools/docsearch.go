package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docindex/mcp-server/internal/config"
	"github.com/docindex/mcp-server/internal/fetch"
	"github.com/docindex/mcp-server/internal/search"
	"github.com/docindex/mcp-server/internal/searchindex"
)

const (
	docsDir       = "docs"
	assetFile     = "docs/search_index.js"
	incomingDir   = "docs/incoming"
	searchDir     = "search"
	lockFile      = "search/index.lock"
	lockTimeout   = 5 * time.Second // Max time to wait for lock
	lockRetryWait = 500 * time.Millisecond

	embeddedDocsDir = "data/docs"
)

// Where the loaded index came from
const (
	sourceLocal    = "local"
	sourceEmbedded = "embedded"
)

var (
	dataDir  string // Data directory for the asset and the search index
	settings = config.Default()

	downloader = fetch.New()
)

func init() {
	// Strategy 1: user home directory (standalone installation)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userDataDir := filepath.Join(homeDir, ".docindex")

		if info, err := os.Stat(userDataDir); err == nil && info.IsDir() {
			dataDir = userDataDir
			log.Printf("✓ Data directory: %s (user home)", dataDir)
			return
		}

		if err := os.MkdirAll(userDataDir, 0755); err == nil {
			dataDir = userDataDir
			log.Printf("✓ Data directory created: %s", dataDir)
			ensureDataDirs()
			return
		}

		log.Printf("Warning: Could not create user data directory at %s: %v", userDataDir, err)
	} else {
		log.Printf("Warning: Could not determine user home directory: %v", err)
	}

	// Strategy 2: next to the binary (bin/docindex-mcp with data/ beside bin/)
	execPath, err := os.Executable()
	if err == nil {
		relativeDataDir := filepath.Join(filepath.Dir(execPath), "..", "data")
		if info, err := os.Stat(relativeDataDir); err == nil && info.IsDir() {
			dataDir, _ = filepath.Abs(relativeDataDir)
			log.Printf("✓ Data directory: %s (relative to binary)", dataDir)
			return
		}
	}

	// Strategy 3: current working directory
	dataDir = filepath.Join(".", "data")
	log.Printf("Warning: Data directory (fallback): %s", dataDir)
	ensureDataDirs()
}

func docsPath() string {
	return filepath.Join(dataDir, docsDir)
}

func ensureDataDirs() {
	os.MkdirAll(filepath.Join(dataDir, docsDir), 0755)
	os.MkdirAll(filepath.Join(dataDir, searchDir), 0755)
}

// Configure applies loaded settings. It must be called before
// RegisterDocSearchTools.
func Configure(cfg *config.Config) {
	settings = cfg
	if cfg.DataDir != "" {
		dataDir = cfg.DataDir
		log.Printf("✓ Data directory: %s (configured)", dataDir)
		ensureDataDirs()
	}
}

// snapshot is one generation of loaded documentation. It is never
// modified once published; a refresh publishes a new snapshot.
type snapshot struct {
	index    *searchindex.Index
	engine   search.Engine
	source   string // "local", "embedded" or the URL it was downloaded from
	buildID  string // bleve manifest build id, empty for the scanner
	loadedAt time.Time

	// refs counts readers plus one for the holder while published.
	// The engine is closed when it drops to zero.
	refs     atomic.Int64
	closed   chan struct{}
	closeErr error
}

// tryAcquire takes a reader reference unless the snapshot is already draining
func (s *snapshot) tryAcquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference, closing the engine with the last one
func (s *snapshot) release() {
	if s.refs.Add(-1) != 0 {
		return
	}
	if s.closeErr = s.engine.Close(); s.closeErr != nil {
		log.Printf("Warning: Error closing index (%s): %v", s.source, s.closeErr)
	} else {
		log.Printf("✓ Index closed (%s)", s.source)
	}
	close(s.closed)
}

// indexHolder manages concurrent access to the current snapshot
type indexHolder struct {
	// current holds the active snapshot (atomic access for lock-free reads)
	current atomic.Pointer[snapshot]

	// refreshMu prevents concurrent refresh operations
	// NOT used for searches - they are lock-free via atomic pointer
	refreshMu sync.Mutex
}

// publish makes snap current and retires the snapshot it replaces
func (h *indexHolder) publish(snap *snapshot) {
	snap.closed = make(chan struct{})
	snap.refs.Store(1)
	if old := h.current.Swap(snap); old != nil {
		h.retire(old)
	}
}

// acquire returns the current snapshot with a reader reference, or nil.
// A snapshot retired between Load and tryAcquire is skipped.
func (h *indexHolder) acquire() *snapshot {
	for {
		snap := h.current.Load()
		if snap == nil || snap.tryAcquire() {
			return snap
		}
	}
}

// retire drops the holder's reference to a replaced snapshot. Its engine
// closes once in-flight searches release theirs.
func (h *indexHolder) retire(old *snapshot) {
	if n := old.refs.Load(); n > 1 {
		log.Printf("Old index retired, closing after %d in-flight search(es) complete...", n-1)
	}
	old.release()
}

var indexMgr = &indexHolder{}

// InitializeDocSearch loads the documentation search index.
// Priority: local asset (from a previous refresh) > embedded asset.
func InitializeDocSearch() error {
	startTime := time.Now()
	log.Printf("Initializing documentation search...")

	log.Printf("Acquiring index lock...")
	lockStart := time.Now()
	if err := acquireLock(); err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	log.Printf("Lock acquired in %v", time.Since(lockStart).Round(time.Millisecond))

	source := sourceLocal
	idx, err := loadLocalAsset()
	if err != nil {
		log.Printf("No usable local asset (%v), extracting embedded documentation...", err)
		if err := extractEmbeddedAsset(); err != nil {
			return fmt.Errorf("failed to extract embedded asset: %w", err)
		}
		if idx, err = searchindex.ParseFile(filepath.Join(dataDir, assetFile)); err != nil {
			return fmt.Errorf("failed to parse embedded asset: %w", err)
		}
		source = sourceEmbedded
	}

	snap, err := newSnapshot(idx, source)
	if err != nil {
		return err
	}
	indexMgr.publish(snap)

	count, _ := snap.engine.Count()
	log.Printf("✓ Documentation search initialized (%d records, %s asset, %s engine) in %v",
		count, source, settings.Engine, time.Since(startTime).Round(time.Millisecond))

	switch {
	case source == sourceEmbedded && settings.SourceURL != "":
		log.Printf("ℹ️  Using embedded documentation. Use refresh_documentation_index to download %s.", settings.SourceURL)
	case settings.SourceURL != "" && fetch.NeedsRefresh(docsPath(), settings.CacheTTL):
		log.Printf("ℹ️  Local documentation is older than %v. Consider using refresh_documentation_index to update.", settings.CacheTTL)
	}

	return nil
}

// loadLocalAsset parses the asset left by a previous run, removing it if corrupted
func loadLocalAsset() (*searchindex.Index, error) {
	path := filepath.Join(dataDir, assetFile)
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	idx, err := searchindex.ParseFile(path)
	if err != nil {
		log.Printf("Warning: Local asset corrupted (%v), removing...", err)
		os.Remove(path)
		return nil, err
	}
	return idx, nil
}

// extractEmbeddedAsset copies the bundled docs directory into the data directory
func extractEmbeddedAsset() error {
	localDocs := docsPath()
	if err := os.MkdirAll(localDocs, 0755); err != nil {
		return fmt.Errorf("failed to create docs directory: %w", err)
	}

	entries, err := defaultDataProvider.ReadDir(embeddedDocsDir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", embeddedDocsDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		embeddedFile := embeddedDocsDir + "/" + entry.Name()
		data, err := defaultDataProvider.ReadFile(embeddedFile)
		if err != nil {
			return fmt.Errorf("failed to read embedded file %s: %w", embeddedFile, err)
		}
		if err := os.WriteFile(filepath.Join(localDocs, entry.Name()), data, 0644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", entry.Name(), err)
		}
	}

	log.Printf("✓ Embedded documentation extracted to %s", localDocs)
	return nil
}

// currentSnapshot returns the active snapshot, initializing on first use.
// The caller must call release when done with it.
func currentSnapshot() (snap *snapshot, release func(), err error) {
	snap = indexMgr.acquire()
	if snap == nil {
		log.Printf("Doc index not initialized, initializing now...")
		if err := InitializeDocSearch(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize documentation index: %w", err)
		}
		if snap = indexMgr.acquire(); snap == nil {
			return nil, nil, errors.New("index still nil after initialization")
		}
	}

	return snap, snap.release, nil
}

// refreshResult summarises a refresh for the MCP tool output
type refreshResult struct {
	Updated bool
	Records int
	Report  searchindex.Report
}

// refreshDocumentationIndex downloads the asset at url, validates it and
// swaps it in. The running snapshot is kept when anything fails.
func refreshDocumentationIndex(ctx context.Context, force bool, url string) (*refreshResult, error) {
	startTime := time.Now()
	localDocs := docsPath()

	if url == "" {
		url = settings.SourceURL
	}
	if url == "" {
		return nil, errors.New("no source URL configured (set source_url or DOCINDEX_SOURCE_URL, or pass url)")
	}

	if !force && !fetch.NeedsRefresh(localDocs, settings.CacheTTL) {
		log.Printf("Documentation cache is fresh, skipping refresh")
		return &refreshResult{}, nil
	}

	// Serialize refresh operations (prevent concurrent refreshes)
	indexMgr.refreshMu.Lock()
	defer indexMgr.refreshMu.Unlock()

	// Another goroutine may have already refreshed while we were waiting
	if !force && !fetch.NeedsRefresh(localDocs, settings.CacheTTL) {
		log.Printf("Documentation was refreshed by another goroutine, skipping")
		return &refreshResult{}, nil
	}

	log.Printf("Starting documentation refresh from %s (force=%v)...", url, force)

	// Lock will be released by CloseDocSearch() when process exits
	if err := acquireLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire lock for refresh: %w", err)
	}

	staging := filepath.Join(dataDir, incomingDir)
	defer os.RemoveAll(staging)

	downloadStart := time.Now()
	stagedAsset := filepath.Join(staging, filepath.Base(assetFile))
	n, err := downloader.Download(ctx, url, stagedAsset)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	log.Printf("Downloaded %d bytes in %v", n, time.Since(downloadStart).Round(time.Millisecond))

	idx, err := searchindex.ParseFile(stagedAsset)
	if err != nil {
		return nil, fmt.Errorf("downloaded asset rejected: %w", err)
	}
	if idx.Len() == 0 {
		return nil, fmt.Errorf("downloaded asset rejected: %w", searchindex.ErrNoDocs)
	}

	report := searchindex.Validate(idx, searchindex.ValidateOptions{})
	if !report.Valid {
		log.Printf("Warning: %s", report.Summary)
	}

	snap, err := newSnapshot(idx, url)
	if err != nil {
		return nil, fmt.Errorf("indexing failed: %w", err)
	}

	// Move the asset and its cache.meta into place for the next start
	for _, name := range []string{filepath.Base(assetFile), fetch.MetaFile} {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(localDocs, name)); err != nil {
			log.Printf("Warning: Failed to store %s: %v", name, err)
		}
	}

	// ATOMIC SWAP: searches now use the new snapshot
	indexMgr.publish(snap)

	log.Printf("✓ Documentation refresh completed in %v", time.Since(startTime).Round(time.Millisecond))
	return &refreshResult{Updated: true, Records: idx.Len(), Report: report}, nil
}

// CloseDocSearch closes the documentation search index and releases the lock
func CloseDocSearch() error {
	var closeErr error

	// Atomically swap to nil (prevents new searches)
	if snap := indexMgr.current.Swap(nil); snap != nil {
		log.Printf("Waiting for in-flight searches to complete before closing...")
		snap.release()
		<-snap.closed
		closeErr = snap.closeErr
	}

	// Always attempt to release inter-process lock, even if close failed
	if err := releaseLock(); err != nil {
		log.Printf("Error releasing lock: %v", err)
		if closeErr == nil {
			closeErr = err
		}
	}

	return closeErr
}
