package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docindex/mcp-server/internal/config"
	"github.com/docindex/mcp-server/internal/fetch"
	"github.com/docindex/mcp-server/internal/search"
	"github.com/docindex/mcp-server/internal/searchindex"
)

const fixturePath = "../internal/searchindex/testdata/search_index.js"

// setupDocSearch points the package at a temp data directory with fresh state
func setupDocSearch(t *testing.T, engine string) {
	t.Helper()

	origDataDir, origSettings, origMgr, origDownloader := dataDir, settings, indexMgr, downloader

	dataDir = t.TempDir()
	cfg := config.Default()
	cfg.Engine = engine
	settings = cfg
	indexMgr = &indexHolder{}

	fast := fetch.New()
	fast.InitialInterval = time.Millisecond
	fast.MaxInterval = 5 * time.Millisecond
	fast.MaxElapsedTime = time.Second
	downloader = fast

	t.Cleanup(func() {
		CloseDocSearch()
		dataDir, settings, indexMgr, downloader = origDataDir, origSettings, origMgr, origDownloader
	})
}

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(fixturePath)
	require.NoError(t, err)
	return data
}

func writeLocalAsset(t *testing.T, data []byte) {
	t.Helper()
	path := filepath.Join(dataDir, assetFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestInitializeDocSearch_Embedded(t *testing.T) {
	for _, engine := range []string{config.EngineScan, config.EngineBleve} {
		t.Run(engine, func(t *testing.T) {
			setupDocSearch(t, engine)

			require.NoError(t, InitializeDocSearch())

			snap := indexMgr.current.Load()
			require.NotNil(t, snap)
			assert.Equal(t, sourceEmbedded, snap.source)
			assert.FileExists(t, filepath.Join(dataDir, assetFile))

			count, err := snap.engine.Count()
			require.NoError(t, err)
			assert.Equal(t, uint64(snap.index.Len()), count)

			if engine == config.EngineBleve {
				assert.NotEmpty(t, snap.buildID)
				assert.Equal(t, searchindex.IndexSchemaVersion, search.ReadVersion(filepath.Join(dataDir, searchDir)))
			}
		})
	}
}

func TestInitializeDocSearch_LocalAssetWins(t *testing.T) {
	setupDocSearch(t, config.EngineScan)
	writeLocalAsset(t, readFixture(t))

	require.NoError(t, InitializeDocSearch())

	snap := indexMgr.current.Load()
	require.NotNil(t, snap)
	assert.Equal(t, sourceLocal, snap.source)
	assert.Equal(t, 12, snap.index.Len())
}

func TestInitializeDocSearch_CorruptedLocalAsset(t *testing.T) {
	setupDocSearch(t, config.EngineScan)
	writeLocalAsset(t, []byte("var documenterSearchIndex = {\"docs\": [{\"location\":"))

	require.NoError(t, InitializeDocSearch())

	snap := indexMgr.current.Load()
	require.NotNil(t, snap)
	assert.Equal(t, sourceEmbedded, snap.source)
}

func TestInitializeDocSearch_ReusesBleveIndex(t *testing.T) {
	setupDocSearch(t, config.EngineBleve)
	writeLocalAsset(t, readFixture(t))

	require.NoError(t, InitializeDocSearch())
	first := indexMgr.current.Load().buildID
	require.NoError(t, CloseDocSearch())

	require.NoError(t, InitializeDocSearch())
	assert.Equal(t, first, indexMgr.current.Load().buildID, "unchanged asset should reuse the stored index")
	require.NoError(t, CloseDocSearch())

	// a different asset invalidates the stored index
	idx, err := searchindex.Parse(readFixture(t))
	require.NoError(t, err)
	smaller, err := searchindex.New(idx.Records()[:6]).Bytes(searchindex.EncodeOptions{})
	require.NoError(t, err)
	writeLocalAsset(t, smaller)

	require.NoError(t, InitializeDocSearch())
	assert.NotEqual(t, first, indexMgr.current.Load().buildID)
}

func TestSearchDocumentation(t *testing.T) {
	for _, engine := range []string{config.EngineScan, config.EngineBleve} {
		t.Run(engine, func(t *testing.T) {
			setupDocSearch(t, engine)
			writeLocalAsset(t, readFixture(t))
			require.NoError(t, InitializeDocSearch())

			_, out, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "reset"})
			require.NoError(t, err)
			require.NotEmpty(t, out.Results)
			assert.Equal(t, "reset", out.Query)
			assert.Equal(t, engine, out.Engine)
			assert.Equal(t, "Tally.reset!", out.Results[0].Title)
			assert.Equal(t, "api/#Tally.reset!", out.Results[0].Location)
			assert.Equal(t, "API > Tally.reset!", out.Results[0].Breadcrumb)
			assert.Empty(t, out.Results[0].URL, "no source URL configured")
		})
	}
}

func TestSearchDocumentation_LimitsAndFilters(t *testing.T) {
	setupDocSearch(t, config.EngineScan)
	writeLocalAsset(t, readFixture(t))
	require.NoError(t, InitializeDocSearch())
	ctx := context.Background()

	_, out, err := SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "tally", MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, out.Results, 1)
	assert.Greater(t, out.TotalHits, 1)

	_, out, err = SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "tally", Category: "section"})
	require.NoError(t, err)
	for _, r := range out.Results {
		assert.Equal(t, "section", r.Category)
	}

	_, out, err = SearchDocumentation(ctx, nil, SearchDocumentationInput{Query: "   "})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Equal(t, 0, out.TotalHits)
}

func TestSearchDocumentation_LazyInitialization(t *testing.T) {
	setupDocSearch(t, config.EngineScan)

	_, out, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "refresh"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Results)
	assert.NotNil(t, indexMgr.current.Load())
}

func TestListPagesAndGetPage(t *testing.T) {
	setupDocSearch(t, config.EngineScan)
	writeLocalAsset(t, readFixture(t))
	settings.SourceURL = "https://docs.example.org/stable/search_index.js"
	require.NoError(t, InitializeDocSearch())
	ctx := context.Background()

	_, pages, err := ListPages(ctx, nil, ListPagesInput{})
	require.NoError(t, err)
	require.Equal(t, 3, pages.Total)
	assert.Equal(t, "guide/", pages.Pages[0].Location)
	assert.Equal(t, []string{"Getting-started", "Weighted-counts"}, pages.Pages[0].Sections)

	_, page, err := GetPage(ctx, nil, GetPageInput{Location: "api/#Tally.reset!"})
	require.NoError(t, err)
	assert.Equal(t, "api/", page.Location)
	assert.Equal(t, "API", page.Title)
	assert.Equal(t, "https://docs.example.org/stable/api/", page.URL)
	assert.Equal(t, []string{"API"}, page.Sections)
	assert.Len(t, page.Records, 3)

	_, home, err := GetPage(ctx, nil, GetPageInput{Location: ""})
	require.NoError(t, err)
	assert.Equal(t, "Home", home.Title)
	assert.Len(t, home.Records, 3)

	_, _, err = GetPage(ctx, nil, GetPageInput{Location: "missing/"})
	assert.Error(t, err)
}

func TestValidateSearchIndex(t *testing.T) {
	setupDocSearch(t, config.EngineScan)
	require.NoError(t, InitializeDocSearch())
	ctx := context.Background()

	_, out, err := ValidateSearchIndex(ctx, nil, ValidateSearchIndexInput{Schema: true})
	require.NoError(t, err)
	assert.True(t, out.Report.Valid, "embedded asset should validate: %v", out.Report.Errors)
	assert.Equal(t, sourceEmbedded, out.Source)
	assert.Len(t, out.Digest, 64)

	_, strict, err := ValidateSearchIndex(ctx, nil, ValidateSearchIndexInput{Strict: true})
	require.NoError(t, err)
	assert.False(t, strict.Report.Valid, "home page records have an empty location")
}

// --- Refresh ---

func assetServer(t *testing.T, body []byte, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRefreshDocumentationIndex(t *testing.T) {
	for _, engine := range []string{config.EngineScan, config.EngineBleve} {
		t.Run(engine, func(t *testing.T) {
			setupDocSearch(t, engine)
			require.NoError(t, InitializeDocSearch())
			before := indexMgr.current.Load()

			srv, calls := assetServer(t, readFixture(t), http.StatusOK)
			url := srv.URL + "/stable/search_index.js"

			_, out, err := RefreshDocumentationIndex(context.Background(), nil, RefreshDocumentationIndexInput{URL: url})
			require.NoError(t, err)
			assert.True(t, out.Updated)
			assert.Equal(t, 12, out.RecordsIndexed)
			assert.Equal(t, int32(1), calls.Load())

			after := indexMgr.current.Load()
			require.NotSame(t, before, after)
			assert.Equal(t, url, after.source)
			assert.FileExists(t, filepath.Join(dataDir, docsDir, fetch.MetaFile))
			assert.NoDirExists(t, filepath.Join(dataDir, incomingDir))

			// searches see the new documentation and resolve URLs against it
			_, res, err := SearchDocumentation(context.Background(), nil, SearchDocumentationInput{Query: "reset"})
			require.NoError(t, err)
			require.NotEmpty(t, res.Results)
			assert.Equal(t, srv.URL+"/stable/api/#Tally.reset!", res.Results[0].URL)

			// old engine closes once searches drain
			assert.Eventually(t, func() bool {
				_, err := before.engine.Count()
				return err != nil
			}, 2*time.Second, 10*time.Millisecond)

			// fresh cache skips the download
			_, out, err = RefreshDocumentationIndex(context.Background(), nil, RefreshDocumentationIndexInput{URL: url})
			require.NoError(t, err)
			assert.False(t, out.Updated)
			assert.Equal(t, int32(1), calls.Load())

			// next start loads the downloaded asset
			require.NoError(t, CloseDocSearch())
			require.NoError(t, InitializeDocSearch())
			assert.Equal(t, sourceLocal, indexMgr.current.Load().source)
			assert.Equal(t, 12, indexMgr.current.Load().index.Len())
		})
	}
}

func TestRefreshDocumentationIndex_RejectsBadAsset(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not found", "missing", http.StatusNotFound},
		{"malformed", "var documenterSearchIndex = {\"docs\": [", http.StatusOK},
		{"empty", "var documenterSearchIndex = {\"docs\":\n[]\n}\n", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupDocSearch(t, config.EngineScan)
			require.NoError(t, InitializeDocSearch())
			before := indexMgr.current.Load()

			srv, _ := assetServer(t, []byte(tt.body), tt.status)

			_, out, err := RefreshDocumentationIndex(context.Background(), nil,
				RefreshDocumentationIndexInput{URL: srv.URL + "/search_index.js", Force: true})
			require.Error(t, err)
			assert.False(t, out.Updated)

			assert.Same(t, before, indexMgr.current.Load(), "running snapshot must be kept")
			idx, err := searchindex.ParseFile(filepath.Join(dataDir, assetFile))
			require.NoError(t, err, "local asset must be kept")
			assert.True(t, searchindex.Equivalent(before.index, idx))
		})
	}
}

func TestRefreshDocumentationIndex_NoSource(t *testing.T) {
	setupDocSearch(t, config.EngineScan)
	require.NoError(t, InitializeDocSearch())

	_, _, err := RefreshDocumentationIndex(context.Background(), nil, RefreshDocumentationIndexInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source URL")
}

func TestCloseDocSearch(t *testing.T) {
	setupDocSearch(t, config.EngineScan)
	require.NoError(t, InitializeDocSearch())
	snap := indexMgr.current.Load()

	require.NoError(t, CloseDocSearch())
	assert.Nil(t, indexMgr.current.Load())
	_, err := snap.engine.Count()
	assert.Error(t, err, "engine should be closed")
	assert.NoFileExists(t, filepath.Join(dataDir, lockFile))
}

// --- Pure Unit Tests for Concurrency ---
// These tests verify the atomic snapshot swap using mock engines

func mockSnapshot(id int) (*snapshot, *mockEngine) {
	engine := newMockEngine(id)
	return &snapshot{engine: engine, index: searchindex.New(nil), source: fmt.Sprintf("mock-%d", id)}, engine
}

func TestIndexHolderConcurrentReads(t *testing.T) {
	snap, _ := mockSnapshot(1)
	holder := &indexHolder{}
	holder.publish(snap)

	const numReaders = 50
	errChan := make(chan error, numReaders)
	doneChan := make(chan bool, numReaders)

	for i := 0; i < numReaders; i++ {
		go func(id int) {
			defer func() { doneChan <- true }()

			current := holder.acquire()
			if current == nil {
				errChan <- fmt.Errorf("goroutine %d: got nil snapshot", id)
				return
			}
			defer current.release()

			count, err := current.engine.Count()
			if err != nil {
				errChan <- fmt.Errorf("goroutine %d: Count failed: %v", id, err)
				return
			}
			if count != 100 {
				errChan <- fmt.Errorf("goroutine %d: expected 100, got %d", id, count)
			}
		}(i)
	}

	for i := 0; i < numReaders; i++ {
		<-doneChan
	}
	close(errChan)

	for err := range errChan {
		t.Error(err)
	}

	if n := snap.refs.Load(); n != 1 {
		t.Errorf("Expected only the holder reference after readers finished, got %d", n)
	}
}

func TestIndexHolderRetireWaitsForSearches(t *testing.T) {
	old, oldEngine := mockSnapshot(1)
	next, nextEngine := mockSnapshot(2)

	holder := &indexHolder{}
	holder.publish(old)

	// an in-flight search holds the old snapshot
	inFlight := holder.acquire()
	if inFlight != old {
		t.Fatal("Expected to acquire the published snapshot")
	}

	holder.publish(next)

	if oldEngine.IsClosed() {
		t.Fatal("Old engine closed while a search was in flight")
	}
	if _, err := inFlight.engine.Search(context.Background(), search.Query{Text: "x"}); err != nil {
		t.Fatalf("In-flight search failed: %v", err)
	}
	if holder.acquire() != next {
		t.Fatal("New searches should get the new snapshot")
	}
	next.release()

	inFlight.release()

	select {
	case <-old.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Old engine was not closed after searches drained")
	}
	if !oldEngine.IsClosed() {
		t.Error("Old engine should be closed")
	}
	if nextEngine.IsClosed() {
		t.Error("Current engine must stay open")
	}
}

func TestIndexHolderRetireWithoutReaders(t *testing.T) {
	old, oldEngine := mockSnapshot(1)
	next, _ := mockSnapshot(2)

	holder := &indexHolder{}
	holder.publish(old)
	holder.publish(next)

	if !oldEngine.IsClosed() {
		t.Error("Idle old engine should close as soon as it is retired")
	}
	if old.tryAcquire() {
		t.Error("A drained snapshot must not hand out new references")
	}
}

func TestIndexHolderRefreshMutexSerialization(t *testing.T) {
	holder := &indexHolder{}

	const numGoroutines = 10
	counter := 0
	doneChan := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer func() { doneChan <- true }()

			holder.refreshMu.Lock()
			defer holder.refreshMu.Unlock()

			oldCounter := counter
			time.Sleep(time.Millisecond)
			counter = oldCounter + 1
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		<-doneChan
	}

	if counter != numGoroutines {
		t.Errorf("Expected counter=%d, got %d (mutex not properly serializing)", numGoroutines, counter)
	}
}

func TestIndexHolderConcurrentSwapAndRead(t *testing.T) {
	initial, initialEngine := mockSnapshot(0)
	holder := &indexHolder{}
	holder.publish(initial)

	const numReaders = 20
	const iterations = 50

	errChan := make(chan error, numReaders*iterations)
	doneChan := make(chan bool, numReaders+1)

	for i := 0; i < numReaders; i++ {
		go func(id int) {
			defer func() { doneChan <- true }()

			for j := 0; j < iterations; j++ {
				current := holder.acquire()
				if current == nil {
					errChan <- fmt.Errorf("reader %d iteration %d: got nil", id, j)
					return
				}

				_, err := current.engine.Search(context.Background(), search.Query{Text: "q"})
				current.release()
				if err != nil {
					errChan <- fmt.Errorf("reader %d iteration %d: %v", id, j, err)
					return
				}
			}
		}(i)
	}

	engines := []*mockEngine{initialEngine}
	go func() {
		defer func() { doneChan <- true }()
		for i := 0; i < 10; i++ {
			next, engine := mockSnapshot(i + 1)
			engines = append(engines, engine)
			holder.publish(next)
		}
	}()

	for i := 0; i < numReaders+1; i++ {
		<-doneChan
	}
	close(errChan)

	for err := range errChan {
		t.Error(err)
	}

	// every replaced engine is closed once its readers are gone
	for i, engine := range engines[:len(engines)-1] {
		if !engine.IsClosed() {
			t.Errorf("Engine %d was not closed after being replaced", i)
		}
	}
	if engines[len(engines)-1].IsClosed() {
		t.Error("Current engine must stay open")
	}
}
