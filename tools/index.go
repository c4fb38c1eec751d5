package tools

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/docindex/mcp-server/internal/config"
	"github.com/docindex/mcp-server/internal/search"
	"github.com/docindex/mcp-server/internal/searchindex"
)

// newSnapshot prepares the configured engine over idx.
//
// The bleve index on disk is reused only while no snapshot is active: an
// index directory cannot be opened twice by one process, so a refresh
// always builds a new one and renames it into place.
func newSnapshot(idx *searchindex.Index, source string) (*snapshot, error) {
	snap := &snapshot{
		index:    idx,
		source:   source,
		loadedAt: time.Now(),
	}

	if settings.Engine == config.EngineScan {
		snap.engine = search.NewScanner(idx)
		return snap, nil
	}

	dir := filepath.Join(dataDir, searchDir)

	if indexMgr.current.Load() == nil {
		engine, manifest, err := search.OpenDir(dir, idx.Digest())
		if err == nil {
			log.Printf("✓ Reusing search index %s (v%d)", manifest.BuildID, manifest.SchemaVersion)
			snap.engine = engine
			snap.buildID = manifest.BuildID
			return snap, nil
		}
		log.Printf("Stored search index unusable (%v), rebuilding...", err)
	}

	buildStart := time.Now()
	engine, manifest, err := search.BuildDir(dir, idx)
	if err != nil {
		return nil, fmt.Errorf("failed to build search index: %w", err)
	}
	log.Printf("Indexed %d records in %v", idx.Len(), time.Since(buildStart).Round(time.Millisecond))

	snap.engine = engine
	snap.buildID = manifest.BuildID
	return snap, nil
}
