package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docindex/mcp-server/internal/searchindex"
)

// Files of an index directory
const (
	IndexDirName     = "index"
	VersionFileName  = ".index_version"
	ManifestFileName = "manifest.json"
)

// ErrStale is returned by OpenDir when the stored index does not match
var ErrStale = errors.New("stored index is stale")

// Manifest describes the build stored in an index directory
type Manifest struct {
	BuildID       string    `json:"build_id"`
	SchemaVersion int       `json:"schema_version"`
	Digest        string    `json:"digest"`
	Records       int       `json:"records"`
	Pages         int       `json:"pages"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReadVersion returns the schema version recorded in dir, 0 if none
func ReadVersion(dir string) int {
	data, err := os.ReadFile(filepath.Join(dir, VersionFileName))
	if err != nil {
		return 0 // no version file = v0 (old format)
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return version
}

// WriteVersion records the current schema version in dir
func WriteVersion(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	content := strconv.Itoa(searchindex.IndexSchemaVersion)
	return os.WriteFile(filepath.Join(dir, VersionFileName), []byte(content), 0644)
}

// ReadManifest reads dir/manifest.json
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFileName), append(data, '\n'), 0644)
}

// BuildDir indexes idx into dir/index. The index is built in a temporary
// directory and renamed into place, so a failed build leaves the previous
// index untouched. The schema version and manifest are written last.
func BuildDir(dir string, idx *searchindex.Index) (*BleveEngine, *Manifest, error) {
	indexPath := filepath.Join(dir, IndexDirName)
	tempPath := indexPath + ".tmp"

	// leftover from a crashed build
	os.RemoveAll(tempPath)

	engine, err := BuildBleve(tempPath, idx)
	if err != nil {
		os.RemoveAll(tempPath)
		return nil, nil, err
	}
	if err := engine.Close(); err != nil {
		os.RemoveAll(tempPath)
		return nil, nil, fmt.Errorf("failed to close temp index: %w", err)
	}

	if err := os.RemoveAll(indexPath); err != nil && !os.IsNotExist(err) {
		os.RemoveAll(tempPath)
		return nil, nil, fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.Rename(tempPath, indexPath); err != nil {
		os.RemoveAll(tempPath)
		return nil, nil, fmt.Errorf("failed to rename temp index: %w", err)
	}

	manifest := &Manifest{
		BuildID:       uuid.New().String(),
		SchemaVersion: searchindex.IndexSchemaVersion,
		Digest:        idx.Digest(),
		Records:       idx.Len(),
		Pages:         len(idx.Pages()),
		CreatedAt:     time.Now().UTC(),
	}
	if err := writeManifest(dir, manifest); err != nil {
		return nil, nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := WriteVersion(dir); err != nil {
		return nil, nil, fmt.Errorf("failed to write index version: %w", err)
	}

	final, err := OpenBleve(indexPath)
	if err != nil {
		return nil, nil, err
	}
	return final, manifest, nil
}

// OpenDir opens dir/index when its schema version is current and, for a
// non-empty digest, when it was built from the asset with that digest.
func OpenDir(dir, digest string) (*BleveEngine, *Manifest, error) {
	if version := ReadVersion(dir); version != searchindex.IndexSchemaVersion {
		return nil, nil, fmt.Errorf("%w: schema v%d, want v%d", ErrStale, version, searchindex.IndexSchemaVersion)
	}

	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStale, err)
	}
	if digest != "" && manifest.Digest != digest {
		return nil, nil, fmt.Errorf("%w: built from a different asset", ErrStale)
	}

	engine, err := OpenBleve(filepath.Join(dir, IndexDirName))
	if err != nil {
		return nil, nil, err
	}
	return engine, manifest, nil
}

// RemoveDir deletes the index, manifest and version file in dir
func RemoveDir(dir string) {
	os.RemoveAll(filepath.Join(dir, IndexDirName))
	os.Remove(filepath.Join(dir, ManifestFileName))
	os.Remove(filepath.Join(dir, VersionFileName))
}
