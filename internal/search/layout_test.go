package search_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docindex/mcp-server/internal/search"
	"github.com/docindex/mcp-server/internal/searchindex"
)

func TestBuildDir_OpenDir(t *testing.T) {
	dir := t.TempDir()
	idx := loadFixture(t)

	engine, manifest, err := search.BuildDir(dir, idx)
	require.NoError(t, err)
	count, err := engine.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(idx.Len()), count)
	require.NoError(t, engine.Close())

	assert.Equal(t, searchindex.IndexSchemaVersion, search.ReadVersion(dir))
	assert.Equal(t, idx.Digest(), manifest.Digest)
	assert.Equal(t, idx.Len(), manifest.Records)
	assert.Equal(t, 3, manifest.Pages)
	assert.NotEmpty(t, manifest.BuildID)
	assert.NoDirExists(t, filepath.Join(dir, search.IndexDirName+".tmp"))

	reopened, stored, err := search.OpenDir(dir, idx.Digest())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, manifest.BuildID, stored.BuildID)

	result, err := reopened.Search(context.Background(), search.Query{Text: "reset"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "Tally.reset!", result.Hits[0].Record.Title)
}

func TestOpenDir_Stale(t *testing.T) {
	dir := t.TempDir()
	idx := loadFixture(t)

	engine, _, err := search.BuildDir(dir, idx)
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	t.Run("different asset", func(t *testing.T) {
		_, _, err := search.OpenDir(dir, "not-the-digest")
		assert.True(t, errors.Is(err, search.ErrStale))
	})

	t.Run("old schema version", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, search.VersionFileName), []byte("1"), 0644))
		_, _, err := search.OpenDir(dir, "")
		assert.True(t, errors.Is(err, search.ErrStale))
	})

	t.Run("removed", func(t *testing.T) {
		search.RemoveDir(dir)
		assert.Equal(t, 0, search.ReadVersion(dir))
		_, _, err := search.OpenDir(dir, "")
		assert.Error(t, err)
	})
}

func TestBuildDir_ReplacesPreviousBuild(t *testing.T) {
	dir := t.TempDir()
	idx := loadFixture(t)

	first, m1, err := search.BuildDir(dir, idx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	smaller := searchindex.New(idx.Records()[6:9])
	second, m2, err := search.BuildDir(dir, smaller)
	require.NoError(t, err)
	defer second.Close()

	assert.NotEqual(t, m1.BuildID, m2.BuildID)
	count, err := second.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}
