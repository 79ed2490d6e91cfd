package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDataDir_EmptyDirReportsNoRepos(t *testing.T) {
	dir := t.TempDir()
	snap, err := snapshotDataDir(dir)
	require.NoError(t, err)
	assert.Empty(t, snap.Repos)
	assert.Empty(t, snap.Webhooks)
}

func TestSnapshotDataDir_ReadsPersistedMetadata(t *testing.T) {
	dir := t.TempDir()
	metadata := `{
		"repositories": {
			"r1": {"id": "r1", "name": "demo", "chunk_count": 42, "edge_count": 7, "indexing": true}
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(metadata), 0o644))

	snap, err := snapshotDataDir(dir)
	require.NoError(t, err)
	require.Len(t, snap.Repos, 1)
	assert.Equal(t, "demo", snap.Repos[0].Name)
	assert.Equal(t, 42, snap.Repos[0].ChunkCount)
	assert.True(t, snap.Repos[0].Indexing)
}

func TestNewRootCmd_HasServeAndStatusSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["status"])
}
