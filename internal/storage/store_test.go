package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_UpsertAndQueryChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "c1", RepoID: "r1", FilePath: "a.go", Language: "go", SymbolType: "function", StartLine: 1, EndLine: 5, Content: "func A(){}"},
		{ID: "c2", RepoID: "r1", FilePath: "b.go", Language: "go", SymbolType: "function", StartLine: 1, EndLine: 5, Content: "func B(){}"},
	}
	require.NoError(t, s.UpsertChunks(ctx, chunks))

	n, err := s.CountChunks(ctx, NewFilter().Eq("repo_id", "r1"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := s.QueryChunks(ctx, NewFilter().Eq("file_path", "a.go"), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].ID)
}

func TestStore_UpsertReplacesByKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunks(ctx, []Chunk{{ID: "c1", RepoID: "r1", FilePath: "a.go", Content: "old"}}))
	require.NoError(t, s.UpsertChunks(ctx, []Chunk{{ID: "c1", RepoID: "r1", FilePath: "a.go", Content: "new"}}))

	rows, err := s.QueryChunks(ctx, NewFilter().Eq("repo_id", "r1"), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0].Content)
}

func TestStore_DeleteChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunks(ctx, []Chunk{
		{ID: "c1", RepoID: "r1", FilePath: "a.go"},
		{ID: "c2", RepoID: "r1", FilePath: "b.go"},
	}))
	require.NoError(t, s.DeleteChunks(ctx, NewFilter().Eq("file_path", "a.go")))

	n, err := s.CountChunks(ctx, NewFilter().Eq("repo_id", "r1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_FilterOr(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunks(ctx, []Chunk{
		{ID: "c1", RepoID: "r1", Language: "go"},
		{ID: "c2", RepoID: "r1", Language: "python"},
		{ID: "c3", RepoID: "r1", Language: "rust"},
	}))

	f := NewFilter().Eq("repo_id", "r1").Or(
		NewFilter().Eq("language", "go"),
		NewFilter().Eq("language", "python"),
	)
	n, err := s.CountChunks(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_VectorQueryScoresByDistance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunks(ctx, []Chunk{
		{ID: "near", RepoID: "r1", Vector: []float32{1, 0, 0}},
		{ID: "far", RepoID: "r1", Vector: []float32{0, 1, 0}},
		{ID: "pending", RepoID: "r1", Vector: nil},
	}))

	results, err := s.VectorQuery(ctx, []float32{1, 0, 0}, NewFilter().Eq("repo_id", "r1"), 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "near", results[0].ID)
	assert.Less(t, results[0].Distance, float32(0.01))
}

func TestStore_EdgesUpsertQueryDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	edges := []Edge{
		{ID: "e1", RepoID: "r1", SourceFile: "a.go", SourceLine: 10, TargetName: "Foo", EdgeType: "calls"},
		{ID: "e2", RepoID: "r1", SourceFile: "a.go", SourceLine: 20, TargetName: "fmt", EdgeType: "imports"},
	}
	require.NoError(t, s.UpsertEdges(ctx, edges))

	n, err := s.CountEdges(ctx, NewFilter().Eq("repo_id", "r1").Eq("edge_type", "calls"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteEdges(ctx, NewFilter().Eq("repo_id", "r1")))
	n, err = s.CountEdges(ctx, NewFilter().Eq("repo_id", "r1"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
