package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerp-labs/codeintel/internal/embed"
	"github.com/cerp-labs/codeintel/internal/storage"
)

type stubAdapter struct {
	dims   int
	fail   bool
	calls  int
	inputs [][]string
}

func (s *stubAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	s.inputs = append(s.inputs, append([]string(nil), texts...))
	if s.fail {
		return nil, assert.AnError
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}

func (s *stubAdapter) Dimensions() int                      { return s.dims }
func (s *stubAdapter) ModelID() string                      { return "stub" }
func (s *stubAdapter) ProviderType() embed.ProviderType      { return embed.ProviderLocal }
func (s *stubAdapter) HealthCheck(ctx context.Context) error { return nil }

func initRepo(t *testing.T) (string, *git.Repository, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return dir, repo, wt
}

func commit(t *testing.T, dir string, wt *git.Worktree, name, content, msg string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err := wt.Add(name)
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	return hash.String()
}

func remove(t *testing.T, dir string, wt *git.Worktree, name, msg string) string {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(dir, name)))
	_, err := wt.Add(name)
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	return hash.String()
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIndexer_FullIndexChunksAndEmbeds(t *testing.T) {
	dir, _, wt := initRepo(t)
	head := commit(t, dir, wt, "a.go", "package a\n\nfunc Foo() {}\n", "initial")

	store := openTestStore(t)
	ix := New(store, nil)
	adapter := &stubAdapter{dims: 4}

	result, err := ix.FullIndex(context.Background(), adapter, "repo1", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, head, result.HeadCommit)
	assert.False(t, result.EmbedPending)
	assert.Greater(t, result.ChunkCount, 0)

	count, err := store.CountChunks(context.Background(), storage.NewFilter().Eq("repo_id", "repo1"))
	require.NoError(t, err)
	assert.Equal(t, result.ChunkCount, count)
}

func TestIndexer_FullIndexLatchesEmbedPendingOnFailure(t *testing.T) {
	dir, _, wt := initRepo(t)
	commit(t, dir, wt, "a.go", "package a\n\nfunc Foo() {}\n", "initial")

	store := openTestStore(t)
	ix := New(store, nil)
	adapter := &stubAdapter{dims: 4, fail: true}

	result, err := ix.FullIndex(context.Background(), adapter, "repo1", dir, nil)
	require.NoError(t, err)
	assert.True(t, result.EmbedPending)

	chunks, err := store.QueryChunks(context.Background(), storage.NewFilter().Eq("repo_id", "repo1"), 0)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Nil(t, c.Vector)
	}
}

func TestIndexer_SyncNoopWhenHeadUnchanged(t *testing.T) {
	dir, _, wt := initRepo(t)
	commit(t, dir, wt, "a.go", "package a\n\nfunc Foo() {}\n", "initial")

	store := openTestStore(t)
	ix := New(store, nil)
	adapter := &stubAdapter{dims: 4}

	full, err := ix.FullIndex(context.Background(), adapter, "repo1", dir, nil)
	require.NoError(t, err)
	adapter.calls = 0

	result, _, err := ix.Sync(context.Background(), adapter, "repo1", dir, full.HeadCommit, nil)
	require.NoError(t, err)
	assert.Equal(t, full.ChunkCount, result.ChunkCount)
	assert.Equal(t, 0, adapter.calls)
}

func TestIndexer_SyncReindexesOnlyChangedPaths(t *testing.T) {
	dir, _, wt := initRepo(t)
	first := commit(t, dir, wt, "a.go", "package a\n\nfunc Foo() {}\n", "initial")
	_ = first
	commit(t, dir, wt, "b.go", "package a\n\nfunc Bar() {}\n", "add b")

	store := openTestStore(t)
	ix := New(store, nil)
	adapter := &stubAdapter{dims: 4}

	full, err := ix.FullIndex(context.Background(), adapter, "repo1", dir, nil)
	require.NoError(t, err)

	third := commit(t, dir, wt, "b.go", "package a\n\nfunc Bar() { Foo() }\n", "modify b")

	result, _, err := ix.Sync(context.Background(), adapter, "repo1", dir, full.HeadCommit, nil)
	require.NoError(t, err)
	assert.Equal(t, third, result.HeadCommit)

	chunks, err := store.QueryChunks(context.Background(), storage.NewFilter().Eq("repo_id", "repo1").Eq("file_path", "a.go"), 0)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks, "unrelated file must survive untouched")
}

func TestIndexer_SyncDeletesChunksForRemovedPath(t *testing.T) {
	dir, _, wt := initRepo(t)
	commit(t, dir, wt, "a.go", "package a\n\nfunc Foo() {}\n", "initial")
	commit(t, dir, wt, "b.go", "package a\n\nfunc Bar() {}\n", "add b")

	store := openTestStore(t)
	ix := New(store, nil)
	adapter := &stubAdapter{dims: 4}

	full, err := ix.FullIndex(context.Background(), adapter, "repo1", dir, nil)
	require.NoError(t, err)

	remove(t, dir, wt, "b.go", "remove b")

	_, _, err = ix.Sync(context.Background(), adapter, "repo1", dir, full.HeadCommit, nil)
	require.NoError(t, err)

	chunks, err := store.QueryChunks(context.Background(), storage.NewFilter().Eq("repo_id", "repo1").Eq("file_path", "b.go"), 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestIndexer_SyncFallsBackToFullIndexOnUnknownCommit(t *testing.T) {
	dir, _, wt := initRepo(t)
	commit(t, dir, wt, "a.go", "package a\n\nfunc Foo() {}\n", "initial")

	store := openTestStore(t)
	ix := New(store, nil)
	adapter := &stubAdapter{dims: 4}

	result, _, err := ix.Sync(context.Background(), adapter, "repo1", dir, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", nil)
	require.NoError(t, err)
	assert.Greater(t, result.ChunkCount, 0)
}

func TestIndexer_CancellationStopsWalk(t *testing.T) {
	dir, _, wt := initRepo(t)
	commit(t, dir, wt, "a.go", "package a\n\nfunc Foo() {}\n", "initial")

	store := openTestStore(t)
	ix := New(store, nil)
	adapter := &stubAdapter{dims: 4}

	cancel := make(chan struct{})
	close(cancel)

	_, err := ix.FullIndex(context.Background(), adapter, "repo1", dir, cancel)
	assert.Error(t, err)
}
