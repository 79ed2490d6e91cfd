package gitsync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, wt *git.Worktree, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err := wt.Add(name)
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
	hash, err := wt.Commit("commit "+name, &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	return hash.String()
}

func TestGitsync_HeadAndDiff(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	first := commitFile(t, wt, dir, "a.go", "package a\n")
	second := commitFile(t, wt, dir, "b.go", "package b\n")

	r, err := Open(dir)
	require.NoError(t, err)

	head, err := r.HeadCommit()
	require.NoError(t, err)
	assert.Equal(t, second, head)

	changes, err := r.Diff(first, second)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "b.go", changes[0].Path)
	assert.Equal(t, ChangeAdded, changes[0].Kind)
}

func TestGitsync_CommitExists(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	hash := commitFile(t, wt, dir, "a.go", "package a\n")

	r, err := Open(dir)
	require.NoError(t, err)

	assert.True(t, r.CommitExists(hash))
	assert.False(t, r.CommitExists("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"))
	assert.False(t, r.CommitExists("not-a-hash"))
}

func TestGitsync_DiffDetectsModifiedAndDeleted(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	first := commitFile(t, wt, dir, "a.go", "package a\n")
	commitFile(t, wt, dir, "b.go", "package b\n")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a // changed\n"), 0o644))
	_, err = wt.Add("a.go")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "b.go")))
	_, err = wt.Add("b.go")
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
	third, err := wt.Commit("modify and delete", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	r, err := Open(dir)
	require.NoError(t, err)

	changes, err := r.Diff(first, third.String())
	require.NoError(t, err)

	kinds := map[string]ChangeKind{}
	for _, c := range changes {
		kinds[c.Path] = c.Kind
	}
	assert.Equal(t, ChangeModified, kinds["a.go"])
	assert.Equal(t, ChangeDeleted, kinds["b.go"])
}
