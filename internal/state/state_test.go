package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerp-labs/codeintel/internal/errs"
)

func TestState_InitializeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.Ready())
	require.NoError(t, s.Initialize(ctx), "second initialize must be a no-op, not an error")

	require.NoError(t, s.Shutdown(ctx))
}

func TestState_InitializeFailsWhenLocked(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a := New(dir)
	require.NoError(t, a.Initialize(ctx))
	defer a.Shutdown(ctx)

	b := New(dir)
	err := b.Initialize(ctx)
	assert.Error(t, err)
}

func TestState_TaskRegistrySerializesPerRepository(t *testing.T) {
	s := New(t.TempDir())

	task, ok := s.StartTask("repo-1", TaskIndexing)
	require.True(t, ok)
	require.NotNil(t, task)
	assert.True(t, s.IsRunning("repo-1", TaskIndexing))

	_, ok = s.StartTask("repo-1", TaskIndexing)
	assert.False(t, ok, "a second indexing task for the same repo must be rejected")

	graphTask, ok := s.StartTask("repo-1", TaskGraphBuilding)
	require.True(t, ok, "graph building is a distinct kind and may run alongside indexing")
	require.NotNil(t, graphTask)

	s.FinishTask("repo-1", TaskIndexing)
	assert.False(t, s.IsRunning("repo-1", TaskIndexing))

	_, ok = s.StartTask("repo-1", TaskIndexing)
	assert.True(t, ok)
}

func TestState_CancelTaskClosesChannelAndRemoves(t *testing.T) {
	s := New(t.TempDir())
	task, ok := s.StartTask("repo-1", TaskIndexing)
	require.True(t, ok)

	s.CancelTask("repo-1", TaskIndexing)

	select {
	case <-task.Cancel:
	default:
		t.Fatal("expected cancellation channel to be closed")
	}
	assert.False(t, s.IsRunning("repo-1", TaskIndexing))
}

func TestState_ShutdownCancelsAllTasks(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.Initialize(context.Background()))

	task, ok := s.StartTask("repo-1", TaskIndexing)
	require.True(t, ok)

	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case <-task.Cancel:
	default:
		t.Fatal("expected shutdown to cancel in-flight tasks")
	}
}

func TestState_MetadataPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := New(dir)
	require.NoError(t, s.Initialize(ctx))
	err := s.MutateMetadata(func(md *Metadata) {
		md.Repositories["abc"] = &Repository{ID: "abc", Name: "demo", Path: "/tmp/demo"}
	})
	require.NoError(t, err)
	require.NoError(t, s.Shutdown(ctx))

	reopened := New(dir)
	require.NoError(t, reopened.Initialize(ctx))
	defer reopened.Shutdown(ctx)

	var name string
	reopened.WithReadLock(func(md *Metadata) {
		name = md.Repositories["abc"].Name
	})
	assert.Equal(t, "demo", name)
}

func TestRepositoryID_StableForSamePath(t *testing.T) {
	a := RepositoryID("/home/user/project")
	b := RepositoryID("/home/user/project")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, RepositoryID("/home/user/other"))
}

func TestCanonicalizePath(t *testing.T) {
	dir := t.TempDir()
	resolved, err := CanonicalizePath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(dir), filepath.Clean(resolved))
}

func TestState_AdapterAndStoreAccessibleAfterInitialize(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := New(dir)
	require.NoError(t, s.Initialize(ctx))
	defer s.Shutdown(ctx)

	assert.NotNil(t, s.Adapter())
	assert.NotNil(t, s.Store())
}

func TestState_IsCancelledErrorRecognised(t *testing.T) {
	assert.True(t, errs.IsCancelled(errs.ErrCancelled))
}
