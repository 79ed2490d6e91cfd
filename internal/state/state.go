package state

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/cerp-labs/codeintel/internal/embed"
	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/storage"
)

// TaskKind distinguishes the two background pipelines that serialise
// per repository via the in-flight task registry.
type TaskKind string

const (
	TaskIndexing      TaskKind = "indexing"
	TaskGraphBuilding TaskKind = "graph_building"
)

// Task tracks one in-flight background pipeline and its single-sender
// cancellation signal (spec §5).
type Task struct {
	Kind   TaskKind
	Cancel chan struct{}
	once   sync.Once
}

// signalCancel closes the cancellation channel exactly once.
func (t *Task) signalCancel() {
	t.once.Do(func() { close(t.Cancel) })
}

// State is the single shared mutable core of a service process: the
// metadata document, the owned embedding adapter, the store connection,
// and the in-flight task registries. Access is arbitrated by one
// reader/writer lock (spec §4.2): long-running task bodies hold the
// reader lock so concurrent status/search calls proceed; metadata
// mutations take the writer lock briefly at completion.
type State struct {
	dataDir string
	mu      sync.RWMutex

	ready    bool
	metadata *Metadata
	adapter  embed.Adapter
	store    *storage.Store

	lock *flock.Flock

	tasksMu sync.RWMutex
	tasks   map[string]*Task // repo_id -> in-flight task, keyed per kind below
}

// taskKey namespaces the task registry by repository and kind so an
// indexing task and a graph-build task for the same repository can be
// in flight simultaneously without colliding.
func taskKey(repoID string, kind TaskKind) string {
	return string(kind) + ":" + repoID
}

// New constructs an unready State bound to dataDir. Call Initialize to
// perform the on-disk setup described by the `initialize` method.
func New(dataDir string) *State {
	return &State{
		dataDir: dataDir,
		tasks:   make(map[string]*Task),
	}
}

// Initialize performs the `initialize` method's side effects: creates
// on-disk directories, loads persisted metadata, constructs the
// embedding adapter from the persisted provider configuration, opens
// the columnar store, and marks the shared state ready exactly once.
// Further calls are no-ops on the shared state but still succeed.
func (s *State) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	if err := ensureDir(s.dataDir); err != nil {
		return errs.Wrap(errs.KindFilesystem, "create data directory", err)
	}

	lockPath := filepath.Join(s.dataDir, "codeintel.lock")
	lk := flock.New(lockPath)
	locked, err := lk.TryLock()
	if err != nil {
		return errs.Wrap(errs.KindFilesystem, "acquire data directory lock", err)
	}
	if !locked {
		return errs.New(errs.KindFilesystem, "data directory is locked by another process")
	}
	s.lock = lk

	md, err := loadMetadata(s.metadataPath())
	if err != nil {
		return errs.Wrap(errs.KindInternal, "load metadata", err)
	}
	s.metadata = md

	cfg := embed.Config{
		Provider:   embed.ProviderType(md.Embedding.Provider),
		BaseURL:    md.Embedding.BaseURL,
		Model:      md.Embedding.Model,
		Dimensions: md.Embedding.Dimensions,
		Region:     md.Embedding.Region,
		Profile:    md.Embedding.Profile,
	}
	base, err := embed.New(cfg)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "construct embedding adapter", err)
	}
	adapter, err := embed.WithResilience(base)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "wrap embedding adapter", err)
	}
	s.adapter = adapter

	st, err := storage.Open(filepath.Join(s.dataDir, "store"))
	if err != nil {
		return errs.Wrap(errs.KindInternal, "open columnar store", err)
	}
	s.store = st

	s.ready = true
	return nil
}

// Shutdown signals cancellation to every in-flight task, flushes
// metadata, closes the store, and releases the data directory lock.
func (s *State) Shutdown(ctx context.Context) error {
	s.tasksMu.Lock()
	for _, t := range s.tasks {
		t.signalCancel()
	}
	s.tasks = make(map[string]*Task)
	s.tasksMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.metadata != nil {
		if err := s.metadata.save(s.metadataPath()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.ready = false
	return firstErr
}

// Ready reports whether Initialize has completed successfully.
func (s *State) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Adapter returns the owned embedding adapter, safe to call concurrently
// from multiple tasks.
func (s *State) Adapter() embed.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adapter
}

// Store returns the columnar store connection.
func (s *State) Store() *storage.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// DataDir returns the service's data directory path.
func (s *State) DataDir() string { return s.dataDir }

func (s *State) metadataPath() string {
	return filepath.Join(s.dataDir, "metadata.json")
}

// WithReadLock runs fn holding the reader lock, for long-running task
// bodies that must not block concurrent status/search calls.
func (s *State) WithReadLock(fn func(md *Metadata)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.metadata)
}

// MutateMetadata runs fn holding the writer lock and persists the
// document afterward. Used for brief counter/flag updates at task
// completion.
func (s *State) MutateMetadata(fn func(md *Metadata)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.metadata)
	return s.metadata.save(s.metadataPath())
}

// StartTask registers a new in-flight task for repoID/kind and returns
// (task, true), or (nil, false) if one is already registered — the caller
// surfaces `already_indexing` / `already_building` in that case.
func (s *State) StartTask(repoID string, kind TaskKind) (*Task, bool) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()

	key := taskKey(repoID, kind)
	if _, exists := s.tasks[key]; exists {
		return nil, false
	}
	t := &Task{Kind: kind, Cancel: make(chan struct{})}
	s.tasks[key] = t
	return t, true
}

// FinishTask removes the task registered for repoID/kind, if any.
func (s *State) FinishTask(repoID string, kind TaskKind) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	delete(s.tasks, taskKey(repoID, kind))
}

// CancelTask signals cancellation for repoID/kind and removes it from
// the registry, per the `remove_repository`/`shutdown` contract.
func (s *State) CancelTask(repoID string, kind TaskKind) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	key := taskKey(repoID, kind)
	if t, ok := s.tasks[key]; ok {
		t.signalCancel()
		delete(s.tasks, key)
	}
}

// IsRunning reports whether a task of kind is in flight for repoID —
// the registry is the authoritative liveness signal (spec §3).
func (s *State) IsRunning(repoID string, kind TaskKind) bool {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	_, ok := s.tasks[taskKey(repoID, kind)]
	return ok
}
