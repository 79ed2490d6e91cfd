package ops

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/state"
)

type addRepositoryParams struct {
	Path string `json:"path"`
}

// AddRepository canonicalises the path, verifies it is a Git repository,
// registers it idempotently on repository identifier, and spawns the
// background index-then-graph pipeline (spec §4.8).
func (s *Service) AddRepository(ctx context.Context, raw json.RawMessage) (any, error) {
	var params addRepositoryParams
	if err := json.Unmarshal(raw, &params); err != nil || params.Path == "" {
		return nil, errs.New(errs.KindValidation, "path is required")
	}

	canonical, err := state.CanonicalizePath(params.Path)
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "canonicalise path", err)
	}
	repoID := state.RepositoryID(canonical)

	if s.st.IsRunning(repoID, state.TaskIndexing) {
		return map[string]string{"repo_id": repoID, "status": "already_indexing"}, nil
	}

	if _, err := openGitRepo(canonical); err != nil {
		return nil, err
	}

	now := time.Now()
	_ = s.st.MutateMetadata(func(md *state.Metadata) {
		repo, exists := md.Repositories[repoID]
		if !exists {
			repo = &state.Repository{ID: repoID, CreatedAt: now}
			md.Repositories[repoID] = repo
		}
		repo.Name = displayName(canonical)
		repo.Path = canonical
		repo.Indexing = true
		repo.UpdatedAt = now
	})

	task, started := s.st.StartTask(repoID, state.TaskIndexing)
	if !started {
		return map[string]string{"repo_id": repoID, "status": "already_indexing"}, nil
	}
	go s.runIndexPipeline(repoID, canonical, "", task)

	return map[string]string{"repo_id": repoID, "status": "indexing"}, nil
}

type repoIDParams struct {
	RepoID string `json:"repo_id"`
}

// RemoveRepository cancels any in-flight tasks, deletes the repository's
// chunk/edge rows, and drops it from metadata and every workspace.
func (s *Service) RemoveRepository(ctx context.Context, raw json.RawMessage) (any, error) {
	var params repoIDParams
	if err := json.Unmarshal(raw, &params); err != nil || params.RepoID == "" {
		return nil, errs.New(errs.KindValidation, "repo_id is required")
	}

	s.st.CancelTask(params.RepoID, state.TaskIndexing)
	s.st.CancelTask(params.RepoID, state.TaskGraphBuilding)

	if err := deleteRepoData(ctx, s.st.Store(), params.RepoID); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "delete repository data", err)
	}

	_ = s.st.MutateMetadata(func(md *state.Metadata) {
		delete(md.Repositories, params.RepoID)
		for _, ws := range md.Workspaces {
			ws.RepoIDs = removeString(ws.RepoIDs, params.RepoID)
		}
	})

	return map[string]string{"repo_id": params.RepoID, "status": "removed"}, nil
}

// ListRepositories returns every registered repository record.
func (s *Service) ListRepositories(ctx context.Context, raw json.RawMessage) (any, error) {
	var repos []state.Repository
	s.st.WithReadLock(func(md *state.Metadata) {
		for _, r := range md.Repositories {
			repos = append(repos, *r)
		}
	})
	return map[string]any{"repositories": repos}, nil
}

type syncParams struct {
	RepoID *string `json:"repo_id,omitempty"`
}

// Sync spawns an incremental-sync pipeline for one repository, or every
// repository not already indexing when repo_id is omitted.
func (s *Service) Sync(ctx context.Context, raw json.RawMessage) (any, error) {
	var params syncParams
	_ = json.Unmarshal(raw, &params)

	if params.RepoID != nil {
		status, err := s.startSync(*params.RepoID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"repo_id": *params.RepoID, "status": status}, nil
	}

	var ids []string
	s.st.WithReadLock(func(md *state.Metadata) {
		for id := range md.Repositories {
			ids = append(ids, id)
		}
	})
	statuses := make(map[string]string, len(ids))
	for _, id := range ids {
		status, err := s.startSync(id)
		if err != nil {
			statuses[id] = "error: " + err.Error()
			continue
		}
		statuses[id] = status
	}
	return map[string]any{"repositories": statuses}, nil
}

func (s *Service) startSync(repoID string) (string, error) {
	if s.st.IsRunning(repoID, state.TaskIndexing) {
		return "already_indexing", nil
	}

	var path, lastCommit string
	found := false
	s.st.WithReadLock(func(md *state.Metadata) {
		repo, ok := md.Repositories[repoID]
		if !ok {
			return
		}
		found = true
		path = repo.Path
		lastCommit = repo.LastIndexedCommit
	})
	if !found {
		return "", errs.New(errs.KindValidation, "unknown repository: "+repoID)
	}

	task, started := s.st.StartTask(repoID, state.TaskIndexing)
	if !started {
		return "already_indexing", nil
	}
	_ = s.st.MutateMetadata(func(md *state.Metadata) {
		if repo, ok := md.Repositories[repoID]; ok {
			repo.Indexing = true
		}
	})
	go s.runIndexPipeline(repoID, path, lastCommit, task)
	return "syncing", nil
}

// BuildGraph spawns a graph build for one repository, or reports
// already_building if one is already in flight.
func (s *Service) BuildGraph(ctx context.Context, raw json.RawMessage) (any, error) {
	var params repoIDParams
	if err := json.Unmarshal(raw, &params); err != nil || params.RepoID == "" {
		return nil, errs.New(errs.KindValidation, "repo_id is required")
	}

	var path string
	found := false
	s.st.WithReadLock(func(md *state.Metadata) {
		repo, ok := md.Repositories[params.RepoID]
		if !ok {
			return
		}
		found = true
		path = repo.Path
	})
	if !found {
		return nil, errs.New(errs.KindValidation, "unknown repository: "+params.RepoID)
	}

	if s.st.IsRunning(params.RepoID, state.TaskGraphBuilding) {
		return map[string]string{"repo_id": params.RepoID, "status": "already_building"}, nil
	}

	_ = s.st.MutateMetadata(func(md *state.Metadata) {
		if repo, ok := md.Repositories[params.RepoID]; ok {
			repo.GraphBuilding = true
		}
	})
	s.runGraphPipeline(params.RepoID, path)

	return map[string]string{"repo_id": params.RepoID, "status": "building"}, nil
}

// Status reports every repository record with its live task-registry
// liveness overriding the persisted mirror flags (spec §3).
func (s *Service) Status(ctx context.Context, raw json.RawMessage) (any, error) {
	var repos []state.Repository
	s.st.WithReadLock(func(md *state.Metadata) {
		for _, r := range md.Repositories {
			repos = append(repos, *r)
		}
	})
	for i := range repos {
		repos[i].Indexing = s.st.IsRunning(repos[i].ID, state.TaskIndexing)
		repos[i].GraphBuilding = s.st.IsRunning(repos[i].ID, state.TaskGraphBuilding)
	}
	return map[string]any{"repositories": repos, "ready": s.st.Ready()}, nil
}

func displayName(path string) string {
	return filepath.Base(path)
}

func removeString(items []string, target string) []string {
	out := items[:0]
	for _, v := range items {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
