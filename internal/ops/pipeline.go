package ops

import (
	"context"
	"log/slog"
	"time"

	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/state"
)

// runIndexPipeline executes a full index (or, if lastCommit is non-empty,
// a sync) in the background, then auto-chains a graph build on success
// (spec §4.5 "Auto-chain"). Metadata counters are touched only on a
// non-cancelled completion (spec §7).
func (s *Service) runIndexPipeline(repoID, path, lastCommit string, task *state.Task) {
	ctx := context.Background()
	var (
		chunkCount   int
		embedPending bool
		headCommit   string
		err          error
	)

	if lastCommit == "" {
		result, indexErr := runFullIndex(ctx, s.st, repoID, path, task.Cancel)
		err = indexErr
		if result != nil {
			chunkCount, embedPending, headCommit = result.ChunkCount, result.EmbedPending, result.HeadCommit
		}
	} else {
		result, syncErr := runSync(ctx, s.st, repoID, path, lastCommit, task.Cancel)
		err = syncErr
		if result != nil {
			chunkCount, embedPending, headCommit = result.ChunkCount, result.EmbedPending, result.HeadCommit
		}
	}

	s.st.FinishTask(repoID, state.TaskIndexing)

	if errs.IsCancelled(err) {
		s.logger.Info("index pipeline cancelled", slog.String("repo_id", repoID))
		return
	}

	_ = s.st.MutateMetadata(func(md *state.Metadata) {
		repo, ok := md.Repositories[repoID]
		if !ok {
			return
		}
		repo.UpdatedAt = time.Now()
		repo.Indexing = false
		if err != nil {
			repo.LastError = err.Error()
			s.logger.Warn("index pipeline failed", slog.String("repo_id", repoID), slog.String("error", err.Error()))
			return
		}
		repo.LastError = ""
		repo.ChunkCount = chunkCount
		repo.EmbedPending = embedPending
		repo.LastIndexedCommit = headCommit
	})

	if err != nil {
		return
	}

	s.runGraphPipeline(repoID, path)
}

// runGraphPipeline runs a graph build in the background, registering its
// own task kind so it can run concurrently with a later index of the
// same repository (spec §3's per-kind concurrency limit).
func (s *Service) runGraphPipeline(repoID, path string) {
	task, started := s.st.StartTask(repoID, state.TaskGraphBuilding)
	if !started {
		return
	}
	go func() {
		ctx := context.Background()
		result, err := runBuildGraph(ctx, s.st, repoID, path, task.Cancel)
		s.st.FinishTask(repoID, state.TaskGraphBuilding)

		if errs.IsCancelled(err) {
			s.logger.Info("graph pipeline cancelled", slog.String("repo_id", repoID))
			return
		}

		_ = s.st.MutateMetadata(func(md *state.Metadata) {
			repo, ok := md.Repositories[repoID]
			if !ok {
				return
			}
			repo.UpdatedAt = time.Now()
			repo.GraphBuilding = false
			if err != nil {
				repo.LastError = err.Error()
				s.logger.Warn("graph pipeline failed", slog.String("repo_id", repoID), slog.String("error", err.Error()))
				return
			}
			repo.LastError = ""
			repo.EdgeCount = result.EdgeCount
			repo.LastGraphCommit = repo.LastIndexedCommit
		})
	}()
}
