// Package indexer implements the full-index and incremental-sync
// pipelines of spec §4.5: walk, chunk, batch embed-and-upsert, and
// Git-diff sync, sharing the scanner/chunker policy with the graph
// builder.
package indexer

import (
	"context"
	"log/slog"
	"os"

	"github.com/cerp-labs/codeintel/internal/chunker"
	"github.com/cerp-labs/codeintel/internal/embed"
	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/gitsync"
	"github.com/cerp-labs/codeintel/internal/lang"
	"github.com/cerp-labs/codeintel/internal/scanner"
	"github.com/cerp-labs/codeintel/internal/storage"
)

// embedBatchSize is the accumulation boundary before embed-and-upsert runs,
// per spec §4.5 step 4.
const embedBatchSize = 32

// Result is returned from a successful full index or sync.
type Result struct {
	ChunkCount   int
	EmbedPending bool
	HeadCommit   string
}

// Indexer runs the chunking and embedding pipeline over one repository
// at a time, writing into a shared columnar store.
type Indexer struct {
	store    *storage.Store
	registry *lang.Registry
	logger   *slog.Logger
}

// New constructs an Indexer writing into store.
func New(store *storage.Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, registry: lang.NewRegistry(), logger: logger}
}

// FullIndex walks repoPath from scratch, chunking and embedding every
// eligible file, per spec §4.5's "Full index".
func (ix *Indexer) FullIndex(ctx context.Context, adapter embed.Adapter, repoID, repoPath string, cancel <-chan struct{}) (*Result, error) {
	repo, err := gitsync.Open(repoPath)
	if err != nil {
		return nil, err
	}
	head, err := repo.HeadCommit()
	if err != nil {
		return nil, err
	}

	sc, err := scanner.New(repoPath, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "open scanner", err)
	}
	chk := chunker.New()
	defer chk.Close()

	ix.logger.Info("full index started", slog.String("repo_id", repoID), slog.String("head", head))

	embedPending, err := ix.walkAndIndex(ctx, adapter, chk, sc, repoID, nil, cancel)
	if err != nil {
		return nil, err
	}

	count, err := ix.store.CountChunks(ctx, storage.NewFilter().Eq("repo_id", repoID))
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "count chunks", err)
	}

	ix.logger.Info("full index finished", slog.String("repo_id", repoID), slog.Int("chunk_count", count))
	return &Result{ChunkCount: count, EmbedPending: embedPending, HeadCommit: head}, nil
}

// Sync performs the incremental-sync algorithm of spec §4.5 against the
// repository's last-indexed commit. An unknown stored commit (absent from
// the object database) falls back to a full re-index.
func (ix *Indexer) Sync(ctx context.Context, adapter embed.Adapter, repoID, repoPath, lastIndexedCommit string, cancel <-chan struct{}) (*Result, *Result, error) {
	repo, err := gitsync.Open(repoPath)
	if err != nil {
		return nil, nil, err
	}
	head, err := repo.HeadCommit()
	if err != nil {
		return nil, nil, err
	}

	if lastIndexedCommit == "" || !repo.CommitExists(lastIndexedCommit) {
		full, err := ix.FullIndex(ctx, adapter, repoID, repoPath, cancel)
		return full, nil, err
	}

	if lastIndexedCommit == head {
		count, err := ix.store.CountChunks(ctx, storage.NewFilter().Eq("repo_id", repoID))
		if err != nil {
			return nil, nil, errs.Wrap(errs.KindInternal, "count chunks", err)
		}
		return &Result{ChunkCount: count, HeadCommit: head}, &Result{ChunkCount: count, HeadCommit: head}, nil
	}

	changes, err := repo.Diff(lastIndexedCommit, head)
	if err != nil {
		return nil, nil, err
	}

	onlyPaths := make(map[string]bool, len(changes))
	for _, c := range changes {
		onlyPaths[c.Path] = true
		if err := ix.store.DeleteChunks(ctx, storage.NewFilter().Eq("repo_id", repoID).Eq("file_path", c.Path)); err != nil {
			return nil, nil, errs.Wrap(errs.KindInternal, "delete stale chunks", err)
		}
	}

	var reindex []string
	for _, c := range changes {
		if c.Kind != gitsync.ChangeDeleted {
			reindex = append(reindex, c.Path)
		}
	}

	sc, err := scanner.New(repoPath, nil)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindFilesystem, "open scanner", err)
	}
	chk := chunker.New()
	defer chk.Close()

	ix.logger.Info("sync started", slog.String("repo_id", repoID), slog.Int("changed_paths", len(reindex)))

	embedPending, err := ix.walkAndIndex(ctx, adapter, chk, sc, repoID, reindex, cancel)
	if err != nil {
		return nil, nil, err
	}

	count, err := ix.store.CountChunks(ctx, storage.NewFilter().Eq("repo_id", repoID))
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindInternal, "count chunks", err)
	}

	result := &Result{ChunkCount: count, EmbedPending: embedPending, HeadCommit: head}
	ix.logger.Info("sync finished", slog.String("repo_id", repoID), slog.Int("chunk_count", count))
	return result, result, nil
}

// walkAndIndex walks repoPath (restricted to onlyPaths when non-nil),
// chunking and accumulating into embed-and-upsert batches of 32.
func (ix *Indexer) walkAndIndex(ctx context.Context, adapter embed.Adapter, chk *chunker.Chunker, sc *scanner.Scanner, repoID string, onlyPaths []string, cancel <-chan struct{}) (bool, error) {
	var allow map[string]bool
	if onlyPaths != nil {
		allow = make(map[string]bool, len(onlyPaths))
		for _, p := range onlyPaths {
			allow[p] = true
		}
	}

	var batch []chunker.Chunk
	embedPending := false

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		pending, err := ix.embedAndUpsert(ctx, adapter, repoID, batch)
		if err != nil {
			return err
		}
		embedPending = embedPending || pending
		batch = batch[:0]
		return nil
	}

	walkErr := sc.Walk(ctx, cancel, func(f scanner.File) error {
		if allow != nil && !allow[f.RelPath] {
			return nil
		}
		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			ix.logger.Debug("indexer skip unreadable file", slog.String("path", f.RelPath))
			return nil
		}

		language := ix.detectLanguage(f.RelPath)
		chunks, err := chk.Chunk(ctx, repoID, f.RelPath, content, language)
		if err != nil {
			ix.logger.Debug("indexer skip unchunkable file", slog.String("path", f.RelPath))
			return nil
		}
		batch = append(batch, chunks...)

		if len(batch) >= embedBatchSize {
			select {
			case <-cancel:
				return errs.ErrCancelled
			case <-ctx.Done():
				return errs.ErrCancelled
			default:
			}
			return flush()
		}
		return nil
	})
	if walkErr != nil {
		return false, mapWalkErr(walkErr)
	}
	if err := flush(); err != nil {
		return false, err
	}
	return embedPending, nil
}

// embedAndUpsert embeds one batch and upserts it, latching embed_pending
// on failure rather than aborting the pipeline (spec §4.5).
func (ix *Indexer) embedAndUpsert(ctx context.Context, adapter embed.Adapter, repoID string, batch []chunker.Chunk) (bool, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := adapter.EmbedBatch(ctx, texts)
	pending := false
	if err != nil {
		ix.logger.Warn("embedding batch failed, upserting without vectors",
			slog.String("repo_id", repoID), slog.Int("batch_size", len(batch)), slog.String("error", err.Error()))
		pending = true
	}

	rows := make([]storage.Chunk, len(batch))
	for i, c := range batch {
		row := storage.Chunk{
			ID:         c.ID,
			RepoID:     c.RepoID,
			FilePath:   c.FilePath,
			Language:   c.Language,
			SymbolName: c.SymbolName,
			SymbolType: c.SymbolType,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Content:    c.Content,
		}
		if !pending {
			row.Vector = vectors[i]
		}
		rows[i] = row
	}

	if err := ix.store.UpsertChunks(ctx, rows); err != nil {
		return pending, errs.Wrap(errs.KindInternal, "upsert chunks", err)
	}
	return pending, nil
}

func (ix *Indexer) detectLanguage(relPath string) string {
	spec, ok := ix.registry.ByExtension(extOf(relPath))
	if !ok {
		return ""
	}
	return spec.Name
}

func mapWalkErr(err error) error {
	if errs.IsCancelled(err) {
		return err
	}
	return errs.Wrap(errs.KindInternal, "walk repository", err)
}
