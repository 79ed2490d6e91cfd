package ops

import (
	"context"
	"log/slog"
	"math"

	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/graph"
	"github.com/cerp-labs/codeintel/internal/gitsync"
	"github.com/cerp-labs/codeintel/internal/indexer"
	"github.com/cerp-labs/codeintel/internal/state"
	"github.com/cerp-labs/codeintel/internal/storage"
)

// snippetLength is the default truncation length for search results,
// per spec §4.7 ("300-character snippet unless full_content").
const snippetLength = 300

// defaultSearchLimit and defaultReferenceLimit are the verb defaults from
// spec §6's operation signatures.
const (
	defaultSearchLimit    = 10
	defaultReferenceLimit = 100
	defaultCallGraphDepth = 2
	maxCallGraphDepth     = 5
	callGraphNodeCap      = 100
)

// Service coordinates the user-facing verbs over one shared State. A new
// Indexer/Builder is constructed per background task invocation rather
// than shared, since the underlying tree-sitter parser each owns is not
// safe for concurrent use.
type Service struct {
	st     *state.State
	logger *slog.Logger
}

// New constructs a Service bound to st.
func New(st *state.State, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{st: st, logger: logger}
}

func snippet(content string, full bool) string {
	if full || len(content) <= snippetLength {
		return content
	}
	return content[:snippetLength]
}

func score(distance float32) float64 {
	s := 1 - float64(distance)
	return math.Round(s*1000) / 1000
}

// openGitRepo verifies path is a Git working tree, surfacing a
// validation error (never a fatal filesystem one) when it is not.
func openGitRepo(path string) (*gitsync.Repo, error) {
	repo, err := gitsync.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "not a git repository", err)
	}
	return repo, nil
}

func runFullIndex(ctx context.Context, st *state.State, repoID, path string, cancel <-chan struct{}) (*indexer.Result, error) {
	ix := indexer.New(st.Store(), nil)
	return ix.FullIndex(ctx, st.Adapter(), repoID, path, cancel)
}

func runSync(ctx context.Context, st *state.State, repoID, path, lastCommit string, cancel <-chan struct{}) (*indexer.Result, error) {
	ix := indexer.New(st.Store(), nil)
	result, _, err := ix.Sync(ctx, st.Adapter(), repoID, path, lastCommit, cancel)
	return result, err
}

func runBuildGraph(ctx context.Context, st *state.State, repoID, path string, cancel <-chan struct{}) (*graph.Result, error) {
	b := graph.NewBuilder(st.Store(), nil)
	defer b.Close()
	return b.Build(ctx, repoID, path, cancel)
}

func deleteRepoData(ctx context.Context, store *storage.Store, repoID string) error {
	if err := store.DeleteChunks(ctx, storage.NewFilter().Eq("repo_id", repoID)); err != nil {
		return err
	}
	return store.DeleteEdges(ctx, storage.NewFilter().Eq("repo_id", repoID))
}
