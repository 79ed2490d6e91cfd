package graph

import (
	"context"

	"github.com/cerp-labs/codeintel/internal/storage"
)

// seedCandidateLimit bounds how many files the fuzzy accelerator
// shortlists before the caller's exact scan runs.
const seedCandidateLimit = 50

// shortlistFiles builds a transient fuzzy index over one repository's
// edges (optionally narrowed to edgeType) and returns files whose
// indexed symbol name fuzzy-matches symbol, most relevant first. This is
// a best-effort accelerator: callers must still run the exact filtered
// query themselves and must not assume the shortlist is exhaustive.
func shortlistFiles(ctx context.Context, store *storage.Store, repoID, edgeType, symbol string) ([]string, error) {
	fuzzy, err := newFuzzyIndex()
	if err != nil {
		return nil, err
	}
	defer fuzzy.close()

	filter := storage.NewFilter().Eq("repo_id", repoID)
	if edgeType != "" {
		filter.Eq("edge_type", edgeType)
	}
	rows, err := store.QueryEdges(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	for _, e := range rows {
		name := e.TargetQualified
		if name == "" {
			name = e.TargetName
		}
		if err := fuzzy.add(repoID, name, e.SourceFile); err != nil {
			return nil, err
		}
	}
	return fuzzy.candidateFiles(repoID, symbol, seedCandidateLimit)
}

// ResolveCallersSeed shortlists candidate source files for a symbol name
// before the `callers` direction of call_graph issues its exact
// `target_name OR target_qualified` filtered scan (spec §4.7).
func ResolveCallersSeed(ctx context.Context, store *storage.Store, repoID, symbol string) ([]string, error) {
	return shortlistFiles(ctx, store, repoID, "calls", symbol)
}

// ResolveReferenceSeed shortlists candidate source files for a symbol
// name before find_references issues its exact filtered scan, when the
// caller has narrowed the search to a single repository (spec §4.7).
func ResolveReferenceSeed(ctx context.Context, store *storage.Store, repoID, symbol string) ([]string, error) {
	return shortlistFiles(ctx, store, repoID, "", symbol)
}
