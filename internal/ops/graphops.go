package ops

import (
	"context"
	"encoding/json"

	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/graph"
	"github.com/cerp-labs/codeintel/internal/storage"
)

type findReferencesParams struct {
	Symbol   string  `json:"symbol"`
	RepoID   *string `json:"repo_id,omitempty"`
	EdgeType *string `json:"edge_type,omitempty"`
	Limit    int     `json:"limit,omitempty"`
}

type edgeResult struct {
	SourceFile      string `json:"source_file"`
	SourceLine      int    `json:"source_line"`
	SourceSymbol    string `json:"source_symbol"`
	TargetName      string `json:"target_name"`
	TargetQualified string `json:"target_qualified"`
	TargetFile      string `json:"target_file"`
	EdgeType        string `json:"edge_type"`
}

func toEdgeResult(e storage.Edge) edgeResult {
	return edgeResult{
		SourceFile:      e.SourceFile,
		SourceLine:      e.SourceLine,
		SourceSymbol:    e.SourceSymbol,
		TargetName:      e.TargetName,
		TargetQualified: e.TargetQualified,
		TargetFile:      e.TargetFile,
		EdgeType:        e.EdgeType,
	}
}

// FindReferences scans edges whose target matches symbol by raw or
// qualified spelling (spec §4.7). When repo_id narrows the search to one
// repository, a fuzzy symbol accelerator shortlists candidate files
// first and the exact scan is restricted to that shortlist; the exact
// `target_name OR target_qualified` match remains authoritative either
// way.
func (s *Service) FindReferences(ctx context.Context, raw json.RawMessage) (any, error) {
	var params findReferencesParams
	if err := json.Unmarshal(raw, &params); err != nil || params.Symbol == "" {
		return nil, errs.New(errs.KindValidation, "symbol is required")
	}
	if params.Limit <= 0 {
		params.Limit = defaultReferenceLimit
	}

	filter := storage.NewFilter().Or(
		storage.NewFilter().Eq("target_name", params.Symbol),
		storage.NewFilter().Eq("target_qualified", params.Symbol),
	)
	if params.RepoID != nil {
		filter.Eq("repo_id", *params.RepoID)
		if candidates, err := graph.ResolveReferenceSeed(ctx, s.st.Store(), *params.RepoID, params.Symbol); err == nil && len(candidates) > 0 {
			filter.In("source_file", candidates)
		}
	}
	if params.EdgeType != nil {
		filter.Eq("edge_type", *params.EdgeType)
	}

	edges, err := s.st.Store().QueryEdges(ctx, filter, params.Limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "query edges", err)
	}

	results := make([]edgeResult, len(edges))
	for i, e := range edges {
		results[i] = toEdgeResult(e)
	}
	return map[string]any{"references": results}, nil
}

type callGraphParams struct {
	Symbol    string  `json:"symbol"`
	RepoID    string  `json:"repo_id"`
	Direction string  `json:"direction,omitempty"`
	Depth     int     `json:"depth,omitempty"`
}

type callGraphEdge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	SourceFile string `json:"source_file"`
	SourceLine int    `json:"source_line"`
	TargetFile string `json:"target_file"`
	Depth      int    `json:"depth"`
}

// CallGraph performs a BFS from symbol over `calls` edges, bounded by
// depth ≤ 5, cycle-broken by a visited set, per-node expansion capped at
// 100 edges (spec §4.7). The `callers` direction narrows each node's
// exact scan with graph.ResolveCallersSeed's fuzzy file shortlist first.
func (s *Service) CallGraph(ctx context.Context, raw json.RawMessage) (any, error) {
	var params callGraphParams
	if err := json.Unmarshal(raw, &params); err != nil || params.Symbol == "" || params.RepoID == "" {
		return nil, errs.New(errs.KindValidation, "symbol and repo_id are required")
	}
	if params.Direction == "" {
		params.Direction = "callees"
	}
	if params.Direction != "callers" && params.Direction != "callees" {
		return nil, errs.New(errs.KindValidation, "direction must be callers or callees")
	}
	depth := params.Depth
	if depth <= 0 {
		depth = defaultCallGraphDepth
	}
	if depth > maxCallGraphDepth {
		depth = maxCallGraphDepth
	}

	visited := map[string]bool{params.Symbol: true}
	frontier := []string{params.Symbol}
	var edges []callGraphEdge

	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, node := range frontier {
			neighbours, err := s.expandCallNode(ctx, params.RepoID, params.Direction, node, d)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbours {
				edges = append(edges, n.edge)
				if !visited[n.neighbour] {
					visited[n.neighbour] = true
					next = append(next, n.neighbour)
				}
			}
		}
		frontier = next
	}

	return map[string]any{"edges": edges}, nil
}

type callExpansion struct {
	edge      callGraphEdge
	neighbour string
}

func (s *Service) expandCallNode(ctx context.Context, repoID, direction, node string, depth int) ([]callExpansion, error) {
	filter := storage.NewFilter().Eq("repo_id", repoID).Eq("edge_type", "calls")
	if direction == "callers" {
		filter.Or(
			storage.NewFilter().Eq("target_name", node),
			storage.NewFilter().Eq("target_qualified", node),
		)
		if candidates, err := graph.ResolveCallersSeed(ctx, s.st.Store(), repoID, node); err == nil && len(candidates) > 0 {
			filter.In("source_file", candidates)
		}
	} else {
		filter.Eq("source_symbol", node)
	}

	edges, err := s.st.Store().QueryEdges(ctx, filter, callGraphNodeCap)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "query call edges", err)
	}

	out := make([]callExpansion, 0, len(edges))
	for _, e := range edges {
		var neighbour, from, to string
		if direction == "callers" {
			neighbour = e.SourceSymbol
			from, to = neighbour, node
		} else {
			neighbour = e.TargetQualified
			if neighbour == "" {
				neighbour = e.TargetName
			}
			from, to = node, neighbour
		}
		if neighbour == "" {
			continue
		}
		out = append(out, callExpansion{
			edge: callGraphEdge{
				From:       from,
				To:         to,
				SourceFile: e.SourceFile,
				SourceLine: e.SourceLine,
				TargetFile: e.TargetFile,
				Depth:      depth,
			},
			neighbour: neighbour,
		})
	}
	return out, nil
}

type dependencyGraphParams struct {
	RepoID   string  `json:"repo_id"`
	FilePath *string `json:"file_path,omitempty"`
}

// DependencyGraph is a filtered scan on imports edges, grouped by source
// file (spec §4.7).
func (s *Service) DependencyGraph(ctx context.Context, raw json.RawMessage) (any, error) {
	var params dependencyGraphParams
	if err := json.Unmarshal(raw, &params); err != nil || params.RepoID == "" {
		return nil, errs.New(errs.KindValidation, "repo_id is required")
	}

	filter := storage.NewFilter().Eq("repo_id", params.RepoID).Eq("edge_type", "imports")
	if params.FilePath != nil {
		filter.Eq("source_file", *params.FilePath)
	}

	edges, err := s.st.Store().QueryEdges(ctx, filter, 0)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "query import edges", err)
	}

	byFile := make(map[string][]edgeResult)
	for _, e := range edges {
		byFile[e.SourceFile] = append(byFile[e.SourceFile], toEdgeResult(e))
	}
	return map[string]any{"files": byFile}, nil
}

type typeHierarchyParams struct {
	RepoID string  `json:"repo_id"`
	Symbol *string `json:"symbol,omitempty"`
}

// TypeHierarchy is a filtered scan on implements edges, grouped by
// target_qualified when present else target_name (spec §4.7).
func (s *Service) TypeHierarchy(ctx context.Context, raw json.RawMessage) (any, error) {
	var params typeHierarchyParams
	if err := json.Unmarshal(raw, &params); err != nil || params.RepoID == "" {
		return nil, errs.New(errs.KindValidation, "repo_id is required")
	}

	filter := storage.NewFilter().Eq("repo_id", params.RepoID).Eq("edge_type", "implements")
	if params.Symbol != nil {
		filter.Or(
			storage.NewFilter().Eq("target_name", *params.Symbol),
			storage.NewFilter().Eq("target_qualified", *params.Symbol),
		)
	}

	edges, err := s.st.Store().QueryEdges(ctx, filter, 0)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "query implements edges", err)
	}

	byType := make(map[string][]edgeResult)
	for _, e := range edges {
		key := e.TargetQualified
		if key == "" {
			key = e.TargetName
		}
		byType[key] = append(byType[key], toEdgeResult(e))
	}
	return map[string]any{"types": byType}, nil
}
