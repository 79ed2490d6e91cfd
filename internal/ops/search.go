package ops

import (
	"context"
	"encoding/json"

	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/state"
	"github.com/cerp-labs/codeintel/internal/storage"
)

type searchParams struct {
	Query       string  `json:"query"`
	RepoID      *string `json:"repo_id,omitempty"`
	Workspace   *string `json:"workspace,omitempty"`
	Language    *string `json:"language,omitempty"`
	SymbolType  *string `json:"symbol_type,omitempty"`
	Limit       int     `json:"limit,omitempty"`
	FullContent bool    `json:"full_content,omitempty"`
}

// searchResult is one ranked hit, per spec §4.7's vector-search contract.
type searchResult struct {
	FilePath   string  `json:"file_path"`
	Language   string  `json:"language"`
	SymbolName string  `json:"symbol_name,omitempty"`
	SymbolType string  `json:"symbol_type,omitempty"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// Search requires a live embedding provider and fails fast if the query
// cannot be embedded (spec §4.8) — unlike indexing, a failed embed here
// is fatal to the request rather than degrading to embed_pending.
func (s *Service) Search(ctx context.Context, raw json.RawMessage) (any, error) {
	var params searchParams
	if err := json.Unmarshal(raw, &params); err != nil || params.Query == "" {
		return nil, errs.New(errs.KindValidation, "query is required")
	}
	if params.Limit <= 0 {
		params.Limit = defaultSearchLimit
	}

	adapter := s.st.Adapter()
	vectors, err := adapter.EmbedBatch(ctx, []string{params.Query})
	if err != nil {
		return nil, errs.Wrap(errs.KindDependency, "embed query", err)
	}

	filter, err := s.searchFilter(params)
	if err != nil {
		return nil, err
	}

	rows, err := s.st.Store().VectorQuery(ctx, vectors[0], filter, params.Limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "vector query", err)
	}

	results := make([]searchResult, len(rows))
	for i, r := range rows {
		results[i] = searchResult{
			FilePath:   r.FilePath,
			Language:   r.Language,
			SymbolName: r.SymbolName,
			SymbolType: r.SymbolType,
			StartLine:  r.StartLine,
			EndLine:    r.EndLine,
			Content:    snippet(r.Content, params.FullContent),
			Score:      score(r.Distance),
		}
	}
	return map[string]any{"results": results}, nil
}

func (s *Service) searchFilter(params searchParams) (*storage.Filter, error) {
	filter := storage.NewFilter()

	switch {
	case params.RepoID != nil:
		filter.Eq("repo_id", *params.RepoID)
	case params.Workspace != nil:
		var ids []string
		found := false
		s.st.WithReadLock(func(md *state.Metadata) {
			ws, ok := md.Workspaces[*params.Workspace]
			if !ok {
				return
			}
			found = true
			ids = ws.RepoIDs
		})
		if !found {
			return nil, errs.New(errs.KindValidation, "unknown workspace: "+*params.Workspace)
		}
		filter.In("repo_id", ids)
	}

	if params.Language != nil {
		filter.Eq("language", *params.Language)
	}
	if params.SymbolType != nil {
		filter.Eq("symbol_type", *params.SymbolType)
	}
	return filter, nil
}

type mapParams struct {
	RepoID     string  `json:"repo_id"`
	Language   *string `json:"language,omitempty"`
	SymbolType *string `json:"symbol_type,omitempty"`
}

type mapSymbol struct {
	SymbolName string `json:"symbol_name"`
	SymbolType string `json:"symbol_type"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
}

// Map returns a filtered scan of the chunks table grouped by file path
// (spec §4.7).
func (s *Service) Map(ctx context.Context, raw json.RawMessage) (any, error) {
	var params mapParams
	if err := json.Unmarshal(raw, &params); err != nil || params.RepoID == "" {
		return nil, errs.New(errs.KindValidation, "repo_id is required")
	}

	filter := storage.NewFilter().Eq("repo_id", params.RepoID)
	if params.Language != nil {
		filter.Eq("language", *params.Language)
	}
	if params.SymbolType != nil {
		filter.Eq("symbol_type", *params.SymbolType)
	}

	chunks, err := s.st.Store().QueryChunks(ctx, filter, 0)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "query chunks", err)
	}

	files := make(map[string][]mapSymbol)
	for _, c := range chunks {
		files[c.FilePath] = append(files[c.FilePath], mapSymbol{
			SymbolName: c.SymbolName,
			SymbolType: c.SymbolType,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
		})
	}
	return map[string]any{"files": files}, nil
}
