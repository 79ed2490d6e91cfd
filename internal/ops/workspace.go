package ops

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/state"
)

type createWorkspaceParams struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	RepoIDs     []string `json:"repo_ids"`
}

// CreateWorkspace registers a named alias over a set of repository
// identifiers (spec §3's Workspace).
func (s *Service) CreateWorkspace(ctx context.Context, raw json.RawMessage) (any, error) {
	var params createWorkspaceParams
	if err := json.Unmarshal(raw, &params); err != nil || params.Name == "" {
		return nil, errs.New(errs.KindValidation, "name is required")
	}

	now := time.Now()
	_ = s.st.MutateMetadata(func(md *state.Metadata) {
		md.Workspaces[params.Name] = &state.Workspace{
			Name:        params.Name,
			Description: params.Description,
			RepoIDs:     params.RepoIDs,
			CreatedAt:   now,
		}
	})

	return map[string]string{"name": params.Name, "status": "created"}, nil
}

// ListWorkspaces returns every registered workspace.
func (s *Service) ListWorkspaces(ctx context.Context, raw json.RawMessage) (any, error) {
	var workspaces []state.Workspace
	s.st.WithReadLock(func(md *state.Metadata) {
		for _, ws := range md.Workspaces {
			workspaces = append(workspaces, *ws)
		}
	})
	return map[string]any{"workspaces": workspaces}, nil
}
