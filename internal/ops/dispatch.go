package ops

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cerp-labs/codeintel/internal/protocol"
	"github.com/cerp-labs/codeintel/internal/state"
)

// verb is one execute operation's coordinator function.
type verb func(ctx context.Context, raw json.RawMessage) (any, error)

// Dispatch implements protocol.Handler for the Index Service: it answers
// initialize/shutdown directly against State and routes execute by
// params.operation to a Service verb (spec §4.1, §4.8). The dispatcher
// runs on a single line-reader goroutine, so no locking is needed around
// the lazy State/Service construction below.
type Dispatch struct {
	logger *slog.Logger
	st     *state.State
	svc    *Service
	verbs  map[string]verb
}

// NewDispatch constructs a Dispatch. State is created lazily from the
// data_dir carried by the first `initialize` request.
func NewDispatch(logger *slog.Logger) *Dispatch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatch{logger: logger}
}

type initializeParams struct {
	DataDir string `json:"data_dir"`
}

type executeParams struct {
	Operation string          `json:"operation"`
	Input     json.RawMessage `json:"input"`
}

// Handle answers one decoded request, implementing protocol.Handler.
func (d *Dispatch) Handle(ctx context.Context, io *protocol.IO, req protocol.Request) (protocol.Response, bool) {
	switch req.Method {
	case "initialize":
		return d.handleInitialize(ctx, req), false
	case "shutdown":
		return d.handleShutdown(ctx, req), true
	case "execute":
		return d.handleExecute(ctx, req), false
	default:
		return protocol.NewError(req.ID, protocol.ErrCodeMethodNotFound, "unknown method: "+req.Method), false
	}
}

func (d *Dispatch) handleInitialize(ctx context.Context, req protocol.Request) protocol.Response {
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.DataDir == "" {
		return protocol.NewError(req.ID, protocol.ErrCodeInvalidParams, "data_dir is required")
	}

	if d.st == nil {
		d.st = state.New(params.DataDir)
		d.svc = New(d.st, d.logger)
		d.verbs = d.buildVerbs()
	}

	if err := d.st.Initialize(ctx); err != nil {
		return protocol.NewError(req.ID, protocol.ErrCodeInternalError, err.Error())
	}
	return protocol.NewResult(req.ID, success(map[string]bool{"ready": true}))
}

func (d *Dispatch) handleShutdown(ctx context.Context, req protocol.Request) protocol.Response {
	if d.st == nil {
		return protocol.NewResult(req.ID, success(map[string]bool{"ok": true}))
	}
	if err := d.st.Shutdown(ctx); err != nil {
		return protocol.NewError(req.ID, protocol.ErrCodeInternalError, err.Error())
	}
	return protocol.NewResult(req.ID, success(map[string]bool{"ok": true}))
}

func (d *Dispatch) handleExecute(ctx context.Context, req protocol.Request) protocol.Response {
	if d.st == nil || !d.st.Ready() {
		return protocol.NewError(req.ID, protocol.ErrCodeInternalError, "service not initialized")
	}

	var params executeParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Operation == "" {
		return protocol.NewError(req.ID, protocol.ErrCodeInvalidParams, "operation is required")
	}

	fn, ok := d.verbs[params.Operation]
	if !ok {
		return protocol.NewError(req.ID, protocol.ErrCodeOperationError, "unknown operation: "+params.Operation)
	}

	input := params.Input
	if input == nil {
		input = json.RawMessage("{}")
	}

	data, err := fn(ctx, input)
	if err != nil {
		return protocol.NewError(req.ID, protocol.ErrCodeOperationError, err.Error())
	}
	return protocol.NewResult(req.ID, success(data))
}

func (d *Dispatch) buildVerbs() map[string]verb {
	return map[string]verb{
		"add_repository":    d.svc.AddRepository,
		"remove_repository": d.svc.RemoveRepository,
		"list_repositories": d.svc.ListRepositories,
		"sync":              d.svc.Sync,
		"search":            d.svc.Search,
		"map":               d.svc.Map,
		"status":            d.svc.Status,
		"create_workspace":  d.svc.CreateWorkspace,
		"list_workspaces":   d.svc.ListWorkspaces,
		"build_graph":       d.svc.BuildGraph,
		"find_references":   d.svc.FindReferences,
		"call_graph":        d.svc.CallGraph,
		"dependency_graph":  d.svc.DependencyGraph,
		"type_hierarchy":    d.svc.TypeHierarchy,
	}
}
