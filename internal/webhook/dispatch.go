package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/protocol"
)

// firstEventID is the outbound event.publish id sequence start (spec §4.9).
const firstEventID = 20000

// Dispatch implements protocol.Handler for the Webhook Service: it drains
// the pending-event queue before every execute or resources.* call, then
// answers the six direct execute operations (wrapped in Envelope) and
// the resources.* CRUD façade over resource_type:"webhooks", which are
// top-level methods in their own right and return their data unwrapped
// (spec §4.1, §6).
type Dispatch struct {
	logger *slog.Logger

	store  *Store
	queue  *Queue
	srv    *Server
	nextID int64
}

// NewDispatch constructs a Dispatch. The HTTP listener and on-disk store
// are created lazily from the data_dir carried by the first `initialize`
// request, mirroring the Index Service's Dispatch.
func NewDispatch(logger *slog.Logger) *Dispatch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatch{logger: logger, nextID: firstEventID}
}

type initializeParams struct {
	DataDir string `json:"data_dir"`
}

type executeParams struct {
	Operation string          `json:"operation"`
	Input     json.RawMessage `json:"input"`
}

// Envelope mirrors the Index Service's success payload shape (spec §6):
// {success:true, data, message:null}.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Message *string `json:"message"`
}

func success(data any) Envelope {
	return Envelope{Success: true, Data: data}
}

// Handle answers one decoded request, implementing protocol.Handler.
func (d *Dispatch) Handle(ctx context.Context, io *protocol.IO, req protocol.Request) (protocol.Response, bool) {
	switch req.Method {
	case "initialize":
		return d.handleInitialize(req), false
	case "shutdown":
		return d.handleShutdown(req.ID), true
	case "execute":
		if d.store != nil {
			Drain(ctx, io, d.queue, d.store, &d.nextID, d.logger)
		}
		return d.handleExecute(ctx, req), false
	case "resources.list", "resources.get", "resources.create", "resources.update", "resources.delete":
		if d.store != nil {
			Drain(ctx, io, d.queue, d.store, &d.nextID, d.logger)
		}
		return d.handleResources(req), false
	default:
		return protocol.NewError(req.ID, protocol.ErrCodeMethodNotFound, "unknown method: "+req.Method), false
	}
}

func (d *Dispatch) handleInitialize(req protocol.Request) protocol.Response {
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.DataDir == "" {
		return protocol.NewError(req.ID, protocol.ErrCodeInvalidParams, "data_dir is required")
	}

	if d.store == nil {
		if err := os.MkdirAll(params.DataDir, 0o755); err != nil {
			return protocol.NewError(req.ID, protocol.ErrCodeInternalError, err.Error())
		}
		store, err := Open(params.DataDir)
		if err != nil {
			return protocol.NewError(req.ID, protocol.ErrCodeInternalError, err.Error())
		}
		queue := NewQueue()
		srv := NewServer(store, queue, d.logger)
		if err := srv.Start(); err != nil {
			return protocol.NewError(req.ID, protocol.ErrCodeInternalError, err.Error())
		}
		d.store, d.queue, d.srv = store, queue, srv
	}

	return protocol.NewResult(req.ID, success(map[string]bool{"ready": true}))
}

func (d *Dispatch) handleShutdown(id json.RawMessage) protocol.Response {
	if d.srv != nil {
		_ = d.srv.Close()
	}
	return protocol.NewResult(id, success(map[string]bool{"ok": true}))
}

func (d *Dispatch) handleExecute(ctx context.Context, req protocol.Request) protocol.Response {
	if d.store == nil {
		return protocol.NewError(req.ID, protocol.ErrCodeInternalError, "service not initialized")
	}

	var params executeParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Operation == "" {
		return protocol.NewError(req.ID, protocol.ErrCodeInvalidParams, "operation is required")
	}
	input := params.Input
	if input == nil {
		input = json.RawMessage("{}")
	}

	data, err := d.dispatchOperation(params.Operation, input)
	if err != nil {
		return protocol.NewError(req.ID, protocol.ErrCodeOperationError, err.Error())
	}
	return protocol.NewResult(req.ID, success(data))
}

func (d *Dispatch) dispatchOperation(operation string, input json.RawMessage) (any, error) {
	switch operation {
	case "get_server_info":
		return d.getServerInfo()
	case "get_recent_deliveries":
		return d.getRecentDeliveries(input)
	case "list_webhooks":
		return d.listWebhooks()
	case "create_webhook":
		return d.createWebhook(input)
	case "update_webhook":
		return d.updateWebhook(input)
	case "delete_webhook":
		return d.deleteWebhook(input)
	default:
		return nil, errs.New(errs.KindValidation, "unknown operation: "+operation)
	}
}

// handleResources answers one resources.* method directly with its raw
// data, never wrapped in Envelope (spec §6's documented asymmetry with
// execute responses).
func (d *Dispatch) handleResources(req protocol.Request) protocol.Response {
	if d.store == nil {
		return protocol.NewError(req.ID, protocol.ErrCodeInternalError, "service not initialized")
	}

	input := req.Params
	if input == nil {
		input = json.RawMessage("{}")
	}

	var (
		data any
		err  error
	)
	switch req.Method {
	case "resources.list":
		data, err = d.resourcesList(input)
	case "resources.get":
		data, err = d.resourcesGet(input)
	case "resources.create":
		data, err = d.resourcesCreate(input)
	case "resources.update":
		data, err = d.resourcesUpdate(input)
	case "resources.delete":
		data, err = d.resourcesDelete(input)
	}
	if err != nil {
		return protocol.NewError(req.ID, protocol.ErrCodeOperationError, err.Error())
	}
	return protocol.NewResult(req.ID, data)
}

func (d *Dispatch) getServerInfo() (any, error) {
	return map[string]any{
		"port":       d.srv.Port(),
		"started_at": d.srv.StartedAt(),
	}, nil
}

type webhookIDParams struct {
	WebhookID string `json:"webhook_id"`
}

func (d *Dispatch) getRecentDeliveries(input json.RawMessage) (any, error) {
	var params webhookIDParams
	if err := json.Unmarshal(input, &params); err != nil || params.WebhookID == "" {
		return nil, errs.New(errs.KindValidation, "webhook_id is required")
	}
	if _, ok := d.store.Get(params.WebhookID); !ok {
		return nil, errs.New(errs.KindValidation, "unknown webhook: "+params.WebhookID)
	}
	deliveries, err := d.store.RecentDeliveries(params.WebhookID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "read deliveries", err)
	}
	return map[string]any{"deliveries": deliveries}, nil
}

func (d *Dispatch) listWebhooks() (any, error) {
	return map[string]any{"webhooks": d.store.List()}, nil
}

type createWebhookParams struct {
	Name               string `json:"name"`
	EventType          string `json:"event_type"`
	VerificationMethod string `json:"verification_method"`
	VerificationSecret string `json:"verification_secret,omitempty"`
}

func validVerificationMethod(m string) bool {
	switch m {
	case "none", "github-hmac", "standard-webhooks", "custom-header":
		return true
	}
	return false
}

func (d *Dispatch) createWebhook(input json.RawMessage) (any, error) {
	var params createWebhookParams
	if err := json.Unmarshal(input, &params); err != nil || params.Name == "" || params.EventType == "" {
		return nil, errs.New(errs.KindValidation, "name and event_type are required")
	}
	if !validVerificationMethod(params.VerificationMethod) {
		return nil, errs.New(errs.KindValidation, "unknown verification_method: "+params.VerificationMethod)
	}

	now := time.Now()
	wh := &Webhook{
		ID:                 uuid.NewString(),
		Name:               params.Name,
		EventType:          params.EventType,
		VerificationMethod: params.VerificationMethod,
		VerificationSecret: params.VerificationSecret,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := d.store.Create(wh); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "persist webhook", err)
	}
	return wh, nil
}

type updateWebhookParams struct {
	WebhookID          string  `json:"webhook_id"`
	Name               *string `json:"name,omitempty"`
	EventType          *string `json:"event_type,omitempty"`
	VerificationMethod *string `json:"verification_method,omitempty"`
	VerificationSecret *string `json:"verification_secret,omitempty"`
	Paused             *bool   `json:"paused,omitempty"`
}

func (d *Dispatch) updateWebhook(input json.RawMessage) (any, error) {
	var params updateWebhookParams
	if err := json.Unmarshal(input, &params); err != nil || params.WebhookID == "" {
		return nil, errs.New(errs.KindValidation, "webhook_id is required")
	}
	if params.VerificationMethod != nil && !validVerificationMethod(*params.VerificationMethod) {
		return nil, errs.New(errs.KindValidation, "unknown verification_method: "+*params.VerificationMethod)
	}

	ok, err := d.store.Update(params.WebhookID, func(wh *Webhook) {
		if params.Name != nil {
			wh.Name = *params.Name
		}
		if params.EventType != nil {
			wh.EventType = *params.EventType
		}
		if params.VerificationMethod != nil {
			wh.VerificationMethod = *params.VerificationMethod
		}
		if params.VerificationSecret != nil {
			wh.VerificationSecret = *params.VerificationSecret
		}
		if params.Paused != nil {
			wh.Paused = *params.Paused
		}
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "persist webhook", err)
	}
	if !ok {
		return nil, errs.New(errs.KindValidation, "unknown webhook: "+params.WebhookID)
	}

	wh, _ := d.store.Get(params.WebhookID)
	return wh, nil
}

func (d *Dispatch) deleteWebhook(input json.RawMessage) (any, error) {
	var params webhookIDParams
	if err := json.Unmarshal(input, &params); err != nil || params.WebhookID == "" {
		return nil, errs.New(errs.KindValidation, "webhook_id is required")
	}
	ok, err := d.store.Delete(params.WebhookID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "delete webhook", err)
	}
	if !ok {
		return nil, errs.New(errs.KindValidation, "unknown webhook: "+params.WebhookID)
	}
	return map[string]string{"webhook_id": params.WebhookID, "status": "deleted"}, nil
}

type resourceListParams struct {
	ResourceType string `json:"resource_type"`
}

func requireWebhooksResourceType(resourceType string) error {
	if resourceType != "webhooks" {
		return errs.New(errs.KindValidation, "unsupported resource_type: "+resourceType)
	}
	return nil
}

func (d *Dispatch) resourcesList(input json.RawMessage) (any, error) {
	var params resourceListParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, errs.New(errs.KindValidation, "resource_type is required")
	}
	if err := requireWebhooksResourceType(params.ResourceType); err != nil {
		return nil, err
	}
	return d.listWebhooks()
}

type resourceGetParams struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
}

type resourceCreateParams struct {
	ResourceType string          `json:"resource_type"`
	Data         json.RawMessage `json:"data"`
}

func (d *Dispatch) resourcesCreate(input json.RawMessage) (any, error) {
	var params resourceCreateParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, errs.New(errs.KindValidation, "resource_type and data are required")
	}
	if err := requireWebhooksResourceType(params.ResourceType); err != nil {
		return nil, err
	}
	data := params.Data
	if data == nil {
		data = input
	}
	return d.createWebhook(data)
}

func (d *Dispatch) resourcesGet(input json.RawMessage) (any, error) {
	var params resourceGetParams
	if err := json.Unmarshal(input, &params); err != nil || params.ResourceID == "" {
		return nil, errs.New(errs.KindValidation, "resource_id is required")
	}
	if err := requireWebhooksResourceType(params.ResourceType); err != nil {
		return nil, err
	}
	wh, ok := d.store.Get(params.ResourceID)
	if !ok {
		return nil, errs.New(errs.KindValidation, "unknown webhook: "+params.ResourceID)
	}
	return wh, nil
}

type resourceUpdateParams struct {
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Patch        json.RawMessage `json:"patch"`
}

func (d *Dispatch) resourcesUpdate(input json.RawMessage) (any, error) {
	var params resourceUpdateParams
	if err := json.Unmarshal(input, &params); err != nil || params.ResourceID == "" {
		return nil, errs.New(errs.KindValidation, "resource_id is required")
	}
	if err := requireWebhooksResourceType(params.ResourceType); err != nil {
		return nil, err
	}

	var patch updateWebhookParams
	if len(params.Patch) > 0 {
		if err := json.Unmarshal(params.Patch, &patch); err != nil {
			return nil, errs.New(errs.KindValidation, "invalid patch")
		}
	}
	patch.WebhookID = params.ResourceID
	patched, err := json.Marshal(patch)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "marshal patch", err)
	}
	return d.updateWebhook(patched)
}

type resourceDeleteParams struct {
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
}

func (d *Dispatch) resourcesDelete(input json.RawMessage) (any, error) {
	var params resourceDeleteParams
	if err := json.Unmarshal(input, &params); err != nil || params.ResourceID == "" {
		return nil, errs.New(errs.KindValidation, "resource_id is required")
	}
	if err := requireWebhooksResourceType(params.ResourceType); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(webhookIDParams{WebhookID: params.ResourceID})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "marshal delete params", err)
	}
	return d.deleteWebhook(raw)
}
