package webhook

import (
	"context"
	"log/slog"

	"github.com/cerp-labs/codeintel/internal/protocol"
)

// PendingEvent is one queued inbound delivery's outbound shape, published
// as the params of an event.publish request (spec §4.9).
type PendingEvent struct {
	EventType string `json:"event_type"`
	Subject   string `json:"subject"`
	Data      any    `json:"data"`
}

// queuedEvent pairs the outbound event with the delivery bookkeeping the
// drain records only after the event has been published.
type queuedEvent struct {
	webhookID string
	event     PendingEvent
	delivery  Delivery
}

// Queue is the buffered channel of pending events the HTTP listener
// enqueues onto and the stdio dispatcher drains from.
type Queue struct {
	ch chan queuedEvent
}

// NewQueue constructs an event queue buffered to 4096 events. The buffer
// does not grow: once it is full, enqueue blocks the HTTP handler until a
// drain at the start of an execute/resources.* call makes room.
func NewQueue() *Queue {
	return &Queue{ch: make(chan queuedEvent, 4096)}
}

func (q *Queue) enqueue(e queuedEvent) {
	q.ch <- e
}

// Drain implements spec §4.9's event drain: it try-receives every queued
// event, emits each as an outbound event.publish request over io (reading
// exactly one ack line back per emit), and only then records the
// delivery's ring-buffer/trigger-count bookkeeping in store. It runs at
// the start of every execute/resources.* call.
func Drain(ctx context.Context, io *protocol.IO, q *Queue, store *Store, nextID *int64, logger *slog.Logger) {
	for {
		var qe queuedEvent
		select {
		case qe = <-q.ch:
		default:
			return
		}

		id := *nextID
		*nextID++
		if _, err := io.Emit("event.publish", qe.event, id); err != nil {
			logger.Warn("event publish ack failed", slog.String("subject", qe.webhookID), slog.String("error", err.Error()))
			continue
		}

		if err := store.RecordDelivery(qe.webhookID, qe.delivery); err != nil {
			logger.Warn("record delivery failed", slog.String("webhook_id", qe.webhookID), slog.String("error", err.Error()))
		}
	}
}
