// Package webhook implements the Webhook Service: an HTTP listener that
// accepts inbound deliveries, verifies them, and drains them onto the
// stdio protocol as outbound event.publish requests (spec §4.9).
package webhook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// deliveryCap is the FIFO ring-buffer size per webhook (spec §4.9).
const deliveryCap = 50

// Webhook is the persisted definition of one inbound hook.
type Webhook struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	EventType          string    `json:"event_type"`
	VerificationMethod string    `json:"verification_method"`
	VerificationSecret string    `json:"verification_secret,omitempty"`
	Paused             bool      `json:"paused"`
	TriggerCount       int       `json:"trigger_count"`
	LastTriggered      time.Time `json:"last_triggered,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Delivery is one recorded inbound request against a webhook.
type Delivery struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Headers   map[string]string `json:"headers"`
	Body      any               `json:"body"`
}

// document is the whole-file JSON persisted at {data_dir}/webhooks.json.
type document struct {
	Webhooks map[string]*Webhook `json:"webhooks"`
}

func newDocument() *document {
	return &document{Webhooks: make(map[string]*Webhook)}
}

// Store holds the webhook definitions and their delivery ring buffers,
// persisted across webhooks.json and deliveries/{webhook_id}.json (spec
// §6). Access is arbitrated by one mutex, mirroring internal/state's
// single-lock design over a smaller document.
type Store struct {
	dataDir string
	mu      sync.Mutex
	doc     *document
	// deliveries caches each webhook's ring buffer so repeated triggers
	// don't re-read the file from disk.
	deliveries map[string][]Delivery
}

// Open loads (or initialises) the webhook document from dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "deliveries"), 0o755); err != nil {
		return nil, err
	}
	doc, err := loadDocument(webhooksPath(dataDir))
	if err != nil {
		return nil, err
	}
	return &Store{dataDir: dataDir, doc: doc, deliveries: make(map[string][]Delivery)}, nil
}

func webhooksPath(dataDir string) string {
	return filepath.Join(dataDir, "webhooks.json")
}

func deliveriesPath(dataDir, webhookID string) string {
	return filepath.Join(dataDir, "deliveries", webhookID+".json")
}

func loadDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, err
	}
	doc := newDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Webhooks == nil {
		doc.Webhooks = make(map[string]*Webhook)
	}
	return doc, nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Create registers a new webhook and persists the document.
func (s *Store) Create(wh *Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Webhooks[wh.ID] = wh
	return saveJSON(webhooksPath(s.dataDir), s.doc)
}

// Get returns a copy of the webhook registered under id, if any.
func (s *Store) Get(id string) (Webhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wh, ok := s.doc.Webhooks[id]
	if !ok {
		return Webhook{}, false
	}
	return *wh, true
}

// List returns a copy of every registered webhook.
func (s *Store) List() []Webhook {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Webhook, 0, len(s.doc.Webhooks))
	for _, wh := range s.doc.Webhooks {
		out = append(out, *wh)
	}
	return out
}

// Update applies fn to the webhook registered under id and persists the
// document, reporting whether the webhook exists.
func (s *Store) Update(id string, fn func(wh *Webhook)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wh, ok := s.doc.Webhooks[id]
	if !ok {
		return false, nil
	}
	fn(wh)
	wh.UpdatedAt = time.Now()
	return true, saveJSON(webhooksPath(s.dataDir), s.doc)
}

// Delete removes the webhook and its delivery file, reporting whether it
// existed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Webhooks[id]; !ok {
		return false, nil
	}
	delete(s.doc.Webhooks, id)
	delete(s.deliveries, id)
	if err := saveJSON(webhooksPath(s.dataDir), s.doc); err != nil {
		return false, err
	}
	_ = os.Remove(deliveriesPath(s.dataDir, id))
	return true, nil
}

// RecordDelivery appends d to webhookID's ring buffer (capped at 50,
// oldest evicted first), bumps trigger_count/last_triggered, and
// rewrites both webhooks.json and the deliveries file (spec §4.9).
func (s *Store) RecordDelivery(webhookID string, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.deliveries[webhookID]
	if !ok {
		loaded, err := loadDeliveries(deliveriesPath(s.dataDir, webhookID))
		if err != nil {
			return err
		}
		buf = loaded
	}
	buf = append(buf, d)
	if len(buf) > deliveryCap {
		buf = buf[len(buf)-deliveryCap:]
	}
	s.deliveries[webhookID] = buf

	if wh, ok := s.doc.Webhooks[webhookID]; ok {
		wh.TriggerCount++
		wh.LastTriggered = d.Timestamp
		if err := saveJSON(webhooksPath(s.dataDir), s.doc); err != nil {
			return err
		}
	}
	return saveJSON(deliveriesPath(s.dataDir, webhookID), buf)
}

// RecentDeliveries returns webhookID's ring buffer, most recent last.
func (s *Store) RecentDeliveries(webhookID string) ([]Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if buf, ok := s.deliveries[webhookID]; ok {
		out := make([]Delivery, len(buf))
		copy(out, buf)
		return out, nil
	}
	buf, err := loadDeliveries(deliveriesPath(s.dataDir, webhookID))
	if err != nil {
		return nil, err
	}
	s.deliveries[webhookID] = buf
	out := make([]Delivery, len(buf))
	copy(out, buf)
	return out, nil
}

func loadDeliveries(path string) ([]Delivery, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var buf []Delivery
	if err := json.Unmarshal(data, &buf); err != nil {
		return nil, err
	}
	return buf, nil
}
