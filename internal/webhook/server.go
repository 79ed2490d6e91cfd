package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxBodySize caps an inbound delivery body, mirroring the scanner
// package's deny-oversized-input posture for untrusted input.
const maxBodySize = 10 << 20

// Server is the HTTP listener bound on 127.0.0.1:<ephemeral> that accepts
// deliveries at /hooks/{webhook_id} (spec §4.9).
type Server struct {
	store  *Store
	queue  *Queue
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
	started  time.Time
}

// NewServer constructs a Server bound to store/queue.
func NewServer(store *Store, queue *Queue, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, queue: queue, logger: logger}
}

// Start binds an OS-assigned port on 127.0.0.1 and begins serving in the
// background. Call Port to discover the bound port afterward.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/hooks/", s.handleHook)

	s.mu.Lock()
	s.listener = listener
	s.srv = &http.Server{Handler: mux}
	s.started = time.Now()
	s.mu.Unlock()

	go func() {
		if err := s.srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("webhook listener stopped", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Port reports the bound TCP port, or 0 if the server has not started.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// StartedAt reports when the listener began serving.
func (s *Server) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Close shuts the listener down.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	webhookID := strings.TrimPrefix(r.URL.Path, "/hooks/")
	if webhookID == "" || strings.Contains(webhookID, "/") {
		http.NotFound(w, r)
		return
	}

	wh, ok := s.store.Get(webhookID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if wh.Paused {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !verify(wh, r, body) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		decoded = string(body)
	}

	delivery := Delivery{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Headers:   headers,
		Body:      decoded,
	}

	s.queue.enqueue(queuedEvent{
		webhookID: webhookID,
		event:     PendingEvent{EventType: wh.EventType, Subject: webhookID, Data: decoded},
		delivery:  delivery,
	})

	w.WriteHeader(http.StatusAccepted)
}
