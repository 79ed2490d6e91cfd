// Package ui renders the `codeintel status` dashboard: a live bubbletea
// view when stdout is a TTY, a single JSON or plain-text snapshot
// otherwise (spec §4.8's status operation, surfaced by cmd/codeintel).
package ui

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// RepoStatus is one repository row in a status snapshot.
type RepoStatus struct {
	ID            string
	Name          string
	ChunkCount    int
	EdgeCount     int
	LastIndexed   time.Time
	Indexing      bool
	GraphBuilding bool
	EmbedPending  bool
	LastError     string
}

// WebhookStatus is one webhook row in a status snapshot.
type WebhookStatus struct {
	ID            string
	Name          string
	EventType     string
	Paused        bool
	TriggerCount  int
	LastTriggered time.Time
}

// Snapshot is the full state rendered by either renderer.
type Snapshot struct {
	DataDir     string
	Repos       []RepoStatus
	Webhooks    []WebhookStatus
	GeneratedAt time.Time
}

// SnapshotFunc produces a fresh Snapshot, polled by the TUI on each tick
// and called once by the plain renderer.
type SnapshotFunc func() (Snapshot, error)

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	JSON       bool
}

// NewRenderer picks a TUI renderer for interactive terminals and a plain
// renderer for pipes, CI, or when JSON/ForcePlain is requested.
func NewRenderer(cfg Config, snapshot SnapshotFunc) Renderer {
	if cfg.ForcePlain || cfg.JSON || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg, snapshot)
	}
	tui, err := NewTUIRenderer(cfg, snapshot)
	if err != nil {
		return NewPlainRenderer(cfg, snapshot)
	}
	return tui
}

// Renderer displays a status dashboard, once or continuously.
type Renderer interface {
	// Run blocks until the renderer is done: once for the plain
	// renderer, until interrupted for the TUI renderer.
	Run() error
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// DetectCI reports whether a known CI environment variable is set.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}
