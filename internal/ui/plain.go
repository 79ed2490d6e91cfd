package ui

import (
	"encoding/json"
	"fmt"
	"time"
)

// PlainRenderer prints one snapshot as either JSON or human-readable text,
// used for non-TTY stdout (piping `codeintel status` into another tool).
type PlainRenderer struct {
	cfg      Config
	snapshot SnapshotFunc
	styles   Styles
}

// NewPlainRenderer constructs a PlainRenderer.
func NewPlainRenderer(cfg Config, snapshot SnapshotFunc) *PlainRenderer {
	return &PlainRenderer{cfg: cfg, snapshot: snapshot, styles: GetStyles(cfg.NoColor || DetectNoColor())}
}

// Run renders exactly one snapshot.
func (r *PlainRenderer) Run() error {
	snap, err := r.snapshot()
	if err != nil {
		return fmt.Errorf("taking status snapshot: %w", err)
	}
	if r.cfg.JSON {
		return r.renderJSON(snap)
	}
	return r.renderText(snap)
}

func (r *PlainRenderer) renderJSON(snap Snapshot) error {
	enc := json.NewEncoder(r.cfg.Output)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func (r *PlainRenderer) renderText(snap Snapshot) error {
	fmt.Fprintf(r.cfg.Output, "%s\n\n", r.styles.Header.Render("codeintel status: "+snap.DataDir))

	if len(snap.Repos) == 0 {
		fmt.Fprintln(r.cfg.Output, "  no repositories indexed")
	}
	for _, repo := range snap.Repos {
		fmt.Fprintf(r.cfg.Output, "  %s\n", r.styles.Label.Render(repo.Name))
		fmt.Fprintf(r.cfg.Output, "    chunks: %d  edges: %d  last indexed: %s\n",
			repo.ChunkCount, repo.EdgeCount, formatAge(repo.LastIndexed))
		fmt.Fprintf(r.cfg.Output, "    status: %s\n", r.renderRepoStatus(repo))
		if repo.LastError != "" {
			fmt.Fprintf(r.cfg.Output, "    last error: %s\n", r.styles.Error.Render(repo.LastError))
		}
	}

	if len(snap.Webhooks) > 0 {
		fmt.Fprintln(r.cfg.Output)
		fmt.Fprintln(r.cfg.Output, "  webhooks:")
		for _, wh := range snap.Webhooks {
			state := "active"
			if wh.Paused {
				state = "paused"
			}
			fmt.Fprintf(r.cfg.Output, "    %s (%s): %s, %d triggers, last %s\n",
				wh.Name, wh.EventType, state, wh.TriggerCount, formatAge(wh.LastTriggered))
		}
	}

	return nil
}

func (r *PlainRenderer) renderRepoStatus(repo RepoStatus) string {
	switch {
	case repo.Indexing:
		return r.styles.Warning.Render("indexing")
	case repo.GraphBuilding:
		return r.styles.Warning.Render("building graph")
	case repo.EmbedPending:
		return r.styles.Warning.Render("embed pending")
	case repo.LastError != "":
		return r.styles.Error.Render("error")
	default:
		return r.styles.Success.Render("ready")
	}
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return t.Format("2006-01-02")
	}
}
