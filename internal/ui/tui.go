package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TUIRenderer is a live bubbletea dashboard for `codeintel status --watch`,
// polling SnapshotFunc on an interval.
type TUIRenderer struct {
	cfg      Config
	snapshot SnapshotFunc
}

// NewTUIRenderer constructs a TUIRenderer. It fails if stdout is not a TTY.
func NewTUIRenderer(cfg Config, snapshot SnapshotFunc) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	return &TUIRenderer{cfg: cfg, snapshot: snapshot}, nil
}

// Run starts the bubbletea program and blocks until the user quits.
func (r *TUIRenderer) Run() error {
	model := newDashboardModel(r.snapshot, GetStyles(r.cfg.NoColor || DetectNoColor()))

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	p := tea.NewProgram(model, opts...)
	_, err := p.Run()
	return err
}

const refreshInterval = 2 * time.Second

type tickMsg time.Time

type snapshotMsg struct {
	snap Snapshot
	err  error
}

type dashboardModel struct {
	snapshot SnapshotFunc
	styles   Styles
	current  Snapshot
	err      error
	quitting bool
}

func newDashboardModel(snapshot SnapshotFunc, styles Styles) dashboardModel {
	return dashboardModel{snapshot: snapshot, styles: styles}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.poll(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashboardModel) poll() tea.Cmd {
	return func() tea.Msg {
		snap, err := m.snapshot()
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.poll(), tick())
	case snapshotMsg:
		m.current = msg.snap
		m.err = msg.err
	}
	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render("codeintel status: "+m.current.DataDir) + "\n\n")

	if m.err != nil {
		b.WriteString(m.styles.Error.Render("snapshot error: "+m.err.Error()) + "\n")
		return b.String()
	}

	if len(m.current.Repos) == 0 {
		b.WriteString(m.styles.Dim.Render("no repositories indexed") + "\n")
	}
	for _, repo := range m.current.Repos {
		b.WriteString(m.renderRepo(repo))
	}

	if len(m.current.Webhooks) > 0 {
		b.WriteString("\n" + m.styles.Label.Render("webhooks") + "\n")
		for _, wh := range m.current.Webhooks {
			b.WriteString(m.renderWebhook(wh))
		}
	}

	b.WriteString("\n" + m.styles.Dim.Render("q to quit") + "\n")
	return m.styles.Panel.Render(b.String())
}

func (m dashboardModel) renderRepo(repo RepoStatus) string {
	status := m.styles.Success.Render("ready")
	switch {
	case repo.Indexing:
		status = m.styles.Warning.Render("indexing")
	case repo.GraphBuilding:
		status = m.styles.Warning.Render("building graph")
	case repo.EmbedPending:
		status = m.styles.Warning.Render("embed pending")
	case repo.LastError != "":
		status = m.styles.Error.Render("error")
	}
	return fmt.Sprintf("  %s  chunks=%d edges=%d  %s\n",
		m.styles.Label.Render(repo.Name), repo.ChunkCount, repo.EdgeCount, status)
}

func (m dashboardModel) renderWebhook(wh WebhookStatus) string {
	state := m.styles.Success.Render("active")
	if wh.Paused {
		state = m.styles.Dim.Render("paused")
	}
	return fmt.Sprintf("  %s (%s)  triggers=%d  %s\n", wh.Name, wh.EventType, wh.TriggerCount, state)
}
