package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cerp-labs/codeintel/internal/ui"
	"github.com/cerp-labs/codeintel/internal/webhook"
)

func newStatusCmd() *cobra.Command {
	var (
		watch      bool
		jsonOutput bool
		dataDir    string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show repository and webhook status for a data directory",
		Long: `Reports indexed repositories (chunk/edge counts, indexing state) and
registered webhooks (trigger counts, pause state) without contacting a
running service: it reads metadata.json and webhooks.json directly, the
same files the Index and Webhook Services persist to.

With --watch and a TTY stdout, renders a live dashboard that refreshes
every few seconds. Otherwise prints one snapshot (JSON with --json).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataDir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				dataDir = filepath.Join(cwd, ".codeintel")
			}

			renderer := ui.NewRenderer(ui.Config{
				Output:     cmd.OutOrStdout(),
				ForcePlain: !watch,
				JSON:       jsonOutput,
			}, func() (ui.Snapshot, error) {
				return snapshotDataDir(dataDir)
			})
			return renderer.Run()
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Render a live dashboard (requires a TTY)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output one JSON snapshot")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ./.codeintel)")

	return cmd
}

// metadataDocument mirrors the JSON shape state.Metadata persists, read
// directly here so status never competes for the data directory's
// exclusive lock with a running service.
type metadataDocument struct {
	Repositories map[string]struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		ChunkCount    int       `json:"chunk_count"`
		EdgeCount     int       `json:"edge_count"`
		UpdatedAt     time.Time `json:"updated_at"`
		LastError     string    `json:"last_error,omitempty"`
		EmbedPending  bool      `json:"embed_pending"`
		Indexing      bool      `json:"indexing"`
		GraphBuilding bool      `json:"graph_building"`
	} `json:"repositories"`
}

func snapshotDataDir(dataDir string) (ui.Snapshot, error) {
	snap := ui.Snapshot{DataDir: dataDir, GeneratedAt: time.Now()}

	data, err := os.ReadFile(filepath.Join(dataDir, "metadata.json"))
	switch {
	case os.IsNotExist(err):
		// No index yet; report an empty snapshot rather than erroring.
	case err != nil:
		return snap, fmt.Errorf("reading metadata.json: %w", err)
	default:
		var doc metadataDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return snap, fmt.Errorf("parsing metadata.json: %w", err)
		}
		for _, repo := range doc.Repositories {
			snap.Repos = append(snap.Repos, ui.RepoStatus{
				ID:            repo.ID,
				Name:          repo.Name,
				ChunkCount:    repo.ChunkCount,
				EdgeCount:     repo.EdgeCount,
				LastIndexed:   repo.UpdatedAt,
				Indexing:      repo.Indexing,
				GraphBuilding: repo.GraphBuilding,
				EmbedPending:  repo.EmbedPending,
				LastError:     repo.LastError,
			})
		}
	}

	store, err := webhook.Open(dataDir)
	if err != nil {
		return snap, fmt.Errorf("opening webhooks.json: %w", err)
	}
	for _, wh := range store.List() {
		snap.Webhooks = append(snap.Webhooks, ui.WebhookStatus{
			ID:            wh.ID,
			Name:          wh.Name,
			EventType:     wh.EventType,
			Paused:        wh.Paused,
			TriggerCount:  wh.TriggerCount,
			LastTriggered: wh.LastTriggered,
		})
	}

	return snap, nil
}
