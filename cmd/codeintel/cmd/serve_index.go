package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cerp-labs/codeintel/internal/logging"
	"github.com/cerp-labs/codeintel/internal/ops"
	"github.com/cerp-labs/codeintel/internal/protocol"
)

func newServeIndexCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run the Index Service's stdio dispatcher",
		Long: `Reads line-delimited JSON-RPC requests from stdin and writes responses
to stdout. The first request must be 'initialize' carrying a data_dir; all
logging goes to a rotating file under .codeintel/logs in the current
directory (fixed at start, independent of data_dir), never to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeIndex(cmd, logLevel)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}

func runServeIndex(cmd *cobra.Command, logLevel string) error {
	logger, cleanup, err := setupServiceLogging("index", logLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	dispatch := ops.NewDispatch(logger)
	return protocol.Run(cmd.Context(), os.Stdin, os.Stdout, dispatch)
}

// setupServiceLogging builds a rotating-file logger for service at a
// best-effort default data directory (the current directory's
// .codeintel). The actual data_dir carried by the first initialize
// request governs where indexed state lands; the log file location is
// fixed at process start since logging must exist before initialize
// arrives.
func setupServiceLogging(service, level string) (*slog.Logger, func(), error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	dataDir := filepath.Join(cwd, ".codeintel")
	if err := logging.EnsureLogDir(dataDir); err != nil {
		return nil, nil, err
	}

	cfg := logging.DefaultConfig(logging.LogPath(dataDir, service))
	cfg.Level = level
	cfg.WriteToStderr = false
	return logging.Setup(cfg)
}
