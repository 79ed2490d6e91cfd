package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cerp-labs/codeintel/internal/protocol"
	"github.com/cerp-labs/codeintel/internal/webhook"
)

func newServeWebhookCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Run the Webhook Service's stdio dispatcher and HTTP listener",
		Long: `Reads line-delimited JSON-RPC requests from stdin and writes responses
to stdout, same as 'serve index'. The 'initialize' request additionally
starts an HTTP listener on 127.0.0.1:<ephemeral> that accepts inbound
webhook deliveries at /hooks/{webhook_id}.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeWebhook(cmd, logLevel)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}

func runServeWebhook(cmd *cobra.Command, logLevel string) error {
	logger, cleanup, err := setupServiceLogging("webhook", logLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	dispatch := webhook.NewDispatch(logger)
	return protocol.Run(cmd.Context(), os.Stdin, os.Stdout, dispatch)
}
