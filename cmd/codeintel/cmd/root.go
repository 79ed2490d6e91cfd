// Package cmd provides the CLI commands for codeintel.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cerp-labs/codeintel/pkg/version"
)

// NewRootCmd creates the root command for the codeintel CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codeintel",
		Short: "Local code-intelligence service",
		Long: `codeintel indexes Git repositories into a content-addressed chunk and
call-graph store, and relays inbound webhook deliveries onto that same
line-delimited stdio protocol.

Run 'codeintel serve index' or 'codeintel serve webhook' to start one of
the two services, or 'codeintel status' to inspect a data directory.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("codeintel version {{.Version}}\n")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one of the two stdio services",
	}
	cmd.AddCommand(newServeIndexCmd())
	cmd.AddCommand(newServeWebhookCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
