package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cerp-labs/codeintel/configs"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage codeintel configuration files",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var global, force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starting configuration file",
		Long: `Writes .codeintel.yaml in the current directory, or with --global,
~/.config/codeintel/config.yaml. Refuses to overwrite an existing file
unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(global, force)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Write the user config instead of the project config")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func runConfigInit(global, force bool) error {
	path, template := configTargetAndTemplate(global)

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, []byte(template), 0o644)
}

func configTargetAndTemplate(global bool) (path string, template string) {
	if global {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		return filepath.Join(dir, "codeintel", "config.yaml"), configs.UserConfigTemplate
	}
	return ".codeintel.yaml", configs.ProjectConfigTemplate
}
