package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for forge.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forge",
		Short: "Monorepo build orchestrator",
		Long: `forge infers projects and their targets from a workspace of plugin
manifests (package.json, go.mod, project.json, ...), assembles them into a
typed project graph, expands requested targets into a lifecycle-aware task
graph, and runs the resulting DAG layer by layer with bounded concurrency.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewGraphCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}
