package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/harrison/forge/internal/project"
	"github.com/harrison/forge/internal/taskgraph"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate subcommand: run inference and
// graph/task-graph construction without executing anything, surfacing
// configuration and cycle errors as actionable diagnostics (grounded on
// the teacher's validate command).
func NewValidateCommand() *cobra.Command {
	var configuration string

	cmd := &cobra.Command{
		Use:   "validate [<target>...]",
		Short: "Validate the workspace without running anything",
		Long: `validate runs plugin inference, assembles the project graph, and (if
targets are given) expands the task graph, reporting any configuration,
plugin, or cycle error without executing a single command.

Exit code: 0 if valid, 2 if errors were found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runValidate(cmd, args, configuration)
			if err != nil {
				return err
			}
			if code != ExitSuccess {
				os.Exit(code)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&configuration, "configuration", "", "named target configuration variant to validate against")

	return cmd
}

func runValidate(cmd *cobra.Command, targets []string, configuration string) (int, error) {
	out := cmd.OutOrStdout()
	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return ExitConfigError, nil
	}

	built, err := buildProjectGraph(root)
	if err != nil {
		reportValidateError(out, err)
		return ExitConfigError, nil
	}
	fmt.Fprintf(out, "ok: inferred %d project(s)\n", len(built.Graph.Nodes))

	if _, err := built.Graph.TopologicalSort(); err != nil {
		reportValidateError(out, err)
		return ExitConfigError, nil
	}
	fmt.Fprintln(out, "ok: project graph is acyclic")

	if len(targets) == 0 {
		return ExitSuccess, nil
	}

	g, err := buildTaskGraph(built.Graph, built.Lifecycle, taskgraph.Options{
		RequestedTargets: targets,
		Configuration:    configuration,
	})
	if err != nil {
		reportValidateError(out, err)
		return ExitConfigError, nil
	}
	fmt.Fprintf(out, "ok: task graph for %v has %d task(s) and is acyclic\n", targets, len(g.Tasks))

	return ExitSuccess, nil
}

func reportValidateError(out io.Writer, err error) {
	var pluginErr *PluginError
	var taskCycleErr *taskgraph.CycleError
	var projectCycleErr *project.CycleError
	var configErr *ConfigError
	switch {
	case errors.As(err, &pluginErr):
		fmt.Fprintf(out, "plugin error: %s: %v\n", pluginErr.Plugin, pluginErr.Cause)
	case errors.As(err, &taskCycleErr):
		fmt.Fprintf(out, "cycle error: %v\n", taskCycleErr)
	case errors.As(err, &projectCycleErr):
		fmt.Fprintf(out, "cycle error: %v\n", projectCycleErr)
	case errors.As(err, &configErr):
		fmt.Fprintf(out, "config error: %v\n", configErr.Cause)
	default:
		fmt.Fprintf(out, "error: %v\n", err)
	}
}
