package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/harrison/forge/internal/planner"
	"github.com/harrison/forge/internal/report"
	"github.com/harrison/forge/internal/taskgraph"
	"github.com/spf13/cobra"
)

// NewGraphCommand creates the graph subcommand: render the project graph,
// or the layered task graph for a requested target set, without running
// anything.
func NewGraphCommand() *cobra.Command {
	var format string
	var configuration string

	cmd := &cobra.Command{
		Use:   "graph [<target>...]",
		Short: "Render the project graph, or a target's layered task graph",
		Long: `graph prints the inferred project dependency graph. If one or more
targets are given, it instead prints the layered task graph those targets
expand into.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args, format, configuration)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, md, html, or json")
	cmd.Flags().StringVar(&configuration, "configuration", "", "named target configuration variant to apply")

	return cmd
}

func runGraph(cmd *cobra.Command, targets []string, format, configuration string) error {
	root, err := os.Getwd()
	if err != nil {
		return &ConfigError{Cause: err}
	}

	built, err := buildProjectGraph(root)
	if err != nil {
		return err
	}

	if len(targets) == 0 {
		return renderProjectGraph(cmd, built, format)
	}

	g, err := buildTaskGraph(built.Graph, built.Lifecycle, taskgraph.Options{
		RequestedTargets: targets,
		Configuration:    configuration,
	})
	if err != nil {
		return err
	}

	layers, err := planner.Layers(g)
	if err != nil {
		return &ConfigError{Cause: err}
	}

	return renderTaskGraph(cmd, g, layers, format)
}

func renderProjectGraph(cmd *cobra.Command, built buildResult, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(built.Graph.Nodes)
	case "md":
		fmt.Fprint(out, report.ProjectGraphMarkdown(built.Graph))
		return nil
	case "html":
		html, err := report.RenderHTML(report.ProjectGraphMarkdown(built.Graph))
		if err != nil {
			return err
		}
		fmt.Fprint(out, html)
		return nil
	default:
		fmt.Fprint(out, report.ProjectGraphMarkdown(built.Graph))
		return nil
	}
}

func renderTaskGraph(cmd *cobra.Command, g *taskgraph.Graph, layers [][]taskgraph.TaskID, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(layers)
	case "md":
		fmt.Fprint(out, report.TaskGraphMarkdown(g, layers))
		return nil
	case "html":
		html, err := report.RenderHTML(report.TaskGraphMarkdown(g, layers))
		if err != nil {
			return err
		}
		fmt.Fprint(out, html)
		return nil
	default:
		fmt.Fprint(out, report.TaskGraphMarkdown(g, layers))
		return nil
	}
}
