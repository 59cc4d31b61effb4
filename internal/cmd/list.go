package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewListCommand creates the list subcommand: a read-only companion to
// graph that enumerates discovered projects and, per project, their
// targets (grounded on the teacher's project-analysis listing style).
func NewListCommand() *cobra.Command {
	var tag string
	var projectType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered projects and their targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, tag, projectType)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&tag, "tag", "", "only list projects carrying this tag")
	cmd.Flags().StringVar(&projectType, "type", "", "only list projects of this type (application, library)")

	return cmd
}

func runList(cmd *cobra.Command, tag, projectType string) error {
	root, err := os.Getwd()
	if err != nil {
		return &ConfigError{Cause: err}
	}

	built, err := buildProjectGraph(root)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(built.Graph.Nodes))
	for name := range built.Graph.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, name := range names {
		node := built.Graph.Nodes[name]
		if tag != "" && !hasTag(node.Config.Tags, tag) {
			continue
		}
		if projectType != "" && string(node.ProjectType) != projectType {
			continue
		}

		targets := make([]string, 0, len(node.Config.Targets))
		for t := range node.Config.Targets {
			targets = append(targets, t)
		}
		sort.Strings(targets)

		fmt.Fprintf(out, "%s (%s)\n", name, node.ProjectType)
		if node.Config.Root != "" {
			fmt.Fprintf(out, "  root: %s\n", node.Config.Root)
		}
		if len(node.Config.Tags) > 0 {
			fmt.Fprintf(out, "  tags: %s\n", strings.Join(node.Config.Tags, ", "))
		}
		if len(targets) > 0 {
			fmt.Fprintf(out, "  targets: %s\n", strings.Join(targets, ", "))
		}
	}

	return nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
