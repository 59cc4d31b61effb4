// Package report renders the project and task graphs as markdown, and
// converts that markdown to HTML via goldmark for --format=html output
// (spec §6 "forge graph --format=md").
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/harrison/forge/internal/project"
	"github.com/harrison/forge/internal/taskgraph"
)

// ProjectGraphMarkdown renders pg as a markdown report: one section per
// project listing its type, tags, and direct dependencies.
func ProjectGraphMarkdown(pg *project.Graph) string {
	var b strings.Builder
	b.WriteString("# Project Graph\n\n")

	names := make([]string, 0, len(pg.Nodes))
	for name := range pg.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := pg.Nodes[name]
		fmt.Fprintf(&b, "## %s\n\n", name)
		fmt.Fprintf(&b, "- type: `%s`\n", node.ProjectType)
		if len(node.Config.Tags) > 0 {
			fmt.Fprintf(&b, "- tags: %s\n", strings.Join(node.Config.Tags, ", "))
		}
		targets := sortedTargetNames(node.Config.Targets)
		if len(targets) > 0 {
			fmt.Fprintf(&b, "- targets: %s\n", strings.Join(targets, ", "))
		}

		deps := pg.Dependencies(name)
		if len(deps) == 0 {
			b.WriteString("- dependencies: none\n")
		} else {
			b.WriteString("- dependencies:\n")
			for _, e := range deps {
				fmt.Fprintf(&b, "  - %s (%s)\n", e.Target, e.Type)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// TaskGraphMarkdown renders g's layered execution plan as a markdown
// report, one section per layer.
func TaskGraphMarkdown(g *taskgraph.Graph, layers [][]taskgraph.TaskID) string {
	var b strings.Builder
	b.WriteString("# Task Graph\n\n")

	for i, layer := range layers {
		fmt.Fprintf(&b, "## Layer %d\n\n", i)
		for _, id := range layer {
			task := g.Tasks[id]
			deps := sortedTaskIDs(task.Dependencies)
			if len(deps) == 0 {
				fmt.Fprintf(&b, "- `%s`\n", id)
				continue
			}
			names := make([]string, len(deps))
			for j, d := range deps {
				names[j] = string(d)
			}
			fmt.Fprintf(&b, "- `%s` (depends on: %s)\n", id, strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RenderHTML converts a markdown report to HTML via goldmark.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("report: render html: %w", err)
	}
	return buf.String(), nil
}

func sortedTargetNames(targets map[string]project.TargetConfiguration) []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedTaskIDs(deps map[taskgraph.TaskID]bool) []taskgraph.TaskID {
	ids := make([]taskgraph.TaskID, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
