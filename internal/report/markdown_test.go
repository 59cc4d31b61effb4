package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/forge/internal/project"
	"github.com/harrison/forge/internal/taskgraph"
)

func samplePG() *project.Graph {
	projects := map[string]project.ProjectConfiguration{
		"app": {
			Name:        "app",
			Root:        "apps/app",
			ProjectType: project.TypeApplication,
			Tags:        []string{"team-a"},
			Targets: map[string]project.TargetConfiguration{
				"build": {Executor: "run-commands"},
			},
		},
		"lib": {
			Name:        "lib",
			Root:        "libs/lib",
			ProjectType: project.TypeLibrary,
			Targets: map[string]project.TargetConfiguration{
				"build": {Executor: "run-commands"},
			},
		},
	}
	edges := []project.Edge{{Source: "app", Target: "lib", Type: project.EdgeStatic}}
	return project.NewGraph(projects, edges, nil)
}

func TestProjectGraphMarkdown(t *testing.T) {
	md := ProjectGraphMarkdown(samplePG())

	assert.Contains(t, md, "# Project Graph")
	assert.Contains(t, md, "## app")
	assert.Contains(t, md, "## lib")
	assert.Contains(t, md, "lib (static)")
	assert.Contains(t, md, "team-a")
}

func TestTaskGraphMarkdown(t *testing.T) {
	g := &taskgraph.Graph{Tasks: map[taskgraph.TaskID]*taskgraph.Task{
		taskgraph.NewTaskID("lib", "build"): {ID: taskgraph.NewTaskID("lib", "build"), Dependencies: map[taskgraph.TaskID]bool{}},
		taskgraph.NewTaskID("app", "build"): {
			ID:           taskgraph.NewTaskID("app", "build"),
			Dependencies: map[taskgraph.TaskID]bool{taskgraph.NewTaskID("lib", "build"): true},
		},
	}}
	layers := [][]taskgraph.TaskID{
		{taskgraph.NewTaskID("lib", "build")},
		{taskgraph.NewTaskID("app", "build")},
	}

	md := TaskGraphMarkdown(g, layers)

	assert.Contains(t, md, "## Layer 0")
	assert.Contains(t, md, "## Layer 1")
	assert.Contains(t, md, "lib:build")
	assert.Contains(t, md, "depends on: lib:build")
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# Title\n\n- item\n")
	require.NoError(t, err)

	assert.True(t, strings.Contains(html, "<h1>Title</h1>"))
	assert.True(t, strings.Contains(html, "<li>item</li>"))
}
