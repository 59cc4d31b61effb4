package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/harrison/forge/internal/inference"
	"github.com/harrison/forge/internal/lifecycle"
	"github.com/harrison/forge/internal/plugin"
	"github.com/harrison/forge/internal/plugin/gomodplugin"
	"github.com/harrison/forge/internal/plugin/npmplugin"
	"github.com/harrison/forge/internal/plugin/projectjsonplugin"
	"github.com/harrison/forge/internal/project"
	"github.com/harrison/forge/internal/taskgraph"
	"github.com/harrison/forge/internal/workspace"
)

// builtinPlugins returns the default plugin set, in discovery order.
// projectjsonplugin runs last so its explicit per-project overrides win
// target-name conflicts in the inference merge (spec §4.3).
func builtinPlugins() []plugin.Plugin {
	return []plugin.Plugin{
		npmplugin.New(),
		gomodplugin.New(),
		projectjsonplugin.New(),
	}
}

// buildResult bundles everything downstream commands need: the loaded
// workspace, merged project graph, and the lifecycle used to build it.
type buildResult struct {
	Workspace workspace.Workspace
	Graph     *project.Graph
	Lifecycle *lifecycle.Configuration
}

// buildProjectGraph loads the workspace config at root, runs inference
// with the builtin plugins, and assembles the typed project graph.
func buildProjectGraph(root string) (buildResult, error) {
	ws, err := workspace.Load(root)
	if err != nil {
		return buildResult{}, &ConfigError{Cause: err}
	}

	result, err := inference.Run(root, ws.Config.Raw, builtinPlugins(), func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
	})
	if err != nil {
		return buildResult{}, &ConfigError{Cause: err}
	}

	pg := project.NewGraph(result.Projects, result.Edges, ws.Config.TargetDefaults)
	lc := lifecycle.Default()

	return buildResult{Workspace: ws, Graph: pg, Lifecycle: lc}, nil
}

// buildTaskGraph expands targets over pg per opts, wrapping a resulting
// cycle into the same error shape run/validate surface for exit codes.
func buildTaskGraph(pg *project.Graph, lc *lifecycle.Configuration, opts taskgraph.Options) (*taskgraph.Graph, error) {
	opts.Lifecycle = lc
	if opts.Warnf == nil {
		opts.Warnf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		}
	}
	g, err := taskgraph.Build(pg, opts)
	if err != nil {
		var cycleErr *taskgraph.CycleError
		if errors.As(err, &cycleErr) {
			return nil, cycleErr
		}
		return nil, &ConfigError{Cause: err}
	}
	return g, nil
}
