// Package inference drives plugins to produce project configurations and
// raw dependency edges, merging their contributions by project name.
package inference

import (
	"fmt"
	"log"
	"sort"

	"github.com/harrison/forge/internal/matcher"
	"github.com/harrison/forge/internal/plugin"
	"github.com/harrison/forge/internal/project"
)

// Error is returned only when the plugin set itself is malformed, e.g.
// duplicate plugin ids.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

// Result is the merged output of running every plugin's CreateNodes and
// CreateDependencies.
type Result struct {
	Projects      map[string]project.ProjectConfiguration
	Edges         []project.Edge
	ExternalNodes map[string]any
}

// Logf is used to report plugin failures and dropped work; defaults to the
// standard logger if nil.
type Logf func(format string, args ...any)

// Run executes the inference algorithm in spec order: per-plugin file
// discovery and node creation (merged by name as each plugin completes),
// then every plugin's CreateDependencies against the fully merged project
// set.
func Run(workspaceRoot string, workspaceConfig map[string]any, plugins []plugin.Plugin, logf Logf) (Result, error) {
	if logf == nil {
		logf = func(format string, args ...any) { log.Printf(format, args...) }
	}

	if err := checkDuplicateIDs(plugins); err != nil {
		return Result{}, err
	}

	projects := make(map[string]project.ProjectConfiguration)
	externalNodes := make(map[string]any)

	for _, p := range plugins {
		files, err := matcher.Match(workspaceRoot, p.CreateNodesPattern(), nil, func(path string, err error) {
			logf("inference: walk error under %s: %v", path, err)
		})
		if err != nil {
			logf("inference: plugin %s: pattern resolution failed: %v", p.ID(), err)
			continue
		}
		if len(files) == 0 {
			continue
		}

		options := plugin.MergeOptions(p.DefaultOptions(), optionsFor(workspaceConfig, p.ID()))

		result, err := safeCreateNodes(p, files, options, plugin.NodeContext{
			WorkspaceRoot:   workspaceRoot,
			WorkspaceConfig: workspaceConfig,
		})
		if err != nil {
			logf("inference: plugin %s: createNodes failed, discarding contribution: %v", p.ID(), err)
			continue
		}

		mergeProjects(projects, result.Projects)
		for k, v := range result.ExternalNodes {
			externalNodes[k] = v
		}
	}

	var edges []project.Edge
	for _, p := range plugins {
		provider, ok := p.(plugin.DependencyProvider)
		if !ok {
			continue
		}

		options := plugin.MergeOptions(p.DefaultOptions(), optionsFor(workspaceConfig, p.ID()))
		pluginEdges, err := safeCreateDependencies(provider, options, plugin.DependencyContext{
			WorkspaceRoot:   workspaceRoot,
			WorkspaceConfig: workspaceConfig,
			Projects:        projects,
		})
		if err != nil {
			logf("inference: plugin %s: createDependencies failed, discarding contribution: %v", p.ID(), err)
			continue
		}
		edges = append(edges, pluginEdges...)
	}

	return Result{Projects: projects, Edges: edges, ExternalNodes: externalNodes}, nil
}

func checkDuplicateIDs(plugins []plugin.Plugin) error {
	seen := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		if seen[p.ID()] {
			return &Error{msg: fmt.Sprintf("inference: duplicate plugin id %q", p.ID())}
		}
		seen[p.ID()] = true
	}
	return nil
}

func optionsFor(workspaceConfig map[string]any, pluginID string) map[string]any {
	plugins, ok := workspaceConfig["plugins"].([]any)
	if !ok {
		return nil
	}
	for _, entry := range plugins {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := m["plugin"].(string); id == pluginID {
			if opts, ok := m["options"].(map[string]any); ok {
				return opts
			}
		}
	}
	return nil
}

// mergeProjects implements the §4.3 merge rule: union targets (later
// plugin wins target-name conflicts), union tags (dedup, first-seen
// order), first-seen root/sourceRoot/projectType.
func mergeProjects(acc map[string]project.ProjectConfiguration, incoming map[string]project.ProjectConfiguration) {
	names := make([]string, 0, len(incoming))
	for name := range incoming {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		next := incoming[name]
		existing, present := acc[name]
		if !present {
			acc[name] = next
			continue
		}

		merged := existing
		if merged.Targets == nil {
			merged.Targets = make(map[string]project.TargetConfiguration)
		} else {
			targets := make(map[string]project.TargetConfiguration, len(merged.Targets))
			for k, v := range merged.Targets {
				targets[k] = v
			}
			merged.Targets = targets
		}
		for tname, t := range next.Targets {
			merged.Targets[tname] = t
		}

		merged.Tags = unionTags(existing.Tags, next.Tags)

		acc[name] = merged
	}
}

func unionTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range b {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// safeCreateNodes recovers from a plugin panic, converting it into an
// error so one misbehaving plugin cannot abort the whole inference run.
func safeCreateNodes(p plugin.Plugin, files []string, options map[string]any, ctx plugin.NodeContext) (result plugin.NodesResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.CreateNodes(files, options, ctx)
}

func safeCreateDependencies(p plugin.DependencyProvider, options map[string]any, ctx plugin.DependencyContext) (edges []project.Edge, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.CreateDependencies(options, ctx)
}
