// Package taskgraph expands requested targets into a lifecycle-aware task
// graph: local prerequisite edges, explicit cross-project dependsOn edges,
// and phase-matching edges, following spec §4.5.
//
// The traversal/synthesis strategy below is grounded on the turborepo Go
// scheduler's package-task expansion (generateTaskGraph): a traversal
// queue of task ids that grows as dependencies are discovered, visited
// once each.
package taskgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harrison/forge/internal/lifecycle"
	"github.com/harrison/forge/internal/project"
)

// TaskID is "<project>:<target>"; neither half may contain ':'.
type TaskID string

// NewTaskID builds a TaskID, panicking if either half contains ':' (a
// programmer error — callers only ever pass project/target names already
// validated not to contain it).
func NewTaskID(projectName, target string) TaskID {
	if strings.Contains(projectName, ":") || strings.Contains(target, ":") {
		panic(fmt.Sprintf("taskgraph: invalid TaskID components %q, %q", projectName, target))
	}
	return TaskID(projectName + ":" + target)
}

// Split parses a TaskID back into project and target.
func (id TaskID) Split() (project, target string) {
	s := string(id)
	idx := strings.Index(s, ":")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx+1:]
}

// Task is a concrete (project, target) pair instantiated for one
// invocation.
type Task struct {
	ID           TaskID
	Project      string
	Target       string
	Configuration project.TargetConfiguration
	Dependencies map[TaskID]bool
	Inputs       []string
	Outputs      []string
	Cache        bool
}

// Graph is the task graph: tasks keyed by id, with each task's
// Dependencies as its outgoing edges.
type Graph struct {
	Tasks map[TaskID]*Task
}

// CycleError reports a cyclic task graph.
type CycleError struct {
	Path []TaskID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = string(id)
	}
	return fmt.Sprintf("task graph cycle: %s", strings.Join(parts, " -> "))
}

// Options configures Build.
type Options struct {
	// RequestedTargets is the non-empty set of target names to expand.
	RequestedTargets []string
	// ProjectSubset restricts expansion to these projects; nil means all
	// projects in the graph.
	ProjectSubset []string
	// Affected, if non-nil, restricts the initial task set to these
	// projects union their transitive dependents, intersected with
	// ProjectSubset.
	Affected []string
	// Lifecycle supplies prerequisite/phase-matching configuration.
	Lifecycle *lifecycle.Configuration
	// Warnf receives a warning whenever a requested target does not exist
	// on a project (the task is then skipped, not an error).
	Warnf func(format string, args ...any)
	// Configuration, if non-empty, names a target.Configurations variant
	// whose option overrides are merged onto every task's options (spec
	// §3's named configurations, e.g. "production").
	Configuration string
}

// Build expands opts.RequestedTargets over the project graph into a
// TaskGraph per spec §4.5, returning a *CycleError if the result is
// cyclic.
func Build(pg *project.Graph, opts Options) (*Graph, error) {
	if opts.Warnf == nil {
		opts.Warnf = func(string, ...any) {}
	}

	projectScope := resolveProjectScope(pg, opts)

	g := &Graph{Tasks: make(map[TaskID]*Task)}

	for _, projName := range projectScope {
		cfg, ok := pg.GetProject(projName)
		if !ok {
			continue
		}
		for _, reqTarget := range opts.RequestedTargets {
			if _, exists := cfg.Targets[reqTarget]; !exists {
				opts.Warnf("taskgraph: project %s has no target %q, skipping", projName, reqTarget)
				continue
			}
			expandProjectTarget(g, pg, projName, reqTarget, opts.Lifecycle, opts.Configuration, opts.Warnf)
		}
	}

	addLocalEdges(g, pg, opts.Lifecycle)
	if err := addDependsOnEdges(g, pg, opts.Lifecycle, opts.Configuration, opts.Warnf); err != nil {
		return nil, err
	}
	addPhaseMatchingEdges(g, pg, opts.Lifecycle)

	if path, cyclic := findCycle(g); cyclic {
		return nil, &CycleError{Path: path}
	}

	return g, nil
}

func resolveProjectScope(pg *project.Graph, opts Options) []string {
	scope := opts.ProjectSubset
	if len(scope) == 0 {
		scope = allProjectNames(pg)
	}

	if len(opts.Affected) == 0 {
		return scope
	}

	affectedSet := make(map[string]bool)
	for _, name := range opts.Affected {
		affectedSet[name] = true
		for _, dep := range pg.TransitiveDependents(name) {
			affectedSet[dep] = true
		}
	}

	scopeSet := make(map[string]bool, len(scope))
	for _, s := range scope {
		scopeSet[s] = true
	}

	var out []string
	for name := range affectedSet {
		if scopeSet[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func allProjectNames(pg *project.Graph) []string {
	names := make([]string, 0, len(pg.Nodes))
	for name := range pg.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expandProjectTarget creates a task for (projName, target) and, via the
// lifecycle's transitive prerequisites, every task it locally requires.
func expandProjectTarget(g *Graph, pg *project.Graph, projName, target string, lc *lifecycle.Configuration, configuration string, warnf func(string, ...any)) {
	ensureTask(g, pg, projName, target, configuration, warnf)

	if lc == nil {
		return
	}
	for _, prereq := range lc.TransitivePrerequisites(target) {
		ensureTask(g, pg, projName, prereq, configuration, warnf)
	}
}

// ensureTask inserts a Task for (projName, target) if the target exists on
// the project and a task does not already exist; returns ok=false if the
// target is unknown. configuration, if non-empty, overlays the matching
// named option variant onto the task's options.
func ensureTask(g *Graph, pg *project.Graph, projName, target, configuration string, warnf func(string, ...any)) bool {
	id := NewTaskID(projName, target)
	if _, exists := g.Tasks[id]; exists {
		return true
	}

	cfg, ok := pg.GetProject(projName)
	if !ok {
		return false
	}
	targetCfg, ok := cfg.Targets[target]
	if !ok {
		warnf("taskgraph: project %s has no target %q, skipping", projName, target)
		return false
	}
	targetCfg = withConfiguration(targetCfg, configuration)

	g.Tasks[id] = &Task{
		ID:            id,
		Project:       projName,
		Target:        target,
		Configuration: targetCfg,
		Dependencies:  make(map[TaskID]bool),
		Inputs:        targetCfg.Inputs,
		Outputs:       targetCfg.Outputs,
		Cache:         project.BoolValue(targetCfg.Cache),
	}
	return true
}

// withConfiguration overlays targetCfg.Configurations[name]'s options onto
// targetCfg.Options, override winning, leaving targetCfg unchanged when
// name is empty or unknown.
func withConfiguration(targetCfg project.TargetConfiguration, name string) project.TargetConfiguration {
	if name == "" {
		return targetCfg
	}
	overrides, ok := targetCfg.Configurations[name]
	if !ok {
		return targetCfg
	}
	out := targetCfg.Clone()
	if out.Options == nil {
		out.Options = make(map[string]any, len(overrides))
	}
	for k, v := range overrides {
		out.Options[k] = v
	}
	return out
}

// addLocalEdges adds, for every created task p:t, an edge to p:t' for
// every lifecycle prerequisite t' of t that is also a created task in p.
func addLocalEdges(g *Graph, pg *project.Graph, lc *lifecycle.Configuration) {
	if lc == nil {
		return
	}
	for id, task := range g.Tasks {
		for _, prereq := range lc.Prerequisites(task.Target) {
			prereqID := NewTaskID(task.Project, prereq)
			if _, exists := g.Tasks[prereqID]; exists {
				task.Dependencies[prereqID] = true
			}
		}
		_ = id
	}
}

// addDependsOnEdges interprets each created task's TargetConfiguration
// .DependsOn per spec §4.5 step 3, synthesizing missing prerequisite tasks
// (and their own local edges) as needed.
func addDependsOnEdges(g *Graph, pg *project.Graph, lc *lifecycle.Configuration, configuration string, warnf func(string, ...any)) error {
	// Tasks may grow while we process dependsOn (synthesis); iterate over
	// a stable snapshot of ids and keep re-scanning until no new tasks
	// appear.
	processed := make(map[TaskID]bool)

	for {
		ids := taskIDs(g)
		progressed := false

		for _, id := range ids {
			if processed[id] {
				continue
			}
			processed[id] = true
			progressed = true

			task := g.Tasks[id]
			refs := ParseDependsOn(task.Configuration.DependsOn)

			for _, ref := range refs {
				switch ref.Kind {
				case KindUpstream:
					for _, edge := range pg.Dependencies(task.Project) {
						depID := NewTaskID(edge.Target, ref.Target)
						if synthesizeIfNeeded(g, pg, edge.Target, ref.Target, lc, configuration, warnf) {
							task.Dependencies[depID] = true
						}
					}
				case KindCross:
					if synthesizeIfNeeded(g, pg, ref.Project, ref.Target, lc, configuration, warnf) {
						task.Dependencies[NewTaskID(ref.Project, ref.Target)] = true
					}
				case KindLocal:
					if synthesizeIfNeeded(g, pg, task.Project, ref.Target, lc, configuration, warnf) {
						task.Dependencies[NewTaskID(task.Project, ref.Target)] = true
					}
				}
			}
		}

		if !progressed {
			break
		}
	}

	return nil
}

// synthesizeIfNeeded ensures projName:target exists as a task, creating it
// (with its own lifecycle prerequisite closure and local edges) if it
// doesn't, per the "synthesize the missing task" rule of spec §4.5 step 3.
// Returns false if the target does not exist on the project at all.
func synthesizeIfNeeded(g *Graph, pg *project.Graph, projName, target string, lc *lifecycle.Configuration, configuration string, warnf func(string, ...any)) bool {
	id := NewTaskID(projName, target)
	if _, exists := g.Tasks[id]; exists {
		return true
	}

	if !ensureTask(g, pg, projName, target, configuration, warnf) {
		return false
	}

	var chain []string
	if lc != nil {
		chain = lc.TransitivePrerequisites(target)
		for _, prereq := range chain {
			ensureTask(g, pg, projName, prereq, configuration, warnf)
		}
	}

	// Wire local edges only once the whole chain exists, so every link
	// finds its prerequisite task.
	addLocalEdgesForTask(g, lc, id)
	for _, prereq := range chain {
		addLocalEdgesForTask(g, lc, NewTaskID(projName, prereq))
	}

	return true
}

func addLocalEdgesForTask(g *Graph, lc *lifecycle.Configuration, id TaskID) {
	if lc == nil {
		return
	}
	task, ok := g.Tasks[id]
	if !ok {
		return
	}
	for _, prereq := range lc.Prerequisites(task.Target) {
		prereqID := NewTaskID(task.Project, prereq)
		if _, exists := g.Tasks[prereqID]; exists {
			task.Dependencies[prereqID] = true
		}
	}
}

// addPhaseMatchingEdges applies lifecycle phase-matching rules (spec §4.5
// step 4): for each task p:t and each outgoing project edge p->q, for each
// matching rule whose condition holds, add p:t -> q:upstreamPhase if that
// task exists in the graph (phase-matching never synthesizes).
func addPhaseMatchingEdges(g *Graph, pg *project.Graph, lc *lifecycle.Configuration) {
	if lc == nil {
		return
	}
	for _, task := range g.Tasks {
		rules := lc.RulesFor(task.Target)
		if len(rules) == 0 {
			continue
		}
		for _, edge := range pg.Dependencies(task.Project) {
			for _, rule := range rules {
				if !rule.When.Evaluate(task.Target) {
					continue
				}
				depID := NewTaskID(edge.Target, rule.Upstream)
				if _, exists := g.Tasks[depID]; exists {
					task.Dependencies[depID] = true
				}
			}
		}
	}
}

func taskIDs(g *Graph) []TaskID {
	ids := make([]TaskID, 0, len(g.Tasks))
	for id := range g.Tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// findCycle performs a DFS over task dependency edges to detect and report
// a cycle.
func findCycle(g *Graph) ([]TaskID, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[TaskID]int, len(g.Tasks))
	var path []TaskID

	var visit func(TaskID) ([]TaskID, bool)
	visit = func(id TaskID) ([]TaskID, bool) {
		color[id] = gray
		path = append(path, id)

		deps := sortedDeps(g.Tasks[id])
		for _, dep := range deps {
			switch color[dep] {
			case gray:
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := append([]TaskID(nil), path[start:]...)
				cycle = append(cycle, dep)
				return cycle, true
			case white:
				if cyc, found := visit(dep); found {
					return cyc, true
				}
			}
		}

		color[id] = black
		path = path[:len(path)-1]
		return nil, false
	}

	for _, id := range taskIDs(g) {
		if color[id] == white {
			if cyc, found := visit(id); found {
				return cyc, true
			}
		}
	}

	return nil, false
}

func sortedDeps(t *Task) []TaskID {
	deps := make([]TaskID, 0, len(t.Dependencies))
	for d := range t.Dependencies {
		deps = append(deps, d)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	return deps
}
