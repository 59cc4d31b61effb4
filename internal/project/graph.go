package project

import (
	"fmt"
	"sort"
)

// Graph is the typed, queryable project graph: nodes keyed by project name
// plus an outgoing adjacency list of deduplicated edges.
type Graph struct {
	Nodes map[string]*Node
	Edges map[string][]Edge
}

// NewGraph constructs a Graph from merged project configurations and raw
// edges, applying target defaults and dropping edges to unknown projects,
// self-edges, and duplicate (source,target,type) triples.
func NewGraph(projects map[string]ProjectConfiguration, edges []Edge, targetDefaults map[string]TargetConfiguration) *Graph {
	g := &Graph{
		Nodes: make(map[string]*Node, len(projects)),
		Edges: make(map[string][]Edge),
	}

	for name, cfg := range projects {
		cfg.Targets = applyTargetDefaults(cfg.Targets, targetDefaults)
		g.Nodes[name] = &Node{Config: cfg, ProjectType: cfg.ProjectType}
	}

	seen := make(map[string]bool)
	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		if _, ok := g.Nodes[e.Source]; !ok {
			continue
		}
		if _, ok := g.Nodes[e.Target]; !ok {
			continue
		}
		key := e.Source + "\x00" + e.Target + "\x00" + string(e.Type)
		if seen[key] {
			continue
		}
		seen[key] = true
		g.Edges[e.Source] = append(g.Edges[e.Source], e)
	}

	return g
}

// applyTargetDefaults merges workspace targetDefaults into every project
// target whose name appears in defaults: project values win field by
// field; dependsOn/inputs/outputs are unioned with project values appended
// (dedup, order preserved); options/configurations deep-merge with project
// values winning.
func applyTargetDefaults(targets map[string]TargetConfiguration, defaults map[string]TargetConfiguration) map[string]TargetConfiguration {
	if len(defaults) == 0 {
		if targets == nil {
			return map[string]TargetConfiguration{}
		}
		return targets
	}

	merged := make(map[string]TargetConfiguration, len(targets))
	for name, t := range targets {
		merged[name] = t
	}

	for name, def := range defaults {
		project, hasProject := merged[name]
		if !hasProject {
			merged[name] = def.Clone()
			continue
		}
		merged[name] = mergeTarget(def, project)
	}

	return merged
}

func mergeTarget(def, project TargetConfiguration) TargetConfiguration {
	out := def.Clone()

	if project.Executor != "" {
		out.Executor = project.Executor
	}
	out.Options = mergeOptions(def.Options, project.Options)
	out.Configurations = mergeConfigurations(def.Configurations, project.Configurations)
	out.DependsOn = unionStrings(def.DependsOn, project.DependsOn)
	out.Inputs = unionStrings(def.Inputs, project.Inputs)
	out.Outputs = unionStrings(def.Outputs, project.Outputs)
	if project.Cache != nil {
		out.Cache = cloneBoolPtr(project.Cache)
	}
	if project.Parallelism != nil {
		out.Parallelism = cloneBoolPtr(project.Parallelism)
	}

	return out
}

func mergeOptions(base, override map[string]any) map[string]any {
	merged := cloneMap(base)
	if merged == nil {
		merged = make(map[string]any)
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func mergeConfigurations(base, override map[string]map[string]any) map[string]map[string]any {
	if base == nil && override == nil {
		return nil
	}
	merged := make(map[string]map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = cloneMap(v)
	}
	for k, v := range override {
		merged[k] = mergeOptions(merged[k], v)
	}
	return merged
}

// unionStrings appends b's elements after a's, deduplicating while
// preserving first-seen order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// GetProject returns the named project's configuration.
func (g *Graph) GetProject(name string) (ProjectConfiguration, bool) {
	n, ok := g.Nodes[name]
	if !ok {
		return ProjectConfiguration{}, false
	}
	return n.Config, true
}

// HasProject reports whether name resolves to a node.
func (g *Graph) HasProject(name string) bool {
	_, ok := g.Nodes[name]
	return ok
}

// ProjectsByTag returns project names carrying the given tag, sorted.
func (g *Graph) ProjectsByTag(tag string) []string {
	var out []string
	for name, n := range g.Nodes {
		for _, t := range n.Config.Tags {
			if t == tag {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// ProjectsByType returns project names of the given type, sorted.
func (g *Graph) ProjectsByType(t ProjectType) []string {
	var out []string
	for name, n := range g.Nodes {
		if n.ProjectType == t {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Dependencies returns name's direct outgoing edges.
func (g *Graph) Dependencies(name string) []Edge {
	return g.Edges[name]
}

// TransitiveDependencies performs a BFS over outgoing edges starting at
// name, stopping at already-visited nodes to tolerate cycles. name itself
// is not included in the result.
func (g *Graph) TransitiveDependencies(name string) []string {
	return g.bfs(name, func(n string) []Edge { return g.Edges[n] }, func(e Edge) string { return e.Target })
}

// TransitiveDependents performs a BFS over reverse edges starting at name.
func (g *Graph) TransitiveDependents(name string) []string {
	reverse := g.reverseEdges()
	return g.bfs(name, func(n string) []Edge { return reverse[n] }, func(e Edge) string { return e.Target })
}

func (g *Graph) reverseEdges() map[string][]Edge {
	rev := make(map[string][]Edge)
	for src, edges := range g.Edges {
		for _, e := range edges {
			rev[e.Target] = append(rev[e.Target], Edge{Source: e.Target, Target: src, Type: e.Type})
		}
	}
	return rev
}

func (g *Graph) bfs(start string, edgesOf func(string) []Edge, targetOf func(Edge) string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	var order []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range edgesOf(cur) {
			t := targetOf(e)
			if visited[t] {
				continue
			}
			visited[t] = true
			order = append(order, t)
			queue = append(queue, t)
		}
	}

	sort.Strings(order)
	return order
}

// CycleError reports a cycle found during topological sort, including the
// offending path.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", formatPath(e.Path))
}

func formatPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// TopologicalSort returns the project names grouped into dependency layers
// (a project appears in the layer after all of its dependencies' layers).
// It returns a *CycleError, including the cycle path, if the graph is
// cyclic.
func (g *Graph) TopologicalSort() ([][]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	for name := range g.Nodes {
		inDegree[name] = 0
	}
	for _, edges := range g.Edges {
		for _, e := range edges {
			inDegree[e.Target]++
		}
	}

	var layers [][]string
	resolved := make(map[string]bool, len(g.Nodes))

	for len(resolved) < len(g.Nodes) {
		var layer []string
		for name := range g.Nodes {
			if resolved[name] {
				continue
			}
			ready := true
			for _, e := range g.Edges[name] {
				if !resolved[e.Target] {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, name)
			}
		}

		if len(layer) == 0 {
			path, _ := g.findCycle()
			return nil, &CycleError{Path: path}
		}

		sort.Strings(layer)
		layers = append(layers, layer)
		for _, name := range layer {
			resolved[name] = true
		}
	}

	return layers, nil
}

func incomingOf(g *Graph, target string) []Edge {
	var out []Edge
	for _, edges := range g.Edges {
		for _, e := range edges {
			if e.Target == target {
				out = append(out, e)
			}
		}
	}
	return out
}

// findCycle performs a DFS to locate one cycle's path for error reporting.
func (g *Graph) findCycle() ([]string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))
	var path []string

	var visit func(string) ([]string, bool)
	visit = func(n string) ([]string, bool) {
		color[n] = gray
		path = append(path, n)

		for _, e := range g.Edges[n] {
			switch color[e.Target] {
			case gray:
				// Found the back-edge; extract the cycle portion of path.
				start := 0
				for i, p := range path {
					if p == e.Target {
						start = i
						break
					}
				}
				cycle := append([]string(nil), path[start:]...)
				cycle = append(cycle, e.Target)
				return cycle, true
			case white:
				if cyc, found := visit(e.Target); found {
					return cyc, true
				}
			}
		}

		color[n] = black
		path = path[:len(path)-1]
		return nil, false
	}

	names := make([]string, 0, len(g.Nodes))
	for n := range g.Nodes {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		if color[n] == white {
			if cyc, found := visit(n); found {
				return cyc, true
			}
		}
	}

	return nil, false
}
