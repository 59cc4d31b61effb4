// Package lifecycle provides phase ordering, prerequisites, and
// phase-matching rules used by the task graph builder to expand requested
// targets and to add cross-project edges.
package lifecycle

// Condition gates whether a phase-matching rule fires for a given
// downstream target name.
type Condition int

const (
	// Always fires unconditionally.
	Always Condition = iota
	// IfIntegrationTest fires when the downstream target name contains
	// "integration".
	IfIntegrationTest
	// IfEmbedsDependency fires when the downstream target is "package" or
	// "build".
	IfEmbedsDependency
	// IfRuntimeDependency fires when the downstream target is "test" or
	// "run".
	IfRuntimeDependency
	// Never never fires.
	Never
)

// Evaluate reports whether the condition holds for downstreamTarget.
func (c Condition) Evaluate(downstreamTarget string) bool {
	switch c {
	case Always:
		return true
	case IfIntegrationTest:
		return containsSubstr(downstreamTarget, "integration")
	case IfEmbedsDependency:
		return downstreamTarget == "package" || downstreamTarget == "build"
	case IfRuntimeDependency:
		return downstreamTarget == "test" || downstreamTarget == "run"
	case Never:
		return false
	default:
		return false
	}
}

func containsSubstr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Rule is a phase-matching rule: for a downstream task on phase
// Downstream, a cross-project edge to the same Upstream phase on a
// dependency project is added when When evaluates true.
type Rule struct {
	Downstream string
	Upstream   string
	When       Condition
}

// Configuration is a named, ordered set of phases with prerequisites and
// phase-matching rules. Distinct lifecycles may be configured side by
// side; phases in one do not interact with another unless a rule names
// both.
type Configuration struct {
	Name           string
	Phases         []string
	prerequisites  map[string][]string
	MatchingRules  []Rule
	phaseIndex     map[string]int
	prereqIndex    map[string]map[string]bool
	rulesByPhase   map[string][]Rule
}

// New builds a Configuration, indexing phases and rules for fast lookup.
func New(name string, phases []string, prerequisites map[string][]string, rules []Rule) *Configuration {
	c := &Configuration{
		Name:          name,
		Phases:        phases,
		prerequisites: prerequisites,
		MatchingRules: rules,
	}

	c.phaseIndex = make(map[string]int, len(phases))
	for i, p := range phases {
		c.phaseIndex[p] = i
	}

	c.prereqIndex = make(map[string]map[string]bool, len(prerequisites))
	for phase, prereqs := range prerequisites {
		set := make(map[string]bool, len(prereqs))
		for _, p := range prereqs {
			set[p] = true
		}
		c.prereqIndex[phase] = set
	}

	c.rulesByPhase = make(map[string][]Rule)
	for _, r := range rules {
		c.rulesByPhase[r.Downstream] = append(c.rulesByPhase[r.Downstream], r)
	}

	return c
}

// PhaseIndex returns phase's order index and whether it is a known phase.
func (c *Configuration) PhaseIndex(phase string) (int, bool) {
	i, ok := c.phaseIndex[phase]
	return i, ok
}

// Prerequisites returns the direct prerequisite phases of phase.
func (c *Configuration) Prerequisites(phase string) []string {
	return c.prerequisites[phase]
}

// TransitivePrerequisites returns every phase phase transitively requires,
// via BFS over the prerequisites graph.
func (c *Configuration) TransitivePrerequisites(phase string) []string {
	visited := make(map[string]bool)
	queue := []string{phase}
	var order []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range c.prerequisites[cur] {
			if visited[p] {
				continue
			}
			visited[p] = true
			order = append(order, p)
			queue = append(queue, p)
		}
	}

	return order
}

// RulesFor returns the phase-matching rules whose Downstream is phase.
func (c *Configuration) RulesFor(phase string) []Rule {
	return c.rulesByPhase[phase]
}

// Default returns the default Build lifecycle from spec §3:
// clean < compile < test < package < publish < deploy, with
// test<-compile, package<-compile, publish<-package, deploy<-publish.
func Default() *Configuration {
	return New("Build",
		[]string{"clean", "compile", "test", "package", "publish", "deploy"},
		map[string][]string{
			"test":    {"compile"},
			"package": {"compile"},
			"publish": {"package"},
			"deploy":  {"publish"},
		},
		[]Rule{
			{Downstream: "test", Upstream: "test", When: IfRuntimeDependency},
			{Downstream: "run", Upstream: "build", When: IfRuntimeDependency},
			{Downstream: "package", Upstream: "package", When: IfEmbedsDependency},
			{Downstream: "build", Upstream: "build", When: IfEmbedsDependency},
			{Downstream: "integration-test", Upstream: "package", When: IfIntegrationTest},
		},
	)
}
