package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionEvaluate(t *testing.T) {
	assert.True(t, Always.Evaluate("anything"))
	assert.False(t, Never.Evaluate("anything"))

	assert.True(t, IfIntegrationTest.Evaluate("integration-test"))
	assert.False(t, IfIntegrationTest.Evaluate("test"))

	assert.True(t, IfEmbedsDependency.Evaluate("package"))
	assert.True(t, IfEmbedsDependency.Evaluate("build"))
	assert.False(t, IfEmbedsDependency.Evaluate("compile"))

	assert.True(t, IfRuntimeDependency.Evaluate("test"))
	assert.True(t, IfRuntimeDependency.Evaluate("run"))
	assert.False(t, IfRuntimeDependency.Evaluate("package"))
}

func TestDefaultPhaseOrder(t *testing.T) {
	lc := Default()

	order := []string{"clean", "compile", "test", "package", "publish", "deploy"}
	for i, phase := range order {
		idx, ok := lc.PhaseIndex(phase)
		assert.True(t, ok)
		assert.Equal(t, i, idx)
	}
}

func TestDefaultPrerequisites(t *testing.T) {
	lc := Default()

	assert.Equal(t, []string{"compile"}, lc.Prerequisites("test"))
	assert.Equal(t, []string{"compile"}, lc.Prerequisites("package"))
	assert.Equal(t, []string{"package"}, lc.Prerequisites("publish"))
	assert.Equal(t, []string{"publish"}, lc.Prerequisites("deploy"))
	assert.Empty(t, lc.Prerequisites("clean"))
}

func TestTransitivePrerequisitesOfDeployIncludesWholeChain(t *testing.T) {
	lc := Default()

	prereqs := lc.TransitivePrerequisites("deploy")

	assert.ElementsMatch(t, []string{"publish", "package", "compile"}, prereqs)
}

// TestTransitivePrerequisitesOfPackageReachesCompile: in the default
// lifecycle, "package" transitively requires compile.
func TestTransitivePrerequisitesOfPackageReachesCompile(t *testing.T) {
	lc := Default()

	prereqs := lc.TransitivePrerequisites("package")

	assert.Contains(t, prereqs, "compile")
}

func TestPhaseIndexUnknownPhase(t *testing.T) {
	lc := Default()

	_, ok := lc.PhaseIndex("nonexistent")
	assert.False(t, ok)
}

func TestRulesForReturnsOnlyMatchingDownstream(t *testing.T) {
	lc := Default()

	rules := lc.RulesFor("test")
	assert := assert.New(t)
	assert.NotEmpty(rules)
	for _, r := range rules {
		assert.Equal("test", r.Downstream)
	}

	assert.Empty(lc.RulesFor("nonexistent-phase"))
}

func TestNewConfigurationIndexesAreIndependentAcrossInstances(t *testing.T) {
	dev := New("Development", []string{"watch", "reload"}, nil, nil)
	idx, ok := dev.PhaseIndex("reload")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = dev.PhaseIndex("compile")
	assert.False(t, ok, "Development lifecycle doesn't share phases with Build")
}
