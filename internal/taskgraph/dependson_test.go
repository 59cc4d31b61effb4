package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDependsOnUpstream(t *testing.T) {
	refs := ParseDependsOn([]string{"^build"})
	assert.Equal(t, []DependsOnRef{{Kind: KindUpstream, Target: "build"}}, refs)
}

func TestParseDependsOnCross(t *testing.T) {
	refs := ParseDependsOn([]string{"util:build"})
	assert.Equal(t, []DependsOnRef{{Kind: KindCross, Project: "util", Target: "build"}}, refs)
}

func TestParseDependsOnLocal(t *testing.T) {
	refs := ParseDependsOn([]string{"compile"})
	assert.Equal(t, []DependsOnRef{{Kind: KindLocal, Target: "compile"}}, refs)
}

func TestParseDependsOnMixedList(t *testing.T) {
	refs := ParseDependsOn([]string{"^build", "util:test", "clean"})
	assert.Equal(t, []DependsOnRef{
		{Kind: KindUpstream, Target: "build"},
		{Kind: KindCross, Project: "util", Target: "test"},
		{Kind: KindLocal, Target: "clean"},
	}, refs)
}
