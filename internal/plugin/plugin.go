// Package plugin defines the interfaces that project-inference plugins
// must implement. It has no behavior of its own: the inference engine in
// internal/inference drives plugins conforming to this contract.
package plugin

import (
	"reflect"

	"github.com/harrison/forge/internal/project"
)

// NodeContext is passed to CreateNodes.
type NodeContext struct {
	WorkspaceRoot   string
	WorkspaceConfig map[string]any
}

// DependencyContext is passed to CreateDependencies; it additionally
// carries the fully merged project set produced by every plugin's
// CreateNodes call.
type DependencyContext struct {
	WorkspaceRoot   string
	WorkspaceConfig map[string]any
	Projects        map[string]project.ProjectConfiguration
}

// NodesResult is what CreateNodes returns: the projects it inferred, keyed
// by name, plus an opaque map of external (non-workspace) nodes forwarded
// untouched by the core.
type NodesResult struct {
	Projects      map[string]project.ProjectConfiguration
	ExternalNodes map[string]any
}

// Plugin is the minimal contract every inference plugin must satisfy: a
// unique id, the single glob its files are discovered with, default
// options, and a pure node-creation function.
type Plugin interface {
	ID() string
	CreateNodesPattern() string
	DefaultOptions() map[string]any
	CreateNodes(files []string, options map[string]any, ctx NodeContext) (NodesResult, error)
}

// DependencyProvider is an optional second interface a Plugin may also
// implement to contribute raw dependency edges once every plugin's nodes
// have been merged.
type DependencyProvider interface {
	CreateDependencies(options map[string]any, ctx DependencyContext) ([]project.Edge, error)
}

// MergeOptions overlays caller-supplied options onto defaults field by
// field: keys present in override replace the default value so long as
// the override's value is the same dynamic type as the default (a type
// mismatch falls back to the default); keys absent from override keep the
// default; keys in override not present in defaults are ignored as
// unrecognized.
func MergeOptions(defaults, override map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range override {
		def, known := defaults[k]
		if !known {
			continue
		}
		if def != nil && reflect.TypeOf(v) != reflect.TypeOf(def) {
			continue
		}
		merged[k] = v
	}
	return merged
}
