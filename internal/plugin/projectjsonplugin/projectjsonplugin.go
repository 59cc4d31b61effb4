// Package projectjsonplugin infers projects from project.json manifests:
// explicit per-project targets that, when this plugin runs after the
// others, win target-name conflicts for the same project name (root,
// sourceRoot and projectType stay those of the first plugin to report the
// project).
package projectjsonplugin

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"

	"github.com/harrison/forge/internal/plugin"
	"github.com/harrison/forge/internal/project"
)

// Plugin infers a project per project.json file. The file holds a
// project.ProjectConfiguration with Root omitted: root is derived from the
// manifest's directory, not read from the file, so a moved directory can't
// disagree with its own manifest.
type Plugin struct{}

// New returns the project.json inference plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) ID() string                 { return "forge-plugin-project-json" }
func (p *Plugin) CreateNodesPattern() string { return "**/project.json" }
func (p *Plugin) DefaultOptions() map[string]any {
	return map[string]any{}
}

// manifest mirrors project.ProjectConfiguration but without Root: a
// project.json never names its own root, since that would let a manifest
// disagree with the directory it was found in.
type manifest struct {
	Name        string                                    `json:"name"`
	SourceRoot  string                                    `json:"sourceRoot,omitempty"`
	ProjectType project.ProjectType                       `json:"projectType,omitempty"`
	Tags        []string                                  `json:"tags,omitempty"`
	Targets     map[string]project.TargetConfiguration    `json:"targets,omitempty"`
	NamedInputs map[string][]string                       `json:"namedInputs,omitempty"`
}

func (p *Plugin) CreateNodes(files []string, options map[string]any, ctx plugin.NodeContext) (plugin.NodesResult, error) {
	projects := make(map[string]project.ProjectConfiguration)

	for _, file := range files {
		raw, err := os.ReadFile(filepath.Join(ctx.WorkspaceRoot, file))
		if err != nil {
			continue
		}

		var m manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}

		root := path.Dir(filepath.ToSlash(file))
		if root == "." {
			root = ""
		}

		name := m.Name
		if name == "" {
			name = path.Base(root)
		}

		projects[name] = project.ProjectConfiguration{
			Name:        name,
			Root:        root,
			SourceRoot:  m.SourceRoot,
			ProjectType: m.ProjectType,
			Tags:        m.Tags,
			Targets:     m.Targets,
			NamedInputs: m.NamedInputs,
		}
	}

	return plugin.NodesResult{Projects: projects}, nil
}
