// Package npmplugin infers projects from package.json files, the reference
// plugin exercising spec scenario 1 (monorepo inference).
package npmplugin

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/harrison/forge/internal/plugin"
	"github.com/harrison/forge/internal/project"
)

// Plugin infers a project per package.json: its scripts become
// run-commands targets ("npm run <script>"), and dependencies/
// devDependencies matching another discovered project's name become
// static edges.
type Plugin struct{}

// New returns the npm inference plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) ID() string                 { return "forge-plugin-npm" }
func (p *Plugin) CreateNodesPattern() string { return "**/package.json" }
func (p *Plugin) DefaultOptions() map[string]any {
	return map[string]any{"buildTargetName": "build"}
}

type packageJSON struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (p *Plugin) CreateNodes(files []string, options map[string]any, ctx plugin.NodeContext) (plugin.NodesResult, error) {
	projects := make(map[string]project.ProjectConfiguration)

	for _, file := range files {
		raw, err := os.ReadFile(filepath.Join(ctx.WorkspaceRoot, file))
		if err != nil {
			continue
		}

		var pkg packageJSON
		if err := json.Unmarshal(raw, &pkg); err != nil {
			continue
		}
		if pkg.Name == "" {
			continue
		}

		root := path.Dir(filepath.ToSlash(file))
		if root == "." {
			root = ""
		}

		targets := make(map[string]project.TargetConfiguration, len(pkg.Scripts))
		scriptNames := make([]string, 0, len(pkg.Scripts))
		for name := range pkg.Scripts {
			scriptNames = append(scriptNames, name)
		}
		sort.Strings(scriptNames)
		for _, name := range scriptNames {
			targets[name] = project.TargetConfiguration{
				Executor: "run-commands",
				Options: map[string]any{
					"commands": []string{"npm run " + name},
					"cwd":      root,
				},
			}
		}

		projects[pkg.Name] = project.ProjectConfiguration{
			Name:        pkg.Name,
			Root:        root,
			ProjectType: project.TypeLibrary,
			Targets:     targets,
			NamedInputs: map[string][]string{"deps": {pkg.Name + "/**/*"}},
		}
	}

	return plugin.NodesResult{Projects: projects}, nil
}

// CreateDependencies reads each package.json's dependencies/
// devDependencies and emits a static edge to any other discovered project
// whose name matches.
func (p *Plugin) CreateDependencies(options map[string]any, ctx plugin.DependencyContext) ([]project.Edge, error) {
	names := make([]string, 0, len(ctx.Projects))
	for name := range ctx.Projects {
		names = append(names, name)
	}
	sort.Strings(names)

	var edges []project.Edge
	for _, name := range names {
		cfg := ctx.Projects[name]
		manifest := filepath.Join(ctx.WorkspaceRoot, cfg.Root, "package.json")
		raw, err := os.ReadFile(manifest)
		if err != nil {
			continue
		}
		var pkg packageJSON
		if err := json.Unmarshal(raw, &pkg); err != nil {
			continue
		}

		for dep := range pkg.Dependencies {
			if _, ok := ctx.Projects[dep]; ok {
				edges = append(edges, project.Edge{Source: name, Target: dep, Type: project.EdgeStatic, SourceFile: manifest})
			}
		}
		for dep := range pkg.DevDependencies {
			if _, ok := ctx.Projects[dep]; ok {
				edges = append(edges, project.Edge{Source: name, Target: dep, Type: project.EdgeStatic, SourceFile: manifest})
			}
		}
	}

	return edges, nil
}
