// Package gomodplugin infers projects from go.mod files.
package gomodplugin

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/forge/internal/plugin"
	"github.com/harrison/forge/internal/project"
)

// Plugin infers a project per go.mod with build/test/lint targets, and
// synthesizes static edges to sibling projects whose module path is
// required.
type Plugin struct{}

// New returns the Go module inference plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) ID() string                 { return "forge-plugin-go" }
func (p *Plugin) CreateNodesPattern() string { return "**/go.mod" }
func (p *Plugin) DefaultOptions() map[string]any {
	return map[string]any{"testTargetName": "test"}
}

func (p *Plugin) CreateNodes(files []string, options map[string]any, ctx plugin.NodeContext) (plugin.NodesResult, error) {
	projects := make(map[string]project.ProjectConfiguration)

	for _, file := range files {
		modulePath, err := readModulePath(filepath.Join(ctx.WorkspaceRoot, file))
		if err != nil || modulePath == "" {
			continue
		}

		root := path.Dir(filepath.ToSlash(file))
		if root == "." {
			root = ""
		}

		name := path.Base(modulePath)
		if name == "" || name == "." {
			name = modulePath
		}

		projects[name] = project.ProjectConfiguration{
			Name:        name,
			Root:        root,
			ProjectType: project.TypeLibrary,
			Targets: map[string]project.TargetConfiguration{
				"build": {
					Executor: "run-commands",
					Options:  map[string]any{"commands": []string{"go build ./..."}, "cwd": root},
				},
				"test": {
					Executor: "run-commands",
					Options:  map[string]any{"commands": []string{"go test ./..."}, "cwd": root},
				},
				"lint": {
					Executor: "run-commands",
					Options:  map[string]any{"commands": []string{"go vet ./..."}, "cwd": root},
				},
			},
		}
	}

	return plugin.NodesResult{Projects: projects}, nil
}

// CreateDependencies reads each go.mod's require block and emits a static
// edge to any other discovered Go project whose module path is required.
func (p *Plugin) CreateDependencies(options map[string]any, ctx plugin.DependencyContext) ([]project.Edge, error) {
	modulesByPath := make(map[string]string) // module path -> project name
	names := make([]string, 0, len(ctx.Projects))
	for name := range ctx.Projects {
		names = append(names, name)
	}
	sort.Strings(names)

	type manifest struct {
		name       string
		path       string
		modulePath string
	}
	var manifests []manifest
	for _, name := range names {
		cfg := ctx.Projects[name]
		gomod := filepath.Join(ctx.WorkspaceRoot, cfg.Root, "go.mod")
		modulePath, err := readModulePath(gomod)
		if err != nil {
			continue
		}
		modulesByPath[modulePath] = name
		manifests = append(manifests, manifest{name: name, path: gomod, modulePath: modulePath})
	}

	var edges []project.Edge
	for _, m := range manifests {
		requires, err := readRequires(m.path)
		if err != nil {
			continue
		}
		for _, req := range requires {
			if target, ok := modulesByPath[req]; ok {
				edges = append(edges, project.Edge{Source: m.name, Target: target, Type: project.EdgeStatic, SourceFile: m.path})
			}
		}
	}

	return edges, nil
}

func readModulePath(gomodPath string) (string, error) {
	f, err := os.Open(gomodPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module")), nil
		}
	}
	return "", scanner.Err()
}

func readRequires(gomodPath string) ([]string, error) {
	f, err := os.Open(gomodPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var requires []string
	inBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "require ("):
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock:
			fields := strings.Fields(line)
			if len(fields) > 0 {
				requires = append(requires, fields[0])
			}
		case strings.HasPrefix(line, "require "):
			fields := strings.Fields(strings.TrimPrefix(line, "require"))
			if len(fields) > 0 {
				requires = append(requires, fields[0])
			}
		}
	}
	return requires, scanner.Err()
}
