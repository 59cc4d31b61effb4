// Package workspace loads the root workspace configuration: target
// defaults, named inputs, the plugin list, and the default affected-set
// base ref (spec §3, §6). JSON is the primary format (external interface
// mandate); a workspace may alternatively supply forge.yaml.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/harrison/forge/internal/project"
)

// PluginDescriptor names a plugin to load and the options to pass it,
// as they appear in the workspace config's "plugins" list.
type PluginDescriptor struct {
	Plugin  string         `json:"plugin" yaml:"plugin"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Layout holds the workspaceLayout apps/libs directory names. It is loaded
// from the config; none of the builtin plugins reads it.
type Layout struct {
	AppsDir string `json:"appsDir,omitempty" yaml:"appsDir,omitempty"`
	LibsDir string `json:"libsDir,omitempty" yaml:"libsDir,omitempty"`
}

// Affected holds the affected.defaultBase base ref. It is loaded from the
// config; no command reads it.
type Affected struct {
	DefaultBase string `json:"defaultBase,omitempty" yaml:"defaultBase,omitempty"`
}

// Config is the root workspace configuration (spec §6): {version,
// targetDefaults, namedInputs, plugins, workspaceLayout, affected}. Unknown
// keys are ignored (lenient per spec §6).
type Config struct {
	Version         int                                     `json:"version,omitempty" yaml:"version,omitempty"`
	TargetDefaults  map[string]project.TargetConfiguration `json:"targetDefaults,omitempty" yaml:"targetDefaults,omitempty"`
	NamedInputs     map[string][]string                    `json:"namedInputs,omitempty" yaml:"namedInputs,omitempty"`
	Plugins         []PluginDescriptor                      `json:"plugins,omitempty" yaml:"plugins,omitempty"`
	WorkspaceLayout Layout                                  `json:"workspaceLayout,omitempty" yaml:"workspaceLayout,omitempty"`
	Affected        Affected                                `json:"affected,omitempty" yaml:"affected,omitempty"`

	// Raw holds the config re-decoded as a generic map so that
	// inference.Run can look up arbitrary per-plugin option overrides
	// without this package knowing every plugin's option shape.
	Raw map[string]any `json:"-" yaml:"-"`
}

// Workspace pairs a loaded Config with the root directory it was loaded
// from.
type Workspace struct {
	Root   string
	Config Config
}

// jsonFileNames are tried in order; both names are accepted per spec §6.
var jsonFileNames = []string{"forge.json", "workspace.json"}

const yamlFileName = "forge.yaml"

// Load reads forge.json/workspace.json (preferred) or forge.yaml from
// root. If none exist, returns a zero-value Config and no error: a
// workspace with no config file relies entirely on plugin defaults.
func Load(root string) (Workspace, error) {
	for _, name := range jsonFileNames {
		jsonPath := filepath.Join(root, name)
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Workspace{}, fmt.Errorf("workspace: failed to read %s: %w", jsonPath, err)
		}
		cfg, err := decodeJSON(data)
		if err != nil {
			return Workspace{}, fmt.Errorf("workspace: failed to parse %s: %w", jsonPath, err)
		}
		return Workspace{Root: root, Config: cfg}, nil
	}

	yamlPath := filepath.Join(root, yamlFileName)
	if data, err := os.ReadFile(yamlPath); err == nil {
		cfg, err := decodeYAML(data)
		if err != nil {
			return Workspace{}, fmt.Errorf("workspace: failed to parse %s: %w", yamlPath, err)
		}
		return Workspace{Root: root, Config: cfg}, nil
	} else if !os.IsNotExist(err) {
		return Workspace{}, fmt.Errorf("workspace: failed to read %s: %w", yamlPath, err)
	}

	return Workspace{Root: root, Config: Config{}}, nil
}

func decodeJSON(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, err
	}
	cfg.Raw = raw
	return cfg, nil
}

func decodeYAML(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, err
	}
	cfg.Raw, _ = normalizeYAMLMap(raw).(map[string]any)
	return cfg, nil
}

// normalizeYAMLMap converts the map[interface{}]any / []interface{} shapes
// yaml.v3 can produce for nested structures into map[string]any / []any so
// that Raw behaves identically regardless of source format (inference.Run
// and MergeOptions expect JSON-shaped maps).
func normalizeYAMLMap(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = normalizeYAMLMap(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAMLMap(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = normalizeYAMLMap(vv)
		}
		return out
	default:
		return val
	}
}
