package bundler

import (
	"errors"
	"fmt"
	"os"

	"github.com/lhdbsbz/svctool/internal/plugins"
	"gopkg.in/yaml.v3"
)

const DefaultWebpackConfig = "webpack.config.js"

// Target is one entry of build.config.yaml: one webpack configuration
// producing one output directory.
type Target struct {
	Name          string         `yaml:"name"`
	WebpackConfig string         `yaml:"webpackConfig,omitempty"`
	ConfigName    string         `yaml:"configName,omitempty"` // webpack --config-name; empty omits the flag
	Output        string         `yaml:"output,omitempty"`     // relative to the build root
	Mode          string         `yaml:"mode,omitempty"`       // wins over the mode requested on the command line
	Plugins       []plugins.Spec `yaml:"plugins,omitempty"`

	configNameSet bool
}

// UnmarshalYAML records whether configName was written out, so that an
// explicit empty name can select a webpack config that exports no names.
func (t *Target) UnmarshalYAML(n *yaml.Node) error {
	type plain Target
	if err := n.Decode((*plain)(t)); err != nil {
		return err
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "configName" {
				t.configNameSet = true
			}
		}
	}
	return nil
}

// LoadConfig reads the bundler targets from path.
func LoadConfig(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build config: %w", err)
	}
	return ParseConfig(data, path)
}

func ParseConfig(data []byte, path string) ([]Target, error) {
	var targets []Target
	if err := yaml.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("parse build config %s: %w", path, err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("build config %s defines no targets", path)
	}

	seen := make(map[string]bool)
	var errs []error
	for i := range targets {
		t := &targets[i]
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("target %d has no name", i+1))
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate target %q", t.Name))
		}
		seen[t.Name] = true
		applyTargetDefaults(t)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("build config %s: %w", path, err)
	}
	return targets, nil
}

func applyTargetDefaults(t *Target) {
	if t.WebpackConfig == "" {
		t.WebpackConfig = DefaultWebpackConfig
	}
	if t.ConfigName == "" && !t.configNameSet {
		t.ConfigName = t.Name
	}
	if t.Output == "" {
		t.Output = t.Name
	}
}

// AllPlugins flattens the plugin lists of every target.
func AllPlugins(targets []Target) []plugins.Spec {
	var out []plugins.Spec
	for _, t := range targets {
		out = append(out, t.Plugins...)
	}
	return out
}
