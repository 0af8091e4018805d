package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
)

var (
	ErrInvalidOptions = errors.New("invalid plugin options")
	ErrUnknownKind    = errors.New("unknown plugin kind")
	ErrUnknownAction  = errors.New("unknown plugin action")
)

// Actions accepted by Runnable.Run.
const (
	ActionGenerate = "generate"
	ActionClean    = "clean"
)

// Spec is one plugin entry of a bundler target, as written in build.config.yaml.
type Spec struct {
	Kind       string         `yaml:"kind"`
	Name       string         `yaml:"name,omitempty"`
	Input      any            `yaml:"input,omitempty"` // string or list of strings
	OutputPath string         `yaml:"outputPath,omitempty"`
	Options    map[string]any `yaml:",inline"`
}

// Env carries the project facts plugins need.
type Env struct {
	Root           string // project root; relative paths resolve against it
	ServiceName    string
	Port           int
	CDN            string
	ServiceVersion string // SERVICE_VERSION, empty for local builds
	Fs             afero.Fs
}

func (e Env) fs() afero.Fs {
	if e.Fs == nil {
		return afero.NewOsFs()
	}
	return e.Fs
}

// Plugin is any entry of a target's plugin list.
type Plugin interface {
	Kind() string
	Name() string
}

// Runnable plugins generate code without a bundler run. Plugins that only
// make sense inside the bundler do not implement it.
type Runnable interface {
	Plugin
	Run(ctx context.Context, action string) error
}

// NormalizeAction maps the CLI action argument to an action constant.
func NormalizeAction(action string) (string, error) {
	switch action {
	case "", ActionGenerate:
		return ActionGenerate, nil
	case ActionClean:
		return ActionClean, nil
	}
	return "", fmt.Errorf("%w: %q (expected %s or %s)", ErrUnknownAction, action, ActionGenerate, ActionClean)
}
