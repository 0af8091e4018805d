package config

import (
	"fmt"
	"strings"
)

// Project is the consuming project's configuration (services.config.json).
type Project struct {
	Name        string `mapstructure:"name" json:"NAME"`
	Title       string `mapstructure:"title" json:"TITLE"`
	Port        int    `mapstructure:"port" json:"PORT"`
	CDNLocation string `mapstructure:"cdn_location" json:"CDN_LOCATION"`

	Manifest        string `mapstructure:"manifest" json:"MANIFEST,omitempty"`                 // manifest launched by "start", relative to res/
	SignCommand     string `mapstructure:"sign_command" json:"SIGN_COMMAND,omitempty"`         // empty disables signing
	RuntimeLauncher string `mapstructure:"runtime_launcher" json:"RUNTIME_LAUNCHER,omitempty"` // {manifest} is replaced by the manifest URL
	EventsPort      int    `mapstructure:"events_port" json:"EVENTS_PORT,omitempty"`

	// Values holds every effective key (lowercased), including ones this tool does not interpret.
	Values map[string]any `mapstructure:"-" json:"-"`

	Source string `mapstructure:"-" json:"-"`
}

const (
	DefaultManifest   = "demo/app.json"
	DefaultEventsPort = 9001
)

// Keys every project config must define. Lowercase, as viper reports them.
var requiredKeys = []string{"name", "title", "port", "cdn_location"}

// LocalURL returns the dev server URL, with elem joined as the path.
func (p *Project) LocalURL(elem ...string) string {
	u := fmt.Sprintf("http://localhost:%d", p.Port)
	if len(elem) > 0 {
		u += "/" + strings.TrimPrefix(strings.Join(elem, "/"), "/")
	}
	return u
}

func applyLoadDefaults(p *Project) {
	if p.Manifest == "" {
		p.Manifest = DefaultManifest
	}
	if p.EventsPort <= 0 {
		p.EventsPort = DefaultEventsPort
	}
	p.CDNLocation = strings.TrimSuffix(p.CDNLocation, "/")
}

// MissingKeysError reports every required key absent from a config file.
type MissingKeysError struct {
	Path string
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("config %s is missing required keys: %s", e.Path, strings.Join(e.Keys, ", "))
}
