package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

// Config file names looked up in the project root, in order.
var FileNames = []string{"services.config.json", "project.config.json"}

// ErrNotFound is returned when none of FileNames exists in the project root.
var ErrNotFound = errors.New("project config not found")

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Loader loads a project's config once and hands out the cached result.
type Loader struct {
	Root string

	mu  sync.Mutex
	cfg *Project
}

func NewLoader(root string) *Loader {
	return &Loader{Root: root}
}

// Get loads the config on first use. Failed loads are not cached.
func (l *Loader) Get() (*Project, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg != nil {
		return l.cfg, nil
	}
	cfg, err := Load(l.Root)
	if err != nil {
		return nil, err
	}
	l.cfg = cfg
	return cfg, nil
}

// ResolvePath returns the first config file present in root.
func ResolvePath(root string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: expected one of %s in %s", ErrNotFound, strings.Join(FileNames, ", "), root)
}

// UserPath returns the override file sitting next to path: x.config.json → x.config.user.json.
func UserPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".user" + ext
}

// Load reads the project config from root, applies the user override file and
// environment overrides, and validates it.
func Load(root string) (*Project, error) {
	path, err := ResolvePath(root)
	if err != nil {
		return nil, err
	}

	values, names, err := readSettings(path)
	if err != nil {
		return nil, err
	}
	if err := checkRequired(path, values); err != nil {
		return nil, err
	}

	userPath := UserPath(path)
	if _, err := os.Stat(userPath); err == nil {
		user, userNames, err := readSettings(userPath)
		if err != nil {
			return nil, err
		}
		for k, v := range user {
			values[k] = v
		}
		for k, name := range userNames {
			if _, ok := names[k]; !ok {
				names[k] = name
			}
		}
		slog.Debug("applied user config", "path", userPath, "keys", len(user))
	}

	applyEnvOverrides(values, names)

	var cfg Project
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(values); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Values = values
	cfg.Source = path
	applyLoadDefaults(&cfg)
	return &cfg, nil
}

// readSettings parses a config file. Viper lowercases keys, so the spelling
// of each top-level key as written in the file is returned alongside.
func readSettings(path string) (map[string]any, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	content := expandEnvVars(string(data))

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader([]byte(content))); err != nil {
		return nil, nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	names := make(map[string]string)
	gjson.Parse(content).ForEach(func(key, _ gjson.Result) bool {
		names[strings.ToLower(key.String())] = key.String()
		return true
	})
	return v.AllSettings(), names, nil
}

func checkRequired(path string, values map[string]any) error {
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := values[key]; !ok {
			missing = append(missing, strings.ToUpper(key))
		}
	}
	if len(missing) > 0 {
		return &MissingKeysError{Path: path, Keys: missing}
	}
	return nil
}

func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// applyEnvOverrides replaces any key that is also set as an environment
// variable of the same name, spelled as in the config file. The variable is
// parsed according to the type of the value it replaces; values that do not
// parse are ignored.
func applyEnvOverrides(values map[string]any, names map[string]string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		env, ok := names[key]
		if !ok {
			env = strings.ToUpper(key)
		}
		raw, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		parsed, err := parseOverride(values[key], raw)
		if err != nil {
			slog.Warn("ignoring config override from environment", "key", env, "value", raw, "error", err)
			continue
		}
		values[key] = parsed
		slog.Info("config override from environment", "key", env, "value", raw)
	}
}

func parseOverride(current any, raw string) (any, error) {
	switch current.(type) {
	case bool:
		switch {
		case strings.EqualFold(raw, "true"):
			return true, nil
		case strings.EqualFold(raw, "false"):
			return false, nil
		}
		return nil, fmt.Errorf("expected true or false")
	case float64, float32, int, int64, int32:
		return cast.ToFloat64E(raw)
	case map[string]any, []any:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return raw, nil
	}
}
