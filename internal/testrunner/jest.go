// Package testrunner runs the project's jest suites, bringing up the dev
// server and a runtime first for integration tests.
package testrunner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lhdbsbz/svctool/internal/config"
	"github.com/lhdbsbz/svctool/internal/manifest"
	"github.com/spf13/afero"
)

// Type is a test suite kind.
type Type string

const (
	Unit        Type = "unit"
	Integration Type = "int"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Unit, Integration:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown test type %q (expected unit or int)", s)
}

// suffix is the file name suffix of the type's test files.
func (t Type) suffix() string {
	if t == Integration {
		return "inttest"
	}
	return "unittest"
}

// Options are the flags of the test command.
type Options struct {
	Type           Type
	RuntimeVersion string
	ExtraArgs      string // passed through to jest
	Static         bool   // serve pre-built files instead of bundling
	NoColor        bool
	Filter         string   // jest --testNamePattern
	FileNames      []string // test files, without the .<type>test.ts suffix
	CI             bool
}

// BaseConfig is the jest configuration every project starts from.
func BaseConfig(paths config.Paths, t Type) map[string]any {
	return map[string]any{
		"rootDir": paths.Root,
		"testURL": "http://localhost/",
		"globals": map[string]any{
			"ts-jest": map[string]any{"tsConfig": "<rootDir>/test/tsconfig.json"},
		},
		"transform": map[string]any{
			`^.+\.tsx?$`: "<rootDir>/node_modules/ts-jest",
		},
		"testRegex":            fmt.Sprintf(`\.%s\.ts$`, t.suffix()),
		"modulePaths":          []string{"<rootDir>/node_modules"},
		"roots":                []string{"<rootDir>", "<rootDir>/test"},
		"moduleFileExtensions": []string{"ts", "tsx", "js", "jsx", "json", "node"},
		"reporters": []any{
			"default",
			[]any{"jest-junit", map[string]any{
				"outputDirectory":   "<rootDir>/dist/test",
				"outputName":        fmt.Sprintf("results-%s.xml", t),
				"classNameTemplate": string(t) + ".{classname}",
				"titleTemplate":     "{title}",
				"ancestorSeparator": " > ",
			}},
		},
	}
}

// ConfigPath is where the generated jest config of type t is written.
func ConfigPath(paths config.Paths, t Type) string {
	return paths.Dist("test", fmt.Sprintf("jest-%s.config.json", t))
}

// WriteConfig writes the jest config for t: the base config with the
// project's test/jest-<type>.config.json merged over it key by key.
func WriteConfig(fs afero.Fs, paths config.Paths, t Type) (string, error) {
	cfg := BaseConfig(paths, t)

	custom := paths.Test(fmt.Sprintf("jest-%s.config.json", t))
	data, err := afero.ReadFile(fs, custom)
	switch {
	case err == nil:
		var overrides map[string]any
		if err := json.Unmarshal(data, &overrides); err != nil {
			return "", fmt.Errorf("parse %s: %w", custom, err)
		}
		for k, v := range overrides {
			cfg[k] = v
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read %s: %w", custom, err)
	}

	out, err := manifest.Marshal(cfg)
	if err != nil {
		return "", err
	}
	dst := ConfigPath(paths, t)
	if err := fs.MkdirAll(paths.Dist("test"), 0o755); err != nil {
		return "", err
	}
	if err := afero.WriteFile(fs, dst, out, 0o644); err != nil {
		return "", fmt.Errorf("write jest config: %w", err)
	}
	return dst, nil
}

// Args returns the jest command line.
func Args(opts Options, configPath string, color bool) []string {
	args := []string{"--config", configPath, "--color=" + strconv.FormatBool(color && !opts.NoColor)}
	if opts.CI {
		args = append(args, "--ci")
	}
	if opts.Type == Integration {
		args = append(args, "--forceExit", "--no-cache", "--runInBand")
	}
	for _, name := range opts.FileNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		args = append(args, fmt.Sprintf("%s.%s.ts", name, opts.Type.suffix()))
	}
	if opts.Filter != "" {
		args = append(args, "--testNamePattern="+opts.Filter)
	}
	return append(args, strings.Fields(opts.ExtraArgs)...)
}
