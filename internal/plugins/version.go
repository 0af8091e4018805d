package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

const KindVersion = "version"

// version writes a TypeScript module exporting PACKAGE_VERSION, taken from
// SERVICE_VERSION or, failing that, the project's package.json.
type version struct {
	name       string
	env        Env
	outputPath string
}

func newVersion(spec Spec, env Env) (Plugin, error) {
	if spec.OutputPath == "" {
		return nil, fmt.Errorf("%w: required option outputPath not specified", ErrInvalidOptions)
	}
	name := spec.Name
	if name == "" {
		name = KindVersion
	}
	return &version{name: name, env: env, outputPath: spec.OutputPath}, nil
}

func (p *version) Kind() string { return KindVersion }
func (p *version) Name() string { return p.name }

func (p *version) output() string {
	out := p.outputPath
	if filepath.Ext(out) == "" {
		out = filepath.Join(out, "version.ts")
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(p.env.Root, out)
	}
	return out
}

func (p *version) Run(ctx context.Context, action string) error {
	fs := p.env.fs()
	if action == ActionClean {
		return removeFile(fs, p.output())
	}

	v, err := PackageVersion(fs, p.env)
	if err != nil {
		return err
	}
	src := fmt.Sprintf("// Generated at build time. Do not modify this file by hand.\nexport const PACKAGE_VERSION = '%s';\n", strings.ReplaceAll(v, "'", `\'`))
	return writeFile(fs, p.output(), []byte(src))
}

// PackageVersion returns SERVICE_VERSION when set, else the version field of
// the project's package.json.
func PackageVersion(fs afero.Fs, env Env) (string, error) {
	if env.ServiceVersion != "" {
		return env.ServiceVersion, nil
	}
	data, err := afero.ReadFile(fs, filepath.Join(env.Root, "package.json"))
	if err != nil {
		return "", fmt.Errorf("read package.json: %w", err)
	}
	v := gjson.GetBytes(data, "version")
	if v.Type != gjson.String || v.String() == "" {
		return "", fmt.Errorf("package.json has no version")
	}
	return v.String(), nil
}
