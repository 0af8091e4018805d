package plugins

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/lhdbsbz/svctool/internal/manifest"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const KindManifest = "manifest"

const (
	defaultManifestInput  = "res/provider/app.json"
	defaultManifestOutput = "dist/provider/app.json"
)

// providerManifest copies the provider's app.json into the build output with
// its startup URL pointed at the local server, or at the CDN release when a
// service version is being built.
type providerManifest struct {
	name   string
	env    Env
	input  string
	output string
}

func newManifest(spec Spec, env Env) (Plugin, error) {
	p := &providerManifest{
		name:   spec.Name,
		env:    env,
		input:  defaultManifestInput,
		output: defaultManifestOutput,
	}
	if p.name == "" {
		p.name = KindManifest
	}
	switch in := spec.Input.(type) {
	case nil:
	case string:
		p.input = in
	default:
		return nil, fmt.Errorf("%w: 'input' must be a single manifest path", ErrInvalidOptions)
	}
	if spec.OutputPath != "" {
		p.output = spec.OutputPath
		if filepath.Ext(p.output) == "" {
			p.output = filepath.Join(p.output, "app.json")
		}
	}
	return p, nil
}

func (p *providerManifest) Kind() string { return KindManifest }
func (p *providerManifest) Name() string { return p.name }

func (p *providerManifest) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.env.Root, rel)
}

func (p *providerManifest) Run(ctx context.Context, action string) error {
	fs := p.env.fs()
	out := p.path(p.output)
	if action == ActionClean {
		return removeFile(fs, out)
	}

	raw, err := afero.ReadFile(fs, p.path(p.input))
	if err != nil {
		return fmt.Errorf("read provider manifest: %w", err)
	}
	if !gjson.GetBytes(raw, "startup_app").IsObject() {
		return fmt.Errorf("%s has no startup_app", p.input)
	}

	if p.env.ServiceVersion != "" {
		raw, err = sjson.SetBytes(raw, "startup_app.url", fmt.Sprintf("%s/%s/provider.html", p.env.CDN, p.env.ServiceVersion))
		if err == nil {
			raw, err = sjson.SetBytes(raw, "startup_app.autoShow", false)
		}
	} else {
		raw, err = sjson.SetBytes(raw, "startup_app.url", fmt.Sprintf("http://localhost:%d/provider/provider.html", p.env.Port))
	}
	if err != nil {
		return fmt.Errorf("patch provider manifest: %w", err)
	}

	formatted, err := manifest.Format(raw)
	if err != nil {
		return fmt.Errorf("format provider manifest: %w", err)
	}
	return writeFile(fs, out, formatted)
}
