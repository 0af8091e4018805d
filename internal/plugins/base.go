package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const schemaExt = ".schema.json"

// schemaPlugin holds the options shared by every plugin that turns JSON
// Schema files into generated sources.
type schemaPlugin struct {
	kind      string
	name      string
	outputExt string
	env       Env

	inputs     []string
	outputPath string
}

func newSchemaPlugin(kind, outputExt string, spec Spec, env Env) (*schemaPlugin, error) {
	inputs, err := parseInputs(spec.Input)
	if err != nil {
		return nil, err
	}
	if spec.OutputPath == "" {
		return nil, fmt.Errorf("%w: required option outputPath not specified", ErrInvalidOptions)
	}
	if len(inputs) > 1 && filepath.Ext(spec.OutputPath) != "" {
		return nil, fmt.Errorf("%w: multiple input files were provided, outputPath must be a directory", ErrInvalidOptions)
	}
	name := spec.Name
	if name == "" {
		name = kind
	}
	return &schemaPlugin{
		kind:       kind,
		name:       name,
		outputExt:  outputExt,
		env:        env,
		inputs:     inputs,
		outputPath: spec.OutputPath,
	}, nil
}

func (p *schemaPlugin) Kind() string { return p.kind }
func (p *schemaPlugin) Name() string { return p.name }

func parseInputs(v any) ([]string, error) {
	var inputs []string
	switch in := v.(type) {
	case string:
		inputs = []string{in}
	case []string:
		inputs = in
	case []any:
		for _, item := range in {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: 'input' must be a string or array of strings", ErrInvalidOptions)
			}
			inputs = append(inputs, s)
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: 'input' must be a string or array of strings", ErrInvalidOptions)
	}
	for _, f := range inputs {
		if !strings.HasSuffix(f, schemaExt) {
			return nil, fmt.Errorf("%w: invalid schema input: %s. Expecting %q file extension", ErrInvalidOptions, f, schemaExt)
		}
	}
	return inputs, nil
}

// resolve makes path absolute against the project root.
func (p *schemaPlugin) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.env.Root, path)
}

// outputFor returns where the output generated from input is written.
func (p *schemaPlugin) outputFor(input string) string {
	if filepath.Ext(p.outputPath) != "" {
		return p.resolve(p.outputPath)
	}
	base := strings.Replace(filepath.Base(input), schemaExt, p.outputExt, 1)
	return filepath.Join(p.resolve(p.outputPath), base)
}

// each calls gen for every input and writes what it returns.
func (p *schemaPlugin) each(action string, gen func(input string, schema []byte) ([]byte, error)) error {
	fs := p.env.fs()
	for _, input := range p.inputs {
		out := p.outputFor(input)
		if action == ActionClean {
			if err := removeFile(fs, out); err != nil {
				return err
			}
			continue
		}

		schema, err := afero.ReadFile(fs, p.resolve(input))
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		data, err := gen(input, schema)
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		if err := writeFile(fs, out, data); err != nil {
			return err
		}
		slog.Debug("generated", "plugin", p.name, "input", input, "output", out)
	}
	return nil
}

func writeFile(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func removeFile(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
