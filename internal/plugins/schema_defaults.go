package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/lhdbsbz/svctool/internal/manifest"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// schemaDefaults writes a JSON document of the default values declared in
// JSON Schema files.
type schemaDefaults struct {
	*schemaPlugin
}

func newSchemaDefaults(spec Spec, env Env) (Plugin, error) {
	base, err := newSchemaPlugin(KindSchemaDefaults, ".defaults.json", spec, env)
	if err != nil {
		return nil, err
	}
	return &schemaDefaults{base}, nil
}

func (p *schemaDefaults) Run(ctx context.Context, action string) error {
	return p.each(action, func(input string, schema []byte) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(schema) {
			return nil, fmt.Errorf("schema is not valid JSON")
		}
		root := gjson.ParseBytes(schema)
		raw, ok, err := defaultsOf(root, root, 0)
		if err != nil {
			return nil, err
		}
		if !ok {
			raw = "{}"
		}
		out, err := manifest.Format([]byte(raw))
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	})
}

const maxRefDepth = 32

// defaultsOf returns the raw JSON default for s. Objects without an explicit
// default collect the defaults of their properties, in schema order.
func defaultsOf(root, s gjson.Result, depth int) (string, bool, error) {
	if depth > maxRefDepth {
		return "", false, fmt.Errorf("schema references nest too deeply")
	}
	if d := s.Get("default"); d.Exists() {
		return d.Raw, true, nil
	}
	if ref := s.Get(gjsonKey("$ref")).String(); ref != "" {
		target, ok := lookupRef(root, ref)
		if !ok {
			return "", false, fmt.Errorf("unresolved reference %s", ref)
		}
		return defaultsOf(root, target, depth+1)
	}
	if !isObject(s) {
		return "", false, nil
	}

	obj := "{}"
	found := false
	var err error
	s.Get("properties").ForEach(func(key, prop gjson.Result) bool {
		raw, ok, e := defaultsOf(root, prop, depth+1)
		if e != nil {
			err = e
			return false
		}
		if !ok {
			return true
		}
		obj, e = sjson.SetRaw(obj, sjsonKey(key.String()), raw)
		if e != nil {
			err = e
			return false
		}
		found = true
		return true
	})
	if err != nil {
		return "", false, err
	}
	return obj, found, nil
}

// lookupRef resolves a local JSON pointer such as #/definitions/Rect.
func lookupRef(root gjson.Result, ref string) (gjson.Result, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return gjson.Result{}, false
	}
	parts := strings.Split(strings.TrimPrefix(ref, "#/"), "/")
	for i, p := range parts {
		p = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
		parts[i] = gjsonKey(p)
	}
	target := root.Get(strings.Join(parts, "."))
	return target, target.Exists()
}

func sjsonKey(key string) string {
	r := strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}
