package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

const (
	KindSchemaTypes    = "schema-types"
	KindSchemaDefaults = "schema-defaults"
)

// schemaTypes writes TypeScript declarations for JSON Schema files.
type schemaTypes struct {
	*schemaPlugin
}

func newSchemaTypes(spec Spec, env Env) (Plugin, error) {
	base, err := newSchemaPlugin(KindSchemaTypes, ".ts", spec, env)
	if err != nil {
		return nil, err
	}
	return &schemaTypes{base}, nil
}

func (p *schemaTypes) Run(ctx context.Context, action string) error {
	return p.each(action, func(input string, schema []byte) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(schema) {
			return nil, fmt.Errorf("schema is not valid JSON")
		}
		return []byte(generateTypes(gjson.ParseBytes(schema), filepath.Base(input))), nil
	})
}

var identPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var combinators = []struct{ key, sep string }{
	{"oneOf", " | "},
	{"anyOf", " | "},
	{"allOf", " & "},
}

// generateTypes renders the root schema and its definitions as exported
// TypeScript interfaces and type aliases. Property order follows the schema.
func generateTypes(root gjson.Result, source string) string {
	var b strings.Builder
	b.WriteString("/* eslint-disable */\n")
	fmt.Fprintf(&b, "/**\n * Generated from %s. Do not modify this file by hand.\n */\n", source)

	rootName := typeName(root.Get("title").String())
	if rootName == "" {
		rootName = typeName(strings.TrimSuffix(source, schemaExt))
	}
	b.WriteString("\n")
	writeDeclaration(&b, rootName, root)

	for _, key := range []string{"definitions", "$defs"} {
		root.Get(gjsonKey(key)).ForEach(func(name, def gjson.Result) bool {
			b.WriteString("\n")
			writeDeclaration(&b, typeName(name.String()), def)
			return true
		})
	}
	return b.String()
}

func writeDeclaration(b *strings.Builder, name string, s gjson.Result) {
	writeDoc(b, s.Get("description").String(), "")
	if isObject(s) && !s.Get("$ref").Exists() {
		fmt.Fprintf(b, "export interface %s %s\n", name, objectType(s, ""))
		return
	}
	fmt.Fprintf(b, "export type %s = %s;\n", name, tsType(s, ""))
}

func tsType(s gjson.Result, indent string) string {
	if ref := s.Get(gjsonKey("$ref")); ref.Exists() {
		r := ref.String()
		if i := strings.LastIndexByte(r, '/'); i >= 0 && strings.HasPrefix(r, "#/") {
			return typeName(r[i+1:])
		}
		return "unknown"
	}
	if enum := s.Get("enum"); enum.IsArray() {
		var vals []string
		for _, v := range enum.Array() {
			vals = append(vals, v.Raw)
		}
		return strings.Join(vals, " | ")
	}
	if c := s.Get("const"); c.Exists() {
		return c.Raw
	}
	for _, c := range combinators {
		if list := s.Get(c.key); list.IsArray() {
			var parts []string
			for _, sub := range list.Array() {
				parts = append(parts, tsType(sub, indent))
			}
			return strings.Join(parts, c.sep)
		}
	}

	t := s.Get("type")
	if t.IsArray() {
		var parts []string
		for _, single := range t.Array() {
			parts = append(parts, primitive(single.String(), s, indent))
		}
		return strings.Join(parts, " | ")
	}
	if !t.Exists() {
		if isObject(s) {
			return objectType(s, indent)
		}
		return "unknown"
	}
	return primitive(t.String(), s, indent)
}

func primitive(t string, s gjson.Result, indent string) string {
	switch t {
	case "string":
		return "string"
	case "number", "integer":
		return "number"
	case "boolean":
		return "boolean"
	case "null":
		return "null"
	case "array":
		items := s.Get("items")
		switch {
		case items.IsArray():
			var parts []string
			for _, it := range items.Array() {
				parts = append(parts, tsType(it, indent))
			}
			return "[" + strings.Join(parts, ", ") + "]"
		case items.IsObject():
			elem := tsType(items, indent)
			if strings.ContainsAny(elem, "|&") && !strings.HasPrefix(elem, "{") {
				elem = "(" + elem + ")"
			}
			return elem + "[]"
		}
		return "unknown[]"
	case "object":
		return objectType(s, indent)
	}
	return "unknown"
}

func objectType(s gjson.Result, indent string) string {
	props := s.Get("properties")
	additional := s.Get("additionalProperties")
	if !props.IsObject() || len(props.Map()) == 0 {
		if additional.IsObject() {
			return "{[key: string]: " + tsType(additional, indent) + "}"
		}
		if additional.Exists() && !additional.Bool() {
			return "{}"
		}
		return "{[key: string]: unknown}"
	}

	required := make(map[string]bool)
	for _, r := range s.Get("required").Array() {
		required[r.String()] = true
	}

	inner := indent + "    "
	var b strings.Builder
	b.WriteString("{\n")
	props.ForEach(func(key, prop gjson.Result) bool {
		name := key.String()
		writeDoc(&b, prop.Get("description").String(), inner)
		field := name
		if !identPattern.MatchString(name) {
			field = fmt.Sprintf("%q", name)
		}
		if !required[name] {
			field += "?"
		}
		fmt.Fprintf(&b, "%s%s: %s;\n", inner, field, tsType(prop, inner))
		return true
	})
	if additional.IsObject() {
		fmt.Fprintf(&b, "%s[key: string]: %s;\n", inner, tsType(additional, inner))
	}
	b.WriteString(indent + "}")
	return b.String()
}

func writeDoc(b *strings.Builder, doc, indent string) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return
	}
	lines := strings.Split(doc, "\n")
	if len(lines) == 1 {
		fmt.Fprintf(b, "%s/** %s */\n", indent, strings.ReplaceAll(doc, "*/", "* /"))
		return
	}
	fmt.Fprintf(b, "%s/**\n", indent)
	for _, l := range lines {
		fmt.Fprintf(b, "%s * %s\n", indent, strings.ReplaceAll(strings.TrimRight(l, " \t"), "*/", "* /"))
	}
	fmt.Fprintf(b, "%s */\n", indent)
}

func isObject(s gjson.Result) bool {
	return s.Get("type").String() == "object" || s.Get("properties").IsObject()
}

// typeName converts a schema title or definition key to PascalCase.
func typeName(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name != "" && unicode.IsDigit(rune(name[0])) {
		name = "T" + name
	}
	return name
}

// gjsonKey escapes the characters gjson treats as path syntax.
func gjsonKey(key string) string {
	r := strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(key)
}
