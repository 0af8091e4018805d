package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrPassThrough means the document is not a manifest this package rewrites;
	// the caller should hand the request to the next handler.
	ErrPassThrough = errors.New("not a rewritable manifest")

	ErrInvalidVersion = errors.New("not a valid version number or channel")

	ErrInvalidQuery = errors.New("invalid manifest query")
)

// File is the subset of an application manifest this tool reads.
type File struct {
	LicenseKey string               `json:"licenseKey,omitempty"`
	StartupApp *StartupApp          `json:"startup_app,omitempty"`
	Runtime    Runtime              `json:"runtime"`
	Services   []ServiceDeclaration `json:"services,omitempty"`
}

type StartupApp struct {
	URL  string `json:"url,omitempty"`
	UUID string `json:"uuid,omitempty"`
	Name string `json:"name,omitempty"`
}

type Runtime struct {
	Arguments string `json:"arguments"`
	Version   string `json:"version"`
}

// ServiceDeclaration is one entry of a manifest's services list.
type ServiceDeclaration struct {
	Name        string          `json:"name"`
	ManifestURL string          `json:"manifestUrl,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Shortcut is the desktop shortcut block of a synthesized manifest.
type Shortcut struct {
	Company string `json:"company"`
	Icon    string `json:"icon"`
	Name    string `json:"name"`
}

// Parse decodes a manifest document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &f, nil
}

// Format re-indents a JSON document with four spaces, the layout the runtime
// launcher expects.
func Format(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "    "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Marshal encodes v with four-space indentation and without HTML escaping.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
