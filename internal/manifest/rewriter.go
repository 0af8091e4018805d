package manifest

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Rewriter patches manifests served by the dev server so that they point at
// the local server and at the requested provider and runtime versions.
type Rewriter struct {
	ServiceName string
	CDN         string
	Port        int
	Resolver    *Resolver

	ProviderVersion string
	RuntimeVersion  string // empty keeps the manifest's own runtime version
}

// Rewrite returns a re-indented copy of raw with the local overrides applied.
// component is the first path segment of the manifest (provider, demo, ...)
// and roots the local startup URL.
//
// Documents that are not JSON, or have no startup_app block, yield ErrPassThrough.
func (rw *Rewriter) Rewrite(raw []byte, component string) ([]byte, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrPassThrough
	}
	startup := gjson.GetBytes(raw, "startup_app")
	if !startup.IsObject() {
		return nil, ErrPassThrough
	}

	out := raw
	var err error

	if u := startup.Get("url").String(); u != "" && rw.CDN != "" && strings.Contains(u, rw.CDN) {
		local := fmt.Sprintf("http://localhost:%d/%s", rw.Port, component)
		out, err = sjson.SetBytes(out, "startup_app.url", strings.Replace(u, rw.CDN, local, 1))
		if err != nil {
			return nil, fmt.Errorf("set startup url: %w", err)
		}
	}

	services := gjson.GetBytes(out, "services")
	if services.IsArray() {
		for i, svc := range services.Array() {
			if svc.Get("name").String() != rw.ServiceName {
				continue
			}
			resolved, err := rw.Resolver.Resolve(rw.ProviderVersion, svc.Get("manifestUrl").String())
			if err != nil {
				return nil, err
			}
			out, err = sjson.SetBytes(out, fmt.Sprintf("services.%d.manifestUrl", i), resolved)
			if err != nil {
				return nil, fmt.Errorf("set service manifest url: %w", err)
			}
			break
		}
	}

	if rw.RuntimeVersion != "" {
		out, err = sjson.SetBytes(out, "runtime.version", rw.RuntimeVersion)
		if err != nil {
			return nil, fmt.Errorf("set runtime version: %w", err)
		}
	}

	return Format(out)
}

// Component returns the first segment of a manifest path relative to res/.
func Component(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
