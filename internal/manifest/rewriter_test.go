package manifest

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoManifest = `{
  "licenseKey": "key",
  "startup_app": {
    "name": "demo",
    "uuid": "layouts-demo",
    "url": "https://cdn.openfin.co/services/openfin/layouts/demo/index.html"
  },
  "runtime": {"arguments": "--v=1", "version": "14.78.48.16"},
  "services": [
    {"name": "other", "manifestUrl": "https://example.com/other.json"},
    {"name": "layouts", "manifestUrl": "https://cdn.openfin.co/services/openfin/layouts/app.json?debug=1"}
  ]
}`

func newTestRewriter(t *testing.T, providerVersion, runtimeVersion string) *Rewriter {
	return &Rewriter{
		ServiceName:     "layouts",
		CDN:             testCDN,
		Port:            3011,
		Resolver:        newTestResolver(t),
		ProviderVersion: providerVersion,
		RuntimeVersion:  runtimeVersion,
	}
}

func TestRewrite(t *testing.T) {
	rw := newTestRewriter(t, "stable", "canary")

	out, err := rw.Rewrite([]byte(demoManifest), "demo")
	require.NoError(t, err)

	var got File
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "http://localhost:3011/demo/demo/index.html", got.StartupApp.URL)
	assert.Equal(t, "canary", got.Runtime.Version)
	assert.Equal(t, "--v=1", got.Runtime.Arguments)
	require.Len(t, got.Services, 2)
	assert.Equal(t, "https://example.com/other.json", got.Services[0].ManifestURL)
	assert.Equal(t, testCDN+"/app.json?debug=1", got.Services[1].ManifestURL)
}

func TestRewriteKeepsOrderAndIndent(t *testing.T) {
	rw := newTestRewriter(t, "local", "")

	out, err := rw.Rewrite([]byte(demoManifest), "demo")
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "{\n    \"licenseKey\": \"key\",\n    \"startup_app\": {\n        \"name\""), s)
	assert.Less(t, strings.Index(s, `"runtime"`), strings.Index(s, `"services"`))
	assert.Contains(t, s, `"version": "14.78.48.16"`)
}

func TestRewriteDeterministic(t *testing.T) {
	a, err := newTestRewriter(t, "1.2.3", "stable").Rewrite([]byte(demoManifest), "demo")
	require.NoError(t, err)
	b, err := newTestRewriter(t, "1.2.3", "stable").Rewrite([]byte(demoManifest), "demo")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, json.Valid(a))
}

func TestRewriteWithoutServices(t *testing.T) {
	rw := newTestRewriter(t, "local", "")
	in := `{"startup_app": {"url": "http://elsewhere/index.html"}, "runtime": {"version": "stable"}}`

	out, err := rw.Rewrite([]byte(in), "provider")
	require.NoError(t, err)
	assert.Contains(t, string(out), `"url": "http://elsewhere/index.html"`)
}

func TestRewritePassThrough(t *testing.T) {
	rw := newTestRewriter(t, "local", "")
	for _, in := range []string{
		`{"runtime": {"version": "stable"}}`,
		`{"startup_app": null}`,
		`not json`,
	} {
		_, err := rw.Rewrite([]byte(in), "demo")
		assert.True(t, errors.Is(err, ErrPassThrough), in)
	}
}

func TestRewriteInvalidProviderVersion(t *testing.T) {
	rw := newTestRewriter(t, "bogus", "")
	_, err := rw.Rewrite([]byte(demoManifest), "demo")
	assert.True(t, errors.Is(err, ErrInvalidVersion))
}

func TestComponent(t *testing.T) {
	assert.Equal(t, "provider", Component("provider/app.json"))
	assert.Equal(t, "demo", Component("/demo/sub/app.json"))
	assert.Equal(t, "app.json", Component("app.json"))
}
