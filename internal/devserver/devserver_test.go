package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lhdbsbz/svctool/internal/config"
	"github.com/lhdbsbz/svctool/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cdn = "https://cdn.openfin.co/services/openfin/layouts"

func fixture(t *testing.T, files map[string]string) config.Paths {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return config.Paths{Root: root}
}

func defaultFiles() map[string]string {
	return map[string]string{
		"res/demo/app.json": `{
			"licenseKey": "demo-key",
			"startup_app": {"name": "demo", "uuid": "layouts-demo", "url": "` + cdn + `/demo/index.html"},
			"runtime": {"arguments": "", "version": "stable"},
			"services": [{"name": "layouts", "manifestUrl": "` + cdn + `/app.json?x=1"}]
		}`,
		"res/provider/app.json":      `{"startup_app": {"url": "` + cdn + `/provider.html"}, "runtime": {"version": "stable"}}`,
		"res/provider/settings.json": `{"not": "a manifest"}`,
		"res/test/broken-app.json":   `{"runtime": {}}`,
		"res/demo/index.html":        "<html>demo</html>",
		"dist/provider/provider.js":  "provider bundle",
	}
}

func newEngine(t *testing.T, paths config.Paths, providerVersion string, mw func(*gin.Engine)) *gin.Engine {
	rw := &manifest.Rewriter{
		ServiceName:     "layouts",
		CDN:             cdn,
		Port:            3011,
		Resolver:        manifest.NewResolver(3011, cdn, paths.Res()),
		ProviderVersion: providerVersion,
	}
	return NewEngine(Options{Paths: paths, Rewriter: rw, Middleware: mw})
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestManifestRewritten(t *testing.T) {
	paths := fixture(t, defaultFiles())
	e := newEngine(t, paths, "staging", nil)

	rec := get(e, "/demo/app.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "\n    \"licenseKey\"")

	var m manifest.File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "http://localhost:3011/demo/demo/index.html", m.StartupApp.URL)
	require.Len(t, m.Services, 1)
	assert.Equal(t, cdn+"/app.staging.json?x=1", m.Services[0].ManifestURL)
}

func TestManifestPassThrough(t *testing.T) {
	paths := fixture(t, defaultFiles())
	e := newEngine(t, paths, "local", nil)

	// no startup_app: served as the static file
	rec := get(e, "/test/broken-app.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runtime": {}}`, rec.Body.String())

	// not matching the manifest pattern
	rec = get(e, "/provider/settings.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"not": "a manifest"}`, rec.Body.String())

	// missing file
	rec = get(e, "/nowhere/app.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManifestInvalidProviderVersion(t *testing.T) {
	paths := fixture(t, defaultFiles())
	e := newEngine(t, paths, "nightly", nil)

	rec := get(e, "/demo/app.json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "nightly")
}

func TestManifestPathEscape(t *testing.T) {
	paths := fixture(t, defaultFiles())
	e := newEngine(t, paths, "local", nil)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.URL.Path = "/../res/demo/app.json"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusInternalServerError, rec.Code)
}

func TestAdHocManifest(t *testing.T) {
	paths := fixture(t, defaultFiles())
	e := newEngine(t, paths, "local", nil)

	rec := get(e, "/manifest?uuid=my-app&defaultWidth=300&useService=false&shortcutName=Tester")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	startup := m["startup_app"].(map[string]any)
	assert.Equal(t, "my-app", startup["uuid"])
	assert.EqualValues(t, 300, startup["defaultWidth"])
	assert.EqualValues(t, 605, startup["defaultHeight"])
	assert.Equal(t, "demo-key", m["licenseKey"])
	assert.Equal(t, map[string]any{}, m["services"])
	assert.Equal(t, "Tester", m["shortcut"].(map[string]any)["name"])
}

func TestAdHocManifestBadConfig(t *testing.T) {
	paths := fixture(t, defaultFiles())
	e := newEngine(t, paths, "local", nil)

	rec := get(e, "/manifest?config=%7Bnope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdHocManifestWithoutDefaults(t *testing.T) {
	files := defaultFiles()
	delete(files, "res/demo/app.json")
	paths := fixture(t, files)
	e := newEngine(t, paths, "local", nil)

	assert.Equal(t, http.StatusNotFound, get(e, "/manifest").Code)
}

func TestStaticServing(t *testing.T) {
	paths := fixture(t, defaultFiles())
	e := newEngine(t, paths, "local", nil)

	rec := get(e, "/demo/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>demo</html>", rec.Body.String())

	rec = get(e, "/provider/provider.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "provider bundle", rec.Body.String())

	rec = get(e, "/missing.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Cannot GET /missing.js", rec.Body.String())
}

func TestBuildRootOverride(t *testing.T) {
	paths := fixture(t, defaultFiles())
	live := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(live, "client.js"), []byte("live"), 0o644))

	rw := &manifest.Rewriter{ServiceName: "layouts", CDN: cdn, Port: 3011, Resolver: manifest.NewResolver(3011, cdn, paths.Res())}
	e := NewEngine(Options{Paths: paths, Rewriter: rw, BuildRoot: func() string { return live }})

	assert.Equal(t, "live", get(e, "/client.js").Body.String())
	assert.Equal(t, http.StatusNotFound, get(e, "/provider/provider.js").Code)
}

func TestMiddlewareTakesPrecedence(t *testing.T) {
	paths := fixture(t, defaultFiles())
	e := newEngine(t, paths, "local", func(r *gin.Engine) {
		r.GET("/demo/app.json", func(c *gin.Context) { c.String(http.StatusOK, "custom") })
	})

	assert.Equal(t, "custom", get(e, "/demo/app.json").Body.String())
}

func TestListenAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := Listen(ctx, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}), 0)
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", s.Port()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	assert.NoError(t, s.Wait())
}
