package bundler

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/lhdbsbz/svctool/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeWebpack = `#!/bin/sh
name=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--config-name" ]; then name="$2"; fi
  shift
done
if [ "$name" = "broken" ]; then
  echo "ERROR in ./src/broken.ts"
  echo "webpack 5.88.2 compiled with 2 errors in 12 ms"
  exit 1
fi
echo "webpack 5.88.2 compiled successfully in 10 ms"
`

const watchWebpack = `#!/bin/sh
echo "webpack 5.88.2 compiled successfully in 10 ms"
while :; do sleep 1; done
`

const quitWebpack = `#!/bin/sh
echo "webpack is watching the files..."
exit 0
`

const longLineWebpack = `#!/bin/sh
head -c 2000000 /dev/zero | tr '\0' a
echo
echo "after the long line"
echo "webpack 5.88.2 compiled successfully in 10 ms"
`

func fakeProject(t *testing.T) string {
	t.Helper()
	return fakeProjectWith(t, fakeWebpack)
}

func fakeProjectWith(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	root := t.TempDir()
	bin := filepath.Join(root, "node_modules", ".bin", "webpack")
	require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o755))
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return root
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) sink(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types(target string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Target == target {
			out = append(out, e.Type)
		}
	}
	return out
}

func TestParseConfigDefaults(t *testing.T) {
	targets, err := ParseConfig([]byte(`
- name: provider
  plugins:
    - kind: version
      outputPath: gen/provider
- name: client
  configName: lib
  output: client/dist
  mode: production
`), "build.config.yaml")
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, DefaultWebpackConfig, targets[0].WebpackConfig)
	assert.Equal(t, "provider", targets[0].ConfigName)
	assert.Equal(t, "provider", targets[0].Output)
	assert.Equal(t, "lib", targets[1].ConfigName)
	assert.Equal(t, "client/dist", targets[1].Output)

	ps := AllPlugins(targets)
	require.Len(t, ps, 1)
	assert.Equal(t, "version", ps[0].Kind)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte(`[]`), "b.yaml")
	assert.ErrorContains(t, err, "defines no targets")

	_, err = ParseConfig([]byte("- name: a\n- output: x\n- name: a\n"), "b.yaml")
	require.Error(t, err)
	assert.ErrorContains(t, err, "target 2 has no name")
	assert.ErrorContains(t, err, `duplicate target "a"`)

	_, err = ParseConfig([]byte("name: [unterminated"), "b.yaml")
	assert.ErrorContains(t, err, "parse build config b.yaml")
}

func TestParseSummary(t *testing.T) {
	cases := []struct {
		line   string
		ok     bool
		errors int
		warn   bool
	}{
		{"webpack 5.88.2 compiled successfully in 1234 ms", true, 0, false},
		{"\x1b[1mwebpack 5.88.2 compiled \x1b[32msuccessfully\x1b[39m in 20 ms\x1b[22m", true, 0, false},
		{"webpack 5.88.2 compiled with 2 errors in 99 ms", true, 2, false},
		{"provider (webpack 5.88.2) compiled with 1 error and 3 warnings in 10 ms", true, 1, true},
		{"webpack 5.88.2 compiled with 1 warning in 5 ms", true, 0, true},
		{"asset provider.js 12 KiB [emitted]", false, 0, false},
		{"ERROR in ./src/index.ts", false, 0, false},
	}
	for _, c := range cases {
		s, ok := ParseSummary(c.line)
		assert.Equal(t, c.ok, ok, c.line)
		assert.Equal(t, c.errors, s.Errors, c.line)
		assert.Equal(t, c.warn, s.Warnings, c.line)
	}
}

func TestArgs(t *testing.T) {
	tgt := Target{Name: "provider", WebpackConfig: "webpack.config.js", ConfigName: "provider"}
	assert.Equal(t, []string{
		"--config", "webpack.config.js", "--config-name", "provider",
		"--mode", "development", "--output-path", "/out/provider", "--no-color", "--watch",
	}, Args(tgt, "development", "/out/provider", true))

	tgt.Mode = "production"
	args := Args(tgt, "development", "/out", false)
	assert.Contains(t, args, "production")
	assert.NotContains(t, args, "--watch")

	unnamed := Target{Name: "provider", WebpackConfig: "webpack.config.js"}
	assert.Equal(t, []string{
		"--config", "webpack.config.js", "--output-path", "/out", "--no-color",
	}, Args(unnamed, "", "/out", false))
}

func TestParseConfigEmptyConfigName(t *testing.T) {
	targets, err := ParseConfig([]byte(`
- name: provider
  configName: ""
- name: client
`), "build.config.yaml")
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Empty(t, targets[0].ConfigName)
	assert.NotContains(t, Args(targets[0], "", "/out", false), "--config-name")
	assert.Equal(t, "client", targets[1].ConfigName)
}

func TestBuildSucceeds(t *testing.T) {
	root := fakeProject(t)
	rec := &recorder{}
	var out bytes.Buffer

	b, err := Build(context.Background(), Options{
		Root:        root,
		Targets:     []Target{{Name: "provider", WebpackConfig: DefaultWebpackConfig, ConfigName: "provider", Output: "provider"}},
		Mode:        "production",
		WriteToDisk: true,
		Events:      rec.sink,
		Stdout:      &out,
	})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, filepath.Join(root, "dist"), b.Root)
	require.Len(t, b.Timings, 1)
	assert.Equal(t, 0, b.Timings[0].ExitCode)
	assert.Contains(t, out.String(), "compiled successfully")
	assert.Equal(t, []string{events.TypeRun, events.TypeDone}, rec.types("provider"))
}

func TestBuildFailsWhenOneTargetFails(t *testing.T) {
	root := fakeProject(t)
	rec := &recorder{}

	_, err := Build(context.Background(), Options{
		Root: root,
		Targets: []Target{
			{Name: "provider", WebpackConfig: DefaultWebpackConfig, ConfigName: "provider", Output: "provider"},
			{Name: "broken", WebpackConfig: DefaultWebpackConfig, ConfigName: "broken", Output: "broken"},
		},
		Events: rec.sink,
		Stdout: &bytes.Buffer{},
	})
	require.ErrorIs(t, err, ErrBuildFailed)
	assert.ErrorContains(t, err, "broken")
	assert.NotContains(t, err.Error(), "provider")

	var done *events.Event
	rec.mu.Lock()
	for i := range rec.events {
		if rec.events[i].Target == "broken" && rec.events[i].Type == events.TypeDone {
			done = &rec.events[i]
		}
	}
	rec.mu.Unlock()
	require.NotNil(t, done)
	assert.Equal(t, 2, done.Errors)
}

func TestBuildTempRootRemovedOnClose(t *testing.T) {
	root := fakeProject(t)

	b, err := Build(context.Background(), Options{
		Root:    root,
		Targets: []Target{{Name: "demo", WebpackConfig: DefaultWebpackConfig, ConfigName: "demo", Output: "demo"}},
		Stdout:  &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.NotEqual(t, filepath.Join(root, "dist"), b.Root)
	require.DirExists(t, b.Root)

	require.NoError(t, b.Close())
	assert.NoDirExists(t, b.Root)
}

func TestDebouncerMergesBurst(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	got := make(chan []string, 2)
	cb := func(paths []string) { got <- paths }

	d.Submit("src", "a.ts", cb)
	d.Submit("src", "b.ts", cb)
	d.Submit("src", "a.ts", cb)

	select {
	case paths := <-got:
		assert.Equal(t, []string{"a.ts", "b.ts"}, paths)
	case <-time.After(time.Second):
		t.Fatal("debounced callback never ran")
	}
	select {
	case <-got:
		t.Fatal("callback ran twice")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	ran := make(chan struct{}, 1)
	d.Submit("src", "a.ts", func([]string) { ran <- struct{}{} })
	d.Stop()

	select {
	case <-ran:
		t.Fatal("stopped callback ran")
	case <-time.After(60 * time.Millisecond):
	}
}

func watchOptions(root string, rec *recorder) Options {
	return Options{
		Root:      root,
		Targets:   []Target{{Name: "provider", WebpackConfig: DefaultWebpackConfig, ConfigName: "provider", Output: "provider"}},
		Mode:      "development",
		Watch:     true,
		WatchDirs: []string{filepath.Join(root, "src")},
		Events:    rec.sink,
		Stdout:    &bytes.Buffer{},
	}
}

func TestBuildWatchEmitsRebuildEvents(t *testing.T) {
	root := fakeProjectWith(t, watchWebpack)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	rec := &recorder{}

	b, err := Build(context.Background(), watchOptions(root, rec))
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, []string{events.TypeWatchRun, events.TypeDone}, rec.types("provider"))
	assert.Equal(t, -1, b.Timings[0].ExitCode)

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "x.ts"), []byte("export {}"), 0o644))
	require.Eventually(t, func() bool { return len(rec.types("provider")) >= 4 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool {
		types := rec.types("provider")
		return types[len(types)-1] == events.TypeWatchClose
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{
		events.TypeWatchRun, events.TypeDone,
		events.TypeInvalid, events.TypeWatchRun,
		events.TypeWatchClose,
	}, rec.types("provider"))
}

func TestBuildWatchExitBeforeCompileFails(t *testing.T) {
	root := fakeProjectWith(t, quitWebpack)
	rec := &recorder{}

	_, err := Build(context.Background(), watchOptions(root, rec))
	require.ErrorIs(t, err, ErrBuildFailed)
	assert.ErrorContains(t, err, "provider")
}

func TestBuildRelaysOutputPastLongLine(t *testing.T) {
	root := fakeProjectWith(t, longLineWebpack)
	var out bytes.Buffer

	b, err := Build(context.Background(), Options{
		Root:    root,
		Targets: []Target{{Name: "provider", WebpackConfig: DefaultWebpackConfig, ConfigName: "provider", Output: "provider"}},
		Stdout:  &out,
	})
	require.NoError(t, err)
	defer b.Close()

	assert.Contains(t, out.String(), "after the long line")
	assert.Contains(t, out.String(), "compiled successfully")
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))

	got := make(chan []string, 4)
	w, err := NewWatcher([]string{dir}, func(paths []string) { got <- paths })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "dep.js"), []byte("x"), 0o644))
	changed := filepath.Join(dir, "nested", "a.ts")
	require.NoError(t, os.WriteFile(changed, []byte("a"), 0o644))

	select {
	case paths := <-got:
		assert.Equal(t, []string{changed}, paths)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	created := filepath.Join(dir, "fresh")
	require.NoError(t, os.Mkdir(created, 0o755))
	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("new directory not reported")
	}
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(created, "b.ts"), []byte("b"), 0o644))

	select {
	case paths := <-got:
		assert.Contains(t, paths, filepath.Join(created, "b.ts"))
	case <-time.After(3 * time.Second):
		t.Fatal("change in new directory not reported")
	}
}
