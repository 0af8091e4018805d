package bundler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lhdbsbz/svctool/internal/events"
	"github.com/lhdbsbz/svctool/internal/plugins"
	"github.com/lhdbsbz/svctool/internal/proc"
	"github.com/lhdbsbz/svctool/internal/tool"
	"golang.org/x/sync/errgroup"
)

var ErrBuildFailed = errors.New("build failed")

// Options controls one bundler invocation.
type Options struct {
	Root        string
	Targets     []Target
	Mode        string // forced on targets that do not set their own
	Watch       bool
	WriteToDisk bool // build into dist/ instead of a temporary directory
	WatchDirs   []string

	Events    events.Sink
	Procs     *proc.Manager
	Registry  *plugins.Registry
	PluginEnv plugins.Env
	Stdout    io.Writer // webpack output is relayed here; defaults to os.Stdout
}

// Timing is the initial compile of one target.
type Timing struct {
	Target   string
	Duration time.Duration
	Summary  Summary
	ExitCode int // -1 while the process is still running
}

func (t Timing) Failed() bool {
	return t.Summary.Failed() || (t.ExitCode != 0 && t.ExitCode != -1)
}

// Bundle is a completed initial build. In watch mode the webpack processes
// keep running until Close.
type Bundle struct {
	Root    string // build root the output was written to
	Timings []Timing

	names   []string
	procs   *proc.Manager
	watcher *Watcher
	temp    bool
}

// Build runs webpack once per target and returns after every target's
// initial compile. Any failing target fails the whole build.
func Build(ctx context.Context, opts Options) (*Bundle, error) {
	if len(opts.Targets) == 0 {
		return nil, errors.New("no bundler targets")
	}
	if opts.Procs == nil {
		opts.Procs = proc.NewManager()
	}
	if opts.Registry == nil {
		opts.Registry = plugins.DefaultRegistry()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	b := &Bundle{procs: opts.Procs}
	if opts.WriteToDisk {
		b.Root = filepath.Join(opts.Root, "dist")
	} else {
		dir, err := os.MkdirTemp("", "svctool-build-")
		if err != nil {
			return nil, fmt.Errorf("create build dir: %w", err)
		}
		b.Root = dir
		b.temp = true
	}

	start := time.Now()
	b.Timings = make([]Timing, len(opts.Targets))
	var out sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range opts.Targets {
		b.names = append(b.names, processName(t))
		g.Go(func() error {
			timing, err := b.buildTarget(gctx, ctx, opts, t, &out)
			b.Timings[i] = timing
			return err
		})
	}
	if err := g.Wait(); err != nil {
		b.Close()
		return nil, err
	}

	var failed []string
	for _, t := range b.Timings {
		slog.Info("target built", "target", t.Target, "duration", t.Duration.Round(time.Millisecond), "errors", t.Summary.Errors)
		if t.Failed() {
			failed = append(failed, t.Target)
		}
	}
	if len(failed) > 0 {
		b.Close()
		return nil, fmt.Errorf("%w: %s", ErrBuildFailed, strings.Join(failed, ", "))
	}
	slog.Info("initial build complete", "targets", len(b.Timings), "duration", time.Since(start).Round(time.Millisecond))

	if opts.Watch {
		dirs := opts.WatchDirs
		if len(dirs) == 0 {
			dirs = []string{filepath.Join(opts.Root, "src")}
		}
		w, err := NewWatcher(dirs, func(paths []string) {
			slog.Debug("sources changed", "paths", paths)
			for _, t := range opts.Targets {
				em := events.NewEmitter(t.Name, opts.Events)
				em.Emit(events.TypeInvalid)
				em.Emit(events.TypeWatchRun)
			}
		})
		if err != nil {
			slog.Warn("source watch unavailable", "error", err)
		} else {
			b.watcher = w
		}
	}
	return b, nil
}

// Args returns the webpack command line for t. The target's own mode wins
// over mode; with neither set the mode inside the webpack config applies.
func Args(t Target, mode, outputPath string, watch bool) []string {
	args := []string{"--config", t.WebpackConfig}
	if t.ConfigName != "" {
		args = append(args, "--config-name", t.ConfigName)
	}
	if t.Mode != "" {
		mode = t.Mode
	}
	if mode != "" {
		args = append(args, "--mode", mode)
	}
	args = append(args, "--output-path", outputPath, "--no-color")
	if watch {
		args = append(args, "--watch")
	}
	return args
}

func processName(t Target) string { return "webpack:" + t.Name }

// buildTarget waits for the target's first compile. The process itself is
// bound to procCtx so a watch build survives the initial build.
func (b *Bundle) buildTarget(ctx, procCtx context.Context, opts Options, t Target, out *sync.Mutex) (Timing, error) {
	timing := Timing{Target: t.Name, ExitCode: -1}
	em := events.NewEmitter(t.Name, opts.Events)

	if len(t.Plugins) > 0 {
		built, err := plugins.Build(opts.Registry, opts.PluginEnv, t.Plugins)
		if err != nil {
			return timing, fmt.Errorf("target %s: %w", t.Name, err)
		}
		if err := plugins.Run(ctx, plugins.RunnableOnly(built), plugins.ActionGenerate); err != nil {
			return timing, fmt.Errorf("target %s: %w", t.Name, err)
		}
	}

	pr, pw := io.Pipe()
	spec := tool.Command(opts.Root, "webpack", Args(t, opts.Mode, filepath.Join(b.Root, t.Output), opts.Watch)...)
	spec.Name = processName(t)
	spec.Stdout = pw

	started := time.Now()
	p, err := b.procs.Start(procCtx, spec)
	if err != nil {
		pw.Close()
		return timing, fmt.Errorf("target %s: %w", t.Name, err)
	}
	if opts.Watch {
		em.Emit(events.TypeWatchRun)
	} else {
		em.Emit(events.TypeRun)
	}

	first := make(chan Summary, 1)
	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		compiles := 0
		for sc.Scan() {
			line := sc.Text()
			out.Lock()
			fmt.Fprintln(opts.Stdout, line)
			out.Unlock()

			s, ok := ParseSummary(line)
			if !ok {
				continue
			}
			compiles++
			em.Emit(events.TypeDone, events.WithErrors(s.Errors))
			if compiles == 1 {
				first <- s
			} else {
				slog.Info("rebuild complete", "target", t.Name, "errors", s.Errors)
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("webpack output no longer parsed, relaying raw", "target", t.Name, "error", err)
		}
		// keep relaying so the child never blocks on a full pipe
		_, _ = io.Copy(&lockedWriter{mu: out, w: opts.Stdout}, pr)
	}()
	go func() {
		<-p.Done()
		pw.Close()
		if opts.Watch {
			em.Emit(events.TypeWatchClose)
		}
	}()

	select {
	case s := <-first:
		timing.Summary = s
		timing.Duration = time.Since(started)
		if !opts.Watch {
			<-scanned
			timing.ExitCode, _ = p.Wait()
		}
	case <-scanned:
		timing.Duration = time.Since(started)
		timing.ExitCode, _ = p.Wait()
		select {
		case s := <-first:
			timing.Summary = s
		default:
			if opts.Watch && timing.ExitCode == 0 {
				// a watch process must not exit before its first compile
				timing.ExitCode = 1
			}
		}
	case <-ctx.Done():
		b.procs.Stop(spec.Name)
		return timing, ctx.Err()
	}
	return timing, nil
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Close stops the watch processes and removes a temporary build root.
func (b *Bundle) Close() error {
	if b == nil {
		return nil
	}
	if b.watcher != nil {
		b.watcher.Close()
		b.watcher = nil
	}
	for _, name := range b.names {
		b.procs.Stop(name)
	}
	if b.temp {
		b.temp = false
		return os.RemoveAll(b.Root)
	}
	return nil
}
