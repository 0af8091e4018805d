package testrunner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/lhdbsbz/svctool/internal/bundler"
	"github.com/lhdbsbz/svctool/internal/devserver"
	"github.com/lhdbsbz/svctool/internal/proc"
	"github.com/lhdbsbz/svctool/internal/project"
	"github.com/lhdbsbz/svctool/internal/runtime"
	"github.com/lhdbsbz/svctool/internal/tool"
	"github.com/mattn/go-isatty"
)

// TestManifest is the manifest integration tests launch, relative to res/.
const TestManifest = "test/test-app-main.json"

// Runner runs jest for a project.
type Runner struct {
	Project *project.Context
	Stdout  io.Writer
	Stderr  io.Writer

	// Launcher starts the runtime for integration tests. Defaults to the
	// project's RUNTIME_LAUNCHER.
	Launcher *runtime.Launcher
}

func New(pc *project.Context) *Runner {
	return &Runner{Project: pc}
}

// Run runs the suite of opts.Type and returns jest's exit code. The error is
// set when the suite could not be started at all.
func (r *Runner) Run(ctx context.Context, opts Options) (int, error) {
	configPath, err := WriteConfig(r.Project.Fs, r.Project.Paths, opts.Type)
	if err != nil {
		return 1, err
	}
	args := Args(opts, configPath, isatty.IsTerminal(os.Stdout.Fd()))

	if opts.Type == Unit {
		return r.jest(ctx, args, nil)
	}
	return r.integration(ctx, opts, args)
}

func (r *Runner) jest(ctx context.Context, args []string, env map[string]string) (int, error) {
	spec := tool.Command(r.Project.Root, "jest", args...)
	spec.Env = env
	spec.Stdout = r.Stdout
	spec.Stderr = r.Stderr
	slog.Debug("running jest", "args", args)
	return proc.Run(ctx, spec)
}

// integration serves the project, launches a runtime on the test manifest and
// runs jest against it. The runtime is cleaned up whatever the outcome.
func (r *Runner) integration(ctx context.Context, opts Options, args []string) (int, error) {
	pc := r.Project

	var bundle *bundler.Bundle
	if !opts.Static {
		targets, err := pc.Targets()
		if err != nil {
			return 1, err
		}
		bopts := pc.BundlerOptions(targets)
		bopts.Mode = "development"
		bundle, err = bundler.Build(ctx, bopts)
		if err != nil {
			return 1, err
		}
		defer bundle.Close()
	}

	engine := devserver.NewEngine(devserver.Options{
		Paths:      pc.Paths,
		Rewriter:   pc.Rewriter("local", opts.RuntimeVersion),
		BuildRoot:  buildRoot(pc, bundle),
		Middleware: pc.Hooks.Test,
	})
	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	srv, err := devserver.Listen(srvCtx, engine, pc.Config.Port)
	if err != nil {
		return 1, err
	}
	defer srv.Close()

	launcher := r.Launcher
	if launcher == nil {
		launcher = runtime.NewLauncher(pc.Config.RuntimeLauncher, pc.Procs)
	}
	inst, err := launcher.Launch(ctx, pc.Config.LocalURL(TestManifest))
	if err != nil {
		return 1, fmt.Errorf("launch runtime: %w", err)
	}
	defer inst.Stop()
	slog.Info("runtime started for tests", "port", inst.Port)

	code, err := r.jest(ctx, args, map[string]string{"OF_PORT": strconv.Itoa(inst.Port)})
	if err != nil {
		return 1, err
	}
	return code, nil
}

func buildRoot(pc *project.Context, b *bundler.Bundle) func() string {
	if b == nil {
		return func() string { return pc.Paths.Dist() }
	}
	return func() string { return b.Root }
}
