package cli

import (
	"context"
	"errors"
	"log/slog"
	goruntime "runtime"

	"github.com/lhdbsbz/svctool/hooks"
	"github.com/lhdbsbz/svctool/internal/bundler"
	"github.com/lhdbsbz/svctool/internal/devserver"
	"github.com/lhdbsbz/svctool/internal/events"
	"github.com/lhdbsbz/svctool/internal/manifest"
	"github.com/lhdbsbz/svctool/internal/project"
	"github.com/lhdbsbz/svctool/internal/runtime"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func (a *app) startCommand() *cobra.Command {
	args := a.hooks.StartDefaults()
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Build, serve and launch the demo app",
		Long: `Builds the project in watch mode, serves res/ and the build output on the
project port and launches the demo app.

The provider version is one of local, stable, staging, testing, an x.y.z
release or the URL of a provider manifest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := a.project()
			if err != nil {
				return err
			}
			defer pc.Close()
			return start(cmd.Context(), pc, args)
		},
	}
	bindStartFlags(cmd.Flags(), &args)
	return cmd
}

// bindStartFlags binds the start options, using their current values as the
// flag defaults.
func bindStartFlags(f *pflag.FlagSet, args *hooks.StartArgs) {
	f.StringVarP(&args.ProviderVersion, "provider-version", "v", args.ProviderVersion, "Provider version to run against")
	f.StringVarP(&args.RuntimeVersion, "runtime", "r", args.RuntimeVersion, "Runtime version override for served manifests")
	f.StringVarP(&args.Mode, "mode", "m", args.Mode, "Webpack mode")
	f.BoolVarP(&args.NoDemo, "no-demo", "n", args.NoDemo, "Serve without launching the demo app")
	f.BoolVarP(&args.Static, "static", "s", args.Static, "Serve pre-built files from dist/")
	f.BoolVarP(&args.WriteToDisk, "write-to-disk", "w", args.WriteToDisk, "Write the live build to dist/")
}

func start(ctx context.Context, pc *project.Context, args hooks.StartArgs) error {
	var bundle *bundler.Bundle
	if !args.Static {
		bus, err := events.Listen(events.Options{Port: pc.Config.EventsPort, UseExisting: true})
		if err != nil {
			slog.Warn("build events unavailable", "error", err)
		} else {
			defer bus.Close()
		}

		targets, err := pc.Targets()
		if err != nil {
			return err
		}
		opts := pc.BundlerOptions(targets)
		opts.Mode = args.Mode
		opts.Watch = true
		opts.WriteToDisk = args.WriteToDisk
		if bus != nil {
			opts.Events = bus.Publish
		}
		bundle, err = bundler.Build(ctx, opts)
		if err != nil {
			return err
		}
		defer bundle.Close()
	}

	engine := devserver.NewEngine(devserver.Options{
		Paths:      pc.Paths,
		Rewriter:   pc.Rewriter(args.ProviderVersion, args.RuntimeVersion),
		BuildRoot:  bundleRoot(pc, bundle),
		Middleware: pc.Hooks.App,
	})
	slog.Info("starting application server", "port", pc.Config.Port)
	srv, err := devserver.Listen(ctx, engine, pc.Config.Port)
	if err != nil {
		return err
	}
	defer srv.Close()

	providerURL, err := pc.Providers.Resolve(args.ProviderVersion, "")
	if err != nil {
		return err
	}
	launcher := runtime.NewLauncher(pc.Config.RuntimeLauncher, pc.Procs)

	// no RVM on macOS: the provider has to be started by hand
	if goruntime.GOOS == "darwin" {
		slog.Info("starting provider for macOS", "manifest", providerURL)
		if _, err := launcher.Launch(ctx, providerURL); err != nil {
			slog.Error("provider launch failed", "error", err)
		}
	}

	if args.NoDemo {
		slog.Info("local server running", "url", pc.Config.LocalURL())
		err := srv.Wait()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	provider, err := manifest.Fetch(ctx, nil, providerURL)
	if err != nil {
		return err
	}
	if provider.StartupApp == nil {
		return errors.New("provider manifest has no startup_app")
	}
	slog.Info("launching application", "manifest", pc.Config.Manifest,
		"provider", provider.StartupApp.UUID, "name", provider.StartupApp.Name)

	inst, err := launcher.Launch(ctx, pc.Config.LocalURL(pc.Config.Manifest))
	if err != nil {
		return err
	}
	defer inst.Stop()

	if err := inst.WaitClosed(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("runtime closed, stopping")
	return nil
}

func bundleRoot(pc *project.Context, b *bundler.Bundle) func() string {
	if b == nil {
		return func() string { return pc.Paths.Dist() }
	}
	return func() string { return b.Root }
}
