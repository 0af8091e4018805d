package plugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Build instantiates every spec. All invalid specs are reported together.
func Build(reg *Registry, env Env, specs []Spec) ([]Plugin, error) {
	var (
		out  []Plugin
		errs []error
	)
	for _, spec := range specs {
		p, err := reg.New(spec, env)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}

// RunnableOnly filters plugins down to the ones that can run standalone.
func RunnableOnly(ps []Plugin) []Runnable {
	var out []Runnable
	for _, p := range ps {
		if r, ok := p.(Runnable); ok {
			out = append(out, r)
		}
	}
	return out
}

// ExecuteAll runs every runnable plugin among specs concurrently. Bundler-only
// plugins are skipped. Every failure is returned, joined.
func ExecuteAll(ctx context.Context, reg *Registry, env Env, specs []Spec, action string) error {
	action, err := NormalizeAction(action)
	if err != nil {
		return err
	}
	all, err := Build(reg, env, specs)
	if err != nil {
		return err
	}
	return Run(ctx, RunnableOnly(all), action)
}

// Run executes plugins concurrently with no ordering between them.
func Run(ctx context.Context, runnables []Runnable, action string) error {
	errs := make([]error, len(runnables))
	var g errgroup.Group
	for i, p := range runnables {
		g.Go(func() error {
			start := time.Now()
			if err := p.Run(ctx, action); err != nil {
				errs[i] = fmt.Errorf("plugin %s (%s): %w", p.Name(), p.Kind(), err)
				return errs[i]
			}
			slog.Debug("plugin finished", "plugin", p.Name(), "action", action, "duration", time.Since(start))
			return nil
		})
	}
	if g.Wait() != nil {
		err := errors.Join(errs...)
		slog.Error("one or more plugins failed", "error", err)
		return err
	}
	slog.Info("plugins complete", "count", len(runnables), "action", action)
	return nil
}
