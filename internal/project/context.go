// Package project holds the per-invocation state every command works from.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lhdbsbz/svctool/hooks"
	"github.com/lhdbsbz/svctool/internal/bundler"
	"github.com/lhdbsbz/svctool/internal/config"
	"github.com/lhdbsbz/svctool/internal/manifest"
	"github.com/lhdbsbz/svctool/internal/plugins"
	"github.com/lhdbsbz/svctool/internal/proc"
	"github.com/spf13/afero"
)

// Context is built once per invocation and passed to every component.
type Context struct {
	Root      string
	Config    *config.Project
	Paths     config.Paths
	Providers *manifest.Resolver
	Procs     *proc.Manager
	Hooks     hooks.Hooks
	Fs        afero.Fs
	Plugins   *plugins.Registry
}

// Load builds the context for the project rooted at root (the working
// directory when empty). Config errors are returned as is.
func Load(root string, h hooks.Hooks) (*Context, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve project root: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	cfg, err := config.NewLoader(root).Get()
	if err != nil {
		return nil, err
	}
	return New(root, cfg, h), nil
}

// New assembles a context around an already loaded config.
func New(root string, cfg *config.Project, h hooks.Hooks) *Context {
	paths := config.Paths{Root: root}
	return &Context{
		Root:      root,
		Config:    cfg,
		Paths:     paths,
		Providers: manifest.NewResolver(cfg.Port, cfg.CDNLocation, paths.Res()),
		Procs:     proc.NewManager(),
		Hooks:     h,
		Fs:        afero.NewOsFs(),
		Plugins:   plugins.DefaultRegistry(),
	}
}

// PluginEnv describes the project to code-generation plugins.
func (c *Context) PluginEnv() plugins.Env {
	return plugins.Env{
		Root:           c.Root,
		ServiceName:    c.Config.Name,
		Port:           c.Config.Port,
		CDN:            c.Config.CDNLocation,
		ServiceVersion: os.Getenv("SERVICE_VERSION"),
		Fs:             c.Fs,
	}
}

// Targets loads the bundler targets from build.config.yaml.
func (c *Context) Targets() ([]bundler.Target, error) {
	return bundler.LoadConfig(c.Paths.BuildConfig())
}

// Rewriter returns a manifest rewriter for the given provider and runtime
// versions.
func (c *Context) Rewriter(providerVersion, runtimeVersion string) *manifest.Rewriter {
	return &manifest.Rewriter{
		ServiceName:     c.Config.Name,
		CDN:             c.Config.CDNLocation,
		Port:            c.Config.Port,
		Resolver:        c.Providers,
		ProviderVersion: providerVersion,
		RuntimeVersion:  runtimeVersion,
	}
}

// BundlerOptions are the options shared by every bundler invocation of the
// project.
func (c *Context) BundlerOptions(targets []bundler.Target) bundler.Options {
	return bundler.Options{
		Root:      c.Root,
		Targets:   targets,
		WatchDirs: []string{c.Paths.Src()},
		Procs:     c.Procs,
		Registry:  c.Plugins,
		PluginEnv: c.PluginEnv(),
	}
}

// Close stops every child process the context started.
func (c *Context) Close() {
	c.Procs.StopAll()
}
