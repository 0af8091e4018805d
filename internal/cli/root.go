// Package cli is the svctool command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lhdbsbz/svctool/hooks"
	"github.com/lhdbsbz/svctool/internal/project"
	"github.com/spf13/cobra"
)

// ExitError carries a child's exit code through cobra.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// exitCode turns a child exit code into a command result.
func exitCode(code int, err error) error {
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

type app struct {
	hooks   hooks.Hooks
	root    string // project root, the working directory when empty
	verbose bool
	out     io.Writer
}

func (a *app) project() (*project.Context, error) {
	return project.Load(a.root, a.hooks)
}

// projectRoot is the project root for commands that do not need its config.
func (a *app) projectRoot() string {
	if a.root != "" {
		if abs, err := filepath.Abs(a.root); err == nil {
			return abs
		}
		return a.root
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// NewRootCommand builds the command tree.
func NewRootCommand(h hooks.Hooks) *cobra.Command {
	a := &app{hooks: h, out: os.Stdout}
	root := &cobra.Command{
		Use:           "svctool",
		Short:         "Build, serve, test and package an OpenFin service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), a.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Log debug output")
	root.PersistentFlags().StringVar(&a.root, "root", "", "Project root (defaults to the working directory)")

	root.AddCommand(
		a.startCommand(),
		a.buildCommand(),
		a.zipCommand(),
		a.asarCommand(),
		a.channelsCommand(),
		a.lintCommand("check", false),
		a.lintCommand("fix", true),
		a.docsCommand(),
		a.testCommand(),
		a.pluginsCommand(),
	)
	return root
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, h hooks.Hooks) int {
	root := NewRootCommand(h)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	slog.Error("command failed", "error", err)
	return 1
}
