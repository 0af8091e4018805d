package cli

import (
	"github.com/lhdbsbz/svctool/internal/bundler"
	"github.com/lhdbsbz/svctool/internal/plugins"
	"github.com/lhdbsbz/svctool/internal/tool"
	"github.com/spf13/cobra"
)

func (a *app) lintCommand(name string, fix bool) *cobra.Command {
	var cache bool
	short := "Lint the project sources"
	if fix {
		short = "Lint the project sources and fix what can be fixed"
	}
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exitCode(tool.Lint(cmd.Context(), a.projectRoot(), fix, cache))
		},
	}
	cmd.Flags().BoolVarP(&cache, "cache", "c", false, "Only lint changed files")
	return cmd
}

func (a *app) docsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Generate API documentation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exitCode(tool.Docs(cmd.Context(), a.projectRoot()))
		},
	}
}

func (a *app) pluginsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins [generate|clean]",
		Short: "Run the code generation plugins of every bundler target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := ""
			if len(args) == 1 {
				action = args[0]
			}
			pc, err := a.project()
			if err != nil {
				return err
			}
			targets, err := pc.Targets()
			if err != nil {
				return err
			}
			return plugins.ExecuteAll(cmd.Context(), pc.Plugins, pc.PluginEnv(), bundler.AllPlugins(targets), action)
		},
	}
}
