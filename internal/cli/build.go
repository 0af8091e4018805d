package cli

import (
	"github.com/lhdbsbz/svctool/internal/bundler"
	"github.com/spf13/cobra"
)

func (a *app) buildCommand() *cobra.Command {
	mode := "production"
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every bundler target into dist/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := a.project()
			if err != nil {
				return err
			}
			defer pc.Close()

			targets, err := pc.Targets()
			if err != nil {
				return err
			}
			opts := pc.BundlerOptions(targets)
			opts.Mode = mode
			opts.WriteToDisk = true
			b, err := bundler.Build(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return b.Close()
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", mode, "Webpack mode")
	return cmd
}
