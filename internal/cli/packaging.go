package cli

import (
	"fmt"

	"github.com/lhdbsbz/svctool/internal/manifest"
	"github.com/lhdbsbz/svctool/internal/packaging"
	"github.com/spf13/cobra"
)

func (a *app) zipCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "zip",
		Short: "Archive the provider into dist/provider/<name>-service.zip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := a.project()
			if err != nil {
				return err
			}
			res, err := packaging.Zip(pc.Fs, pc.Paths, pc.Config.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Zip file created at '%s'\n%d total bytes written\n", res.Path, res.Bytes)
			return nil
		},
	}
}

func (a *app) asarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "asar",
		Short: "Package and sign the provider as dist/asar/<name>.asar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := a.project()
			if err != nil {
				return err
			}
			signer := packaging.NewSigner(pc.Config.SignCommand, pc.Root)
			res, err := packaging.Asar(cmd.Context(), pc.Fs, pc.Paths, pc.Config.Name, signer)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Asar file created at '%s'\n", res.Path)
			return nil
		},
	}
}

func (a *app) channelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "Write a provider manifest per runtime channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := a.project()
			if err != nil {
				return err
			}
			written, err := manifest.WriteRuntimeChannels(pc.Fs, pc.Paths.Dist("provider"), pc.Paths.Res("provider"))
			if err != nil {
				return err
			}
			for _, p := range written {
				fmt.Fprintln(a.out, p)
			}
			return nil
		},
	}
}
