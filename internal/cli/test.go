package cli

import (
	"strings"

	"github.com/lhdbsbz/svctool/internal/testrunner"
	"github.com/spf13/cobra"
)

func (a *app) testCommand() *cobra.Command {
	var (
		opts      testrunner.Options
		fileNames string
	)
	cmd := &cobra.Command{
		Use:       "test <unit|int>",
		Short:     "Run the unit or integration test suite",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(testrunner.Unit), string(testrunner.Integration)},
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := testrunner.ParseType(args[0])
			if err != nil {
				return err
			}
			opts.Type = typ
			if fileNames != "" {
				opts.FileNames = strings.Split(fileNames, ",")
			}

			pc, err := a.project()
			if err != nil {
				return err
			}
			defer pc.Close()
			return exitCode(testrunner.New(pc).Run(cmd.Context(), opts))
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.RuntimeVersion, "runtime", "r", "", "Runtime version to test against")
	f.StringVarP(&opts.ExtraArgs, "extra-args", "e", "", "Extra arguments passed to jest")
	f.BoolVarP(&opts.Static, "static", "s", false, "Serve pre-built files instead of building")
	f.BoolVarP(&opts.NoColor, "no-color", "n", false, "Disable coloured jest output")
	f.StringVarP(&opts.Filter, "filter", "f", "", "Only run tests whose names match this pattern")
	f.StringVarP(&fileNames, "file-names", "x", "", "Comma separated test files to run, without suffix")
	f.BoolVarP(&opts.CI, "ci", "c", false, "Run jest in CI mode")
	return cmd
}
