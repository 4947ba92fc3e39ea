package commands

import (
	"github.com/spf13/cobra"

	"github.com/tbxtools/tbx2cmake/internal/convert"
)

// newReadSconsCommand builds the scan-and-dump subcommand: it executes every
// build script and reports what was declared without writing anything.
func newReadSconsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "read-scons <module_dir>",
		Short: "Scan a distribution, emulate its build scripts and dump diagnostics",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("expected <module_dir>, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkModuleDir(args[0]); err != nil {
				return err
			}
			return convert.ReadScons(args[0], opts.BuildOptions, opts.Logger)
		},
	}
}
