package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbxtools/tbx2cmake/internal/core"
)

func newVersionCommand(info core.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tbx2cmake %s (commit: %s, built at: %s)\n", info.Version, info.Commit, info.Date)
		},
	}
}
