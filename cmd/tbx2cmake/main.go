package main

import (
	"os"

	"github.com/tbxtools/tbx2cmake/cmd/tbx2cmake/commands"
	"github.com/tbxtools/tbx2cmake/internal/core"
)

// Set at build time via -ldflags.
var (
	version = core.DefaultBuildInfo.Version
	commit  = core.DefaultBuildInfo.Commit
	date    = core.DefaultBuildInfo.Date
)

func main() {
	info := core.BuildInfo{Version: version, Commit: commit, Date: date}
	os.Exit(commands.Execute(info))
}
