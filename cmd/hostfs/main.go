package main

import (
	"context"
	"os"

	"hostfs/internal/cli"
	"hostfs/internal/logging"
)

// Set by the linker at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)

	if err := cli.Execute(context.Background()); err != nil {
		logging.GetLogger().Debug("Exiting with error: %v", err)
		os.Exit(1)
	}
}
