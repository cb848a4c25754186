package main

import (
	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/tickervault/tickervault/internal/cmd"
)

// Build information, injected via -ldflags at release time.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		cmd.ExitWithCodeStderr(foundry.ExitFailure, "command failed", err)
	}
}
