package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionExtended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("%s %s\n", binaryName, versionInfo.Version)

		if versionExtended {
			cmd.Printf("  commit:     %s\n", versionInfo.Commit)
			cmd.Printf("  built:      %s\n", versionInfo.BuildDate)
			cmd.Printf("  go version: %s\n", runtime.Version())
			cmd.Printf("  platform:   %s\n", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))
		}
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionExtended, "extended", false, "show build details")
	rootCmd.AddCommand(versionCmd)
}
