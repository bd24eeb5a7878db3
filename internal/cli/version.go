package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/pvannier/recall/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		version := buildinfo.Version
		if version == "" {
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				version = info.Main.Version
			} else {
				version = "dev"
			}
		}
		fmt.Printf("rcl %s", version)
		if buildinfo.Commit != "" {
			fmt.Printf(" (%s)", buildinfo.Commit)
		}
		if buildinfo.Date != "" {
			fmt.Printf(" built %s", buildinfo.Date)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
