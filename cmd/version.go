package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set via -ldflags at build time.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pinmark", version)
	},
}
