// Command lsmkv-cli is a thin wrapper over the lsmkv store: an interactive
// shell for exploratory use, and one-shot subcommands for scripting.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "lsmkv-cli [command]",
	Short: "lsmkv-cli inspects and drives an lsmkv data directory",
	Long:  ``,
}

func main() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		shellCmd,
		putCmd,
		getCmd,
		deleteCmd,
		compactCmd,
		statsCmd,
		versionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
