package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-pack/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the wasm-pack version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
