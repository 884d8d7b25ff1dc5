package main

import (
	"fmt"

	"github.com/aretw0/quorum"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of quorum",
	Args:  cobra.NoArgs,
	// Skip the settings load so version works with a broken environment.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quorum version %s\n", quorum.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
