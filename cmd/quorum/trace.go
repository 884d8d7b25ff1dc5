package main

import (
	"github.com/aretw0/quorum/internal/cli"
	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace <instance-id>",
	Short: "Print the stored trace of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, closeFn, err := cli.BuildEngine(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := engine.GetTrace(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	addOutputFlags(traceCmd)
}
