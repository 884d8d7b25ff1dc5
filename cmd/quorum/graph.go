package main

import (
	"fmt"

	"github.com/aretw0/quorum/internal/cli"
	"github.com/aretw0/quorum/internal/presentation/graph"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Export the flow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the flow. With --trace, the nodes
visited by a stored run are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := flow.LoadFile(args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if instanceID, _ := cmd.Flags().GetString("trace"); instanceID != "" {
			engine, closeFn, err := cli.BuildEngine(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := engine.GetTrace(cmd.Context(), instanceID)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFromResult(res)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("trace", "", "Highlight the run of this instance id")
}
