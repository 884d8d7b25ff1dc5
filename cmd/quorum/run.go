package main

import (
	"fmt"
	"os"

	"github.com/aretw0/quorum"
	"github.com/aretw0/quorum/internal/cli"
	"github.com/aretw0/quorum/internal/presentation/tui"
	"github.com/aretw0/quorum/internal/telemetry"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a flow once and print its trace",
	Long: `Loads and validates the flow, runs one instance against the context given
with --set, stores the trace in the configured store and prints a report.

Values passed with --set are typed: 12000 is an integer, 1.5 a float, true a
boolean and anything else a string. Quote a value ("42") to keep it a string.`,
	Example: `  quorum run expense.yaml --set amount=12000 --set urgency=high
  quorum run expense.hcl --instance exp-7 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sets, _ := cmd.Flags().GetStringArray("set")
		instanceID, _ := cmd.Flags().GetString("instance")
		banner, _ := cmd.Flags().GetBool("banner")

		fields, err := cli.ParseAssignments(sets)
		if err != nil {
			return err
		}
		g, err := flow.LoadFile(args[0])
		if err != nil {
			return err
		}

		shutdown, err := telemetry.Setup(cfg.TraceExporter, quorum.Version, os.Stderr)
		if err != nil {
			return err
		}
		defer shutdown(cmd.Context())

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		engine, closeFn, err := cli.BuildEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := engine.Run(ctx, g, instanceID, fields)
		if err != nil && res == nil {
			return err
		}
		if err != nil {
			logger.Error("trace not persisted", "instance_id", res.InstanceID, "error", err)
		}

		if banner {
			tui.PrintBanner(cmd.OutOrStdout())
		}
		if perr := printResult(cmd, res); perr != nil {
			return perr
		}
		if sig := ctx.Signal(); sig != nil {
			cli.PrintSystemMessage(cmd.ErrOrStderr(), "Interrupted by %s.", sig)
		}
		if res.Status == domain.StatusFailed {
			return fmt.Errorf("run %s failed: %s", res.InstanceID, res.Error.Kind)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArray("set", nil, "Context field as key=value (repeatable)")
	runCmd.Flags().String("instance", "", "Instance id (generated when empty)")
	runCmd.Flags().Bool("banner", false, "Print the banner before the report")
	addOutputFlags(runCmd)
}
