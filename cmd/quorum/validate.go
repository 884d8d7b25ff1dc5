package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check flow documents for structural errors",
	Long: `Loads each document and reports every violation: dangling references,
cycles, malformed conditions, merge lanes that overlap or escape, and so on.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		invalid := 0
		for _, path := range args {
			g, err := flow.LoadFile(path)
			if err == nil {
				fmt.Fprintf(out, "%s: %s is valid (%d nodes)\n", path, g.Ref(), g.Len())
				continue
			}

			invalid++
			var verr *domain.GraphValidationError
			if !errors.As(err, &verr) {
				fmt.Fprintf(out, "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(out, "%s: %d violation(s)\n", path, len(verr.Violations))
			for _, v := range verr.Violations {
				fmt.Fprintf(out, "  - %s\n", v)
			}
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d flow(s) invalid", invalid, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
