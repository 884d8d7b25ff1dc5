package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/quorum/internal/presentation/tui"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	cmd.Flags().Bool("no-color", false, "Print plain markdown even on a terminal")
}

// printResult writes res as JSON or as a markdown report, styled only when
// stdout is a terminal.
func printResult(cmd *cobra.Command, res *domain.ExecutionResult) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	styled, width := terminal(out)
	render := tui.NewRenderer(styled && !noColor, width)

	text, err := render(tui.TraceMarkdown(res))
	if err != nil {
		return err
	}
	fmt.Fprint(out, text)
	if styled && !noColor {
		fmt.Fprintf(out, "\n%s\n", tui.StatusLabel(out, res.Status))
	}
	return nil
}

func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return true, 0
	}
	return true, width
}
