// Package tui renders run reports for terminals.
package tui

import (
	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer when styled is true and a
// pass-through renderer otherwise (pipes, files, CI logs).
func NewRenderer(styled bool, width int) Renderer {
	if !styled {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}
