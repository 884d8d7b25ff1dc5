package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner writes the quorum banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct{ text, color string }{
		{`   __ _ _   _  ___  _ __ _   _ _ __ ___  `, "#818cf8"},
		{`  / _' | | | |/ _ \| '__| | | | '_ ' _ \ `, "#a78bfa"},
		{` | (_| | |_| | (_) | |  | |_| | | | | | |`, "#c084fc"},
		{`  \__, |\__,_|\___/|_|   \__,_|_| |_| |_|`, "#e879f9"},
		{`     |_|                                 `, "#f472b6"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// StatusLabel colours a run status for w's color profile.
func StatusLabel(w io.Writer, status domain.Status) string {
	out := termenv.NewOutput(w)
	s := out.String(string(status)).Bold()
	switch status {
	case domain.StatusCompleted:
		s = s.Foreground(out.Color("#22c55e"))
	case domain.StatusFailed:
		s = s.Foreground(out.Color("#ef4444"))
	}
	return s.String()
}
