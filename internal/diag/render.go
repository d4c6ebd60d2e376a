package diag

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Render writes a one-line summary of err followed by an optional source
// excerpt pointing at its position. Colors are only emitted when w is a
// terminal.
func Render(w io.Writer, err *Error) {
	bold, reset := "", ""
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bold, reset = "\x1b[1m", "\x1b[0m"
	}
	fmt.Fprintf(w, "%s%s%s: %s\n", bold, err.K, reset, err.Msg)
	fmt.Fprintf(w, "  --> %s\n", err.Pos)
	if err.Excerpt != "" {
		fmt.Fprintf(w, "   |\n")
		fmt.Fprintf(w, "%3d| %s\n", err.Pos.Line, err.Excerpt)
		fmt.Fprintf(w, "   | %*s^\n", err.Pos.Column-1, "")
	}
}
