package output

import (
	"fmt"
	"io"
	"os"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// sprintf is the signature every color function shares
type sprintf func(format string, a ...interface{}) string

// ColorScheme holds the color functions used by the table formatter
type ColorScheme struct {
	EnvName  sprintf
	Success  sprintf
	Error    sprintf
	Warning  sprintf
	Header   sprintf
	Duration sprintf

	// Disabled is set when every function is a plain fmt.Sprintf
	Disabled bool
}

// NewColorScheme returns a colored scheme only when w is a terminal and
// noColor is false.
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	return newColorScheme(!noColor && isTTY(w))
}

func newColorScheme(enabled bool) *ColorScheme {
	if !enabled {
		return &ColorScheme{
			EnvName:  fmt.Sprintf,
			Success:  fmt.Sprintf,
			Error:    fmt.Sprintf,
			Warning:  fmt.Sprintf,
			Header:   fmt.Sprintf,
			Duration: fmt.Sprintf,
			Disabled: true,
		}
	}

	// color.NoColor is decided from stdout at init; w was checked already
	paint := func(attrs ...color.Attribute) sprintf {
		c := color.New(attrs...)
		c.EnableColor()
		return c.Sprintf
	}

	return &ColorScheme{
		EnvName:  paint(color.FgCyan, color.Bold),
		Success:  paint(color.FgGreen),
		Error:    paint(color.FgRed, color.Bold),
		Warning:  paint(color.FgYellow),
		Header:   paint(color.FgWhite, color.Bold),
		Duration: paint(color.FgBlue),
	}
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// StatusColor picks Error for failures and Success otherwise
func (cs *ColorScheme) StatusColor(failed bool) sprintf {
	if failed {
		return cs.Error
	}
	return cs.Success
}

// Outcome renders a batch outcome: partial in yellow, all_failed in red
func (cs *ColorScheme) Outcome(o batch.Outcome) string {
	switch o {
	case batch.OutcomePartial:
		return cs.Warning("%s", o)
	case batch.OutcomeAllFailed:
		return cs.Error("%s", o)
	default:
		return string(o)
	}
}
