package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Formatter renders one kind of CLI text. With colour it paints the text;
// without colour it falls back to a plain-text decoration.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

// Sprint formats the arguments and returns the resulting string.
func (f Formatter) Sprint(a ...interface{}) string {
	return f.render(fmt.Sprint(a...))
}

// Sprintf formats according to a format specifier and returns the resulting string.
func (f Formatter) Sprintf(format string, a ...interface{}) string {
	return f.render(fmt.Sprintf(format, a...))
}

func (f Formatter) render(text string) string {
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// EnsureNewline ensures the string ends with a newline character.
func EnsureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

// noColor honours NO_COLOR (https://no-color.org/) and fatih/color's own
// terminal detection.
func noColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

var (
	// Code formats runnable commands. `backticks` without colour.
	Code = Formatter{color.New(color.FgYellow), "`", "`"}

	// Path formats local file paths and URLs.
	Path = Formatter{color.New(color.FgYellow), "", ""}

	// Flag formats CLI flags like --force.
	Flag = Formatter{color.New(color.FgYellow), "", ""}

	// Success formats success marks and messages.
	Success = Formatter{color.New(color.FgGreen), "", ""}

	// Error formats failure marks and messages.
	Error = Formatter{color.New(color.FgRed), "", ""}

	// Warning formats warnings such as key replacement.
	Warning = Formatter{color.New(color.FgYellow), "", ""}

	// Info formats hints and arrows.
	Info = Formatter{color.New(color.FgCyan), "", ""}

	// Highlight formats user values: file names, IDs, algorithms.
	// 'single quotes' without colour.
	Highlight = Formatter{color.New(color.FgCyan), "'", "'"}

	// Muted formats secondary detail. (parentheses) without colour.
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}
)

// Verdict renders a signature check result.
func Verdict(valid bool) string {
	if valid {
		return Success.Sprint("✓") + " signature valid"
	}
	return Error.Sprint("✗") + " signature invalid"
}
