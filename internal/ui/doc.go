// Package ui provides semantic text formatting for CLI output.
//
// Formatters colour their text when the terminal supports it and fall back
// to plain decorations when NO_COLOR is set or colour is unavailable:
//
//	ui.Code.Sprint("kaitiaki keys generate")  // `backticks`
//	ui.Highlight.Sprint("report.pdf")         // 'single quotes'
//	ui.Muted.Sprint("unsigned")               // (parentheses)
//	ui.Success.Sprint("✓")                    // no decoration
package ui
