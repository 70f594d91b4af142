package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestFormatterWithColor(t *testing.T) {
	os.Unsetenv("NO_COLOR")
	color.NoColor = false
	defer func() { color.NoColor = true }()

	result := Code.Sprint("kaitiaki keys generate")
	if strings.Contains(result, "`") {
		t.Errorf("Code.Sprint should not contain backticks when color is enabled, got: %s", result)
	}
	if !strings.Contains(result, "\x1b[") {
		t.Errorf("Code.Sprint should contain ANSI escape codes when color is enabled, got: %s", result)
	}
}

func TestFormatterWithNoColor(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	tests := []struct {
		name      string
		formatter Formatter
		input     string
		want      string
	}{
		{"Code adds backticks", Code, "kaitiaki files upload", "`kaitiaki files upload`"},
		{"Path has no decoration", Path, "report.pdf", "report.pdf"},
		{"Flag has no decoration", Flag, "--force", "--force"},
		{"Success has no decoration", Success, "✓", "✓"},
		{"Error has no decoration", Error, "✗", "✗"},
		{"Highlight adds quotes", Highlight, "ECC", "'ECC'"},
		{"Muted adds parentheses", Muted, "unsigned", "(unsigned)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.formatter.Sprint(tt.input)
			if got != tt.want {
				t.Errorf("%s.Sprint(%q) = %q, want %q", tt.name, tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatterSprintf(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	result := Code.Sprintf("kaitiaki keys generate --algorithm %s", "ECC")
	want := "`kaitiaki keys generate --algorithm ECC`"
	if result != want {
		t.Errorf("Code.Sprintf() = %q, want %q", result, want)
	}
}

func TestVerdict(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	if got := Verdict(true); got != "✓ signature valid" {
		t.Errorf("Expected valid verdict, got %q", got)
	}
	if got := Verdict(false); got != "✗ signature invalid" {
		t.Errorf("Expected invalid verdict, got %q", got)
	}
}

func TestEnsureNewline(t *testing.T) {
	if got := EnsureNewline("done"); got != "done\n" {
		t.Errorf("Expected trailing newline, got %q", got)
	}
	if got := EnsureNewline("done\n"); got != "done\n" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
}
