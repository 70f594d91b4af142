package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestLoggerRespectsVerbosity(t *testing.T) {
	color.NoColor = true

	var out, errOut bytes.Buffer
	l := Logger{Out: &out, Err: &errOut}

	l.Infof("info %d", 1)
	l.Debugf("debug %d", 2)
	l.Warnf("warn %d", 3)

	if out.Len() != 0 || errOut.Len() != 0 {
		t.Fatalf("Expected no output without verbose or debug, got %q / %q", out.String(), errOut.String())
	}

	l.Errorf("boom")
	if !strings.Contains(errOut.String(), "[error] boom") {
		t.Errorf("Expected error output, got %q", errOut.String())
	}
}

func TestLoggerDebugShowsEverything(t *testing.T) {
	color.NoColor = true

	var out, errOut bytes.Buffer
	l := Logger{Debug: true, Out: &out, Err: &errOut}

	l.Infof("hello")
	l.Debugf("details")
	l.Warnf("careful")

	if !strings.Contains(out.String(), "[info] hello") {
		t.Errorf("Expected info line, got %q", out.String())
	}
	if !strings.Contains(out.String(), "[debug] details") {
		t.Errorf("Expected debug line, got %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[warn] careful") {
		t.Errorf("Expected warn line, got %q", errOut.String())
	}
}

func TestErrorfAndReturn(t *testing.T) {
	color.NoColor = true

	var errOut bytes.Buffer
	l := Logger{Err: &errOut}

	err := l.ErrorfAndReturn("failed to load %s", "config")
	if err == nil || err.Error() != "failed to load config" {
		t.Fatalf("Expected returned error 'failed to load config', got %v", err)
	}
	if !strings.Contains(errOut.String(), "failed to load config") {
		t.Errorf("Expected logged error, got %q", errOut.String())
	}
}
