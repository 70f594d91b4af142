package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PolarWolf314/kaitiaki/internal/audit"
	"github.com/PolarWolf314/kaitiaki/internal/configs"

	"github.com/spf13/cobra"
)

// setupTestEnvironment points the client settings at temporary directories.
func setupTestEnvironment(t *testing.T) {
	t.Helper()
	original := configs.ClientKaitiakiSettings
	configs.ClientKaitiakiSettings = &configs.ClientSettings{
		ConfigPath:  filepath.Join(t.TempDir(), "config"),
		CustodyPath: filepath.Join(t.TempDir(), "custody"),
	}
	t.Cleanup(func() {
		configs.ClientKaitiakiSettings = original
		ResetConfigState()
		ResetKeysState()
		ResetFilesState()
		ResetServerState()
	})
}

// captureOutput captures stdout during function execution.
func captureOutput(fn func() error) (string, error) {
	original := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}
	os.Stdout = w

	done := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	runErr := fn()
	w.Close()
	os.Stdout = original
	return <-done, runErr
}

func runCommand(t *testing.T, c *cobra.Command, args ...string) string {
	t.Helper()
	c.SetArgs(args)
	output, err := captureOutput(c.Execute)
	if err != nil {
		t.Fatalf("Command %v failed: %v\nOutput: %s", args, err, output)
	}
	return output
}

func TestConfigSetAlgorithmAndShow(t *testing.T) {
	setupTestEnvironment(t)

	output := runCommand(t, GetConfigCmd(), "set-algorithm", "ecc")
	if !strings.Contains(output, "ECC") {
		t.Errorf("Expected confirmation to mention ECC, got: %s", output)
	}

	output = runCommand(t, GetConfigCmd(), "show")
	if !strings.Contains(output, "ECC") {
		t.Errorf("Expected show to list ECC, got: %s", output)
	}
	if !strings.Contains(output, "not set") {
		t.Errorf("Expected unset server to be reported, got: %s", output)
	}
}

func TestConfigSetAlgorithm_Unsupported(t *testing.T) {
	setupTestEnvironment(t)

	output := runCommand(t, GetConfigCmd(), "set-algorithm", "DSA")
	if !strings.Contains(output, "Unsupported algorithm") {
		t.Errorf("Expected unsupported algorithm message, got: %s", output)
	}
}

func TestConfigSetToken_Argument(t *testing.T) {
	setupTestEnvironment(t)

	output := runCommand(t, GetConfigCmd(), "set-token", "abcdefghijkl")
	if !strings.Contains(output, "Token saved") {
		t.Errorf("Expected token saved message, got: %s", output)
	}

	output = runCommand(t, GetConfigCmd(), "show")
	if !strings.Contains(output, "********ijkl") {
		t.Errorf("Expected masked token, got: %s", output)
	}
	if strings.Contains(output, "abcdefghijkl") {
		t.Errorf("Expected token to be masked, got: %s", output)
	}
}

func TestKeysGenerate_NotConfigured(t *testing.T) {
	setupTestEnvironment(t)

	output := runCommand(t, GetKeysCmd(), "generate")
	if !strings.Contains(output, "not configured") {
		t.Errorf("Expected not configured message, got: %s", output)
	}
}

func TestFilesUpload_DryRun(t *testing.T) {
	setupTestEnvironment(t)

	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0600); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	output := runCommand(t, GetFilesCmd(), "upload", "--dry-run", dir)
	for _, name := range []string{"a.txt", "b.txt"} {
		if !strings.Contains(output, name) {
			t.Errorf("Expected dry run to list %s, got: %s", name, output)
		}
	}
	if !strings.Contains(output, "Would upload 2 file(s)") {
		t.Errorf("Expected file count, got: %s", output)
	}
}

func TestServerKeygen_Command(t *testing.T) {
	setupTestEnvironment(t)
	dir := t.TempDir()

	output := runCommand(t, GetServerCmd(), "keygen", "--out", dir)
	if !strings.Contains(output, "Server key pair written") {
		t.Errorf("Expected success message, got: %s", output)
	}
	for _, name := range []string{"server_private.pem", "server_public.pem"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}

	output = runCommand(t, GetServerCmd(), "keygen", "--out", dir)
	if !strings.Contains(output, "already exists") {
		t.Errorf("Expected existing key pair to be refused, got: %s", output)
	}
}

func TestServerLog_JSON(t *testing.T) {
	setupTestEnvironment(t)

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log := audit.New(path)
	log.Record(audit.Entry{User: "alice", Operation: audit.OpKeySync})
	log.Record(audit.Entry{User: "alice", Operation: audit.OpFileUpload, FileName: "report.pdf"})
	log.Record(audit.Entry{User: "bob", Operation: audit.OpFileUpload, Outcome: "DIGEST_MISMATCH"})

	output := runCommand(t, GetServerCmd(), "log", "--file", path, "--json", "--operation", audit.OpFileUpload)

	var entries []audit.Entry
	if err := json.Unmarshal([]byte(output), &entries); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nOutput: %s", err, output)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 upload entries, got %d", len(entries))
	}
	if entries[0].FileName != "report.pdf" {
		t.Errorf("Expected first entry for report.pdf, got %q", entries[0].FileName)
	}
}

func TestServerLog_Missing(t *testing.T) {
	setupTestEnvironment(t)

	output := runCommand(t, GetServerCmd(), "log", "--file", filepath.Join(t.TempDir(), "missing.jsonl"))
	if !strings.Contains(output, "No audit log found") {
		t.Errorf("Expected missing log message, got: %s", output)
	}
}
