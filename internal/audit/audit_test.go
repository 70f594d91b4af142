package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecord_CreatesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	log := New(logPath)

	log.Record(Entry{User: "user-1", Operation: OpFileUpload, FileID: "f1"})

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Fatalf("Audit log file was not created")
	}
}

func TestRecord_AppendsEntries(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	log := New(logPath)

	log.Record(Entry{User: "alice", Operation: OpKeySync})
	log.Record(Entry{User: "bob", Operation: OpFileUpload})
	log.Record(Entry{User: "carol", Operation: OpFileVerify})

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Errorf("Expected 3 lines, got %d", len(lines))
	}
}

func TestRecord_FillsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	log := New(logPath)
	log.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	log.Record(Entry{User: "alice", Operation: OpKeySync, Algorithm: "ECC"})

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("Entry is not valid JSON: %v", err)
	}
	if entry.Timestamp != "2026-03-01T12:00:00.000000Z" {
		t.Errorf("Expected timestamp 2026-03-01T12:00:00.000000Z, got %s", entry.Timestamp)
	}
	if entry.Outcome != OutcomeOK {
		t.Errorf("Expected outcome %q, got %q", OutcomeOK, entry.Outcome)
	}
	if entry.Algorithm != "ECC" {
		t.Errorf("Expected algorithm ECC, got %s", entry.Algorithm)
	}
}

func TestRecord_DisabledLogIsNoop(t *testing.T) {
	var nilLog *Log
	nilLog.Record(Entry{User: "alice", Operation: OpKeySync})

	New("").Record(Entry{User: "alice", Operation: OpKeySync})

	if nilLog.Path() != "" {
		t.Errorf("Expected empty path for nil log, got %q", nilLog.Path())
	}
}

func TestReadEntries_MissingFile(t *testing.T) {
	entries, err := ReadEntries(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected 0 entries, got %d", len(entries))
	}
}

func TestParseEntries_SkipsMalformedLines(t *testing.T) {
	data := []byte(`{"ts":"2026-01-01T00:00:00.000000Z","user":"a","op":"key.sync","outcome":"ok"}
not json
{"ts":"2026-01-02T00:00:00.000000Z","user":"b","op":"file.upload","outcome":"SIGNATURE_INVALID"}

`)
	entries, err := ParseEntries(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[1].Outcome != "SIGNATURE_INVALID" {
		t.Errorf("Expected outcome SIGNATURE_INVALID, got %s", entries[1].Outcome)
	}
}

func sampleEntries() []Entry {
	return []Entry{
		{Timestamp: "2026-01-01T10:00:00.000000Z", User: "alice", Operation: OpKeySync, Outcome: OutcomeOK},
		{Timestamp: "2026-01-02T10:00:00.000000Z", User: "bob", Operation: OpFileUpload, Outcome: OutcomeOK},
		{Timestamp: "2026-01-03T10:00:00.000000Z", User: "alice", Operation: OpFileUpload, Outcome: "SIGNATURE_INVALID"},
		{Timestamp: "2026-01-04T10:00:00.000000Z", User: "Alice", Operation: OpFileDownload, Outcome: OutcomeOK},
	}
}

func TestFilter_ByUser(t *testing.T) {
	got := Filter{User: "alice"}.Apply(sampleEntries())
	if len(got) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(got))
	}
}

func TestFilter_ByOperations(t *testing.T) {
	got := Filter{Operations: []string{" FILE.UPLOAD ", "key.sync"}}.Apply(sampleEntries())
	if len(got) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(got))
	}
}

func TestFilter_FailuresOnly(t *testing.T) {
	got := Filter{FailuresOnly: true}.Apply(sampleEntries())
	if len(got) != 1 || got[0].Outcome != "SIGNATURE_INVALID" {
		t.Errorf("Expected the single failed entry, got %+v", got)
	}
}

func TestFilter_DateRange(t *testing.T) {
	f := Filter{
		Since: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2026, 1, 3, 23, 59, 59, 0, time.UTC),
	}
	got := f.Apply(sampleEntries())
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(got))
	}
	if got[0].User != "bob" {
		t.Errorf("Expected first entry from bob, got %s", got[0].User)
	}
}

func TestFilter_LimitKeepsMostRecent(t *testing.T) {
	got := Filter{Limit: 2}.Apply(sampleEntries())
	if len(got) != 2 || got[1].Operation != OpFileDownload {
		t.Errorf("Expected last two entries, got %+v", got)
	}

	got = Filter{Limit: 1, Reverse: true}.Apply(sampleEntries())
	if len(got) != 1 || got[0].Operation != OpFileDownload {
		t.Errorf("Expected most recent entry first, got %+v", got)
	}
}

func TestFilter_DoesNotModifyInput(t *testing.T) {
	entries := sampleEntries()
	_ = Filter{Reverse: true}.Apply(entries)
	if entries[0].User != "alice" {
		t.Errorf("Expected input order preserved, got first user %s", entries[0].User)
	}
}
