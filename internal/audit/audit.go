package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TimestampFormat is the layout used for Entry.Timestamp.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// Operation names recorded by the server.
const (
	OpKeySync      = "key.sync"
	OpFileUpload   = "file.upload"
	OpFileVerify   = "file.verify"
	OpFileDownload = "file.download"
)

// OutcomeOK marks a successful operation. Failures record the error code instead.
const OutcomeOK = "ok"

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`
	User      string `json:"user"`
	Operation string `json:"op"`
	Outcome   string `json:"outcome"`

	// Optional fields depending on operation.
	FileID    string `json:"file_id,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Signed    bool   `json:"signed,omitempty"`
	Valid     *bool  `json:"valid,omitempty"` // For verify.
}

// Time parses the entry timestamp. The zero time is returned for unparsable values.
func (e Entry) Time() time.Time {
	t, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		t, err = time.Parse(time.RFC3339, e.Timestamp)
	}
	if err != nil {
		return time.Time{}
	}
	return t
}

// Log appends entries to a JSON Lines file.
// A nil *Log or one with an empty path discards entries.
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New returns a Log writing to path.
func New(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the path to the audit log file.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Record appends an entry to the audit log.
// Recording is best-effort: operations must not fail because auditing did.
func (l *Log) Record(entry Entry) {
	if l == nil || l.path == "" {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = l.now().UTC().Format(TimestampFormat)
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeOK
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.Write(append(data, '\n'))
}

// ReadEntries reads all entries from the audit log at path.
// Returns an empty slice if the log doesn't exist.
func ReadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Filter selects a subset of entries.
type Filter struct {
	// User matches entries by user ID (case-insensitive).
	User string

	// Operations matches any of the listed operation names.
	Operations []string

	// Since and Until bound the entry timestamp, inclusive. Zero means unbounded.
	Since time.Time
	Until time.Time

	// FailuresOnly keeps entries whose outcome is not OutcomeOK.
	FailuresOnly bool

	// Reverse orders entries from most recent to oldest.
	Reverse bool

	// Limit keeps at most this many of the most recent entries. 0 means no limit.
	Limit int
}

// Apply returns the entries matching f. The input slice is not modified.
func (f Filter) Apply(entries []Entry) []Entry {
	ops := make(map[string]bool, len(f.Operations))
	for _, op := range f.Operations {
		if op = strings.ToLower(strings.TrimSpace(op)); op != "" {
			ops[op] = true
		}
	}

	var result []Entry
	for _, e := range entries {
		if f.User != "" && !strings.EqualFold(e.User, f.User) {
			continue
		}
		if len(ops) > 0 && !ops[strings.ToLower(e.Operation)] {
			continue
		}
		if f.FailuresOnly && e.Outcome == OutcomeOK {
			continue
		}
		if !f.Since.IsZero() || !f.Until.IsZero() {
			t := e.Time()
			if t.IsZero() {
				continue
			}
			if !f.Since.IsZero() && t.Before(f.Since) {
				continue
			}
			if !f.Until.IsZero() && t.After(f.Until) {
				continue
			}
		}
		result = append(result, e)
	}

	if f.Reverse {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}

	if f.Limit > 0 && len(result) > f.Limit {
		if f.Reverse {
			result = result[:f.Limit]
		} else {
			result = result[len(result)-f.Limit:]
		}
	}

	return result
}
