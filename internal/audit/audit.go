// Package audit implements the append-only command-execution audit log: one
// compact JSON line per dispatched command in the kb home directory,
// queryable with jq/grep; no built-in command reads it. Adapted from kcli/internal/plugin's P2-3 plugin-execution audit
// log (same JSONL append/read shape), retargeted from plugin binary
// invocations onto command IDs so every dispatch — builtin or exec-loader —
// gets one entry, not only subprocess plugins.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/kblabs/kb/internal/config"
)

// Entry is the JSON record written to audit.jsonl for every dispatch.
type Entry struct {
	TS            string   `json:"ts"`
	CommandID     string   `json:"commandId"`
	Package       string   `json:"package,omitempty"`
	Args          []string `json:"args,omitempty"`
	ExitCode      int      `json:"exit"`
	DurationMS    int64    `json:"durationMs"`
	CorrelationID string   `json:"correlationId,omitempty"`
	Success       bool     `json:"success"`
}

func logPath() (string, error) {
	if p := os.Getenv("KB_AUDIT_LOG"); p != "" {
		return p, nil
	}
	home, err := config.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "audit.jsonl"), nil
}

// Append appends a single JSON line to the audit log. Failures are
// swallowed so that a full or unwritable disk never blocks dispatch.
func Append(entry Entry) {
	_ = appendEntry(entry)
}

func appendEntry(entry Entry) error {
	path, err := logPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(line)
	return err
}

// Read reads and parses every entry from the audit log, skipping invalid
// lines, returning an empty slice when the file does not exist.
func Read() ([]Entry, error) {
	path, err := logPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	var entries []Entry
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func splitLines(b []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, c := range b {
		if c == '\n' {
			if i > start {
				out = append(out, b[start:i])
			}
			start = i + 1
		}
	}
	if start < len(b) {
		out = append(out, b[start:])
	}
	return out
}

// New builds an Entry for a completed dispatch.
func New(commandID, pkg string, args []string, exitCode int, start time.Time, correlationID string, success bool) Entry {
	return Entry{
		TS:            time.Now().UTC().Format(time.RFC3339),
		CommandID:     commandID,
		Package:       pkg,
		Args:          args,
		ExitCode:      exitCode,
		DurationMS:    time.Since(start).Milliseconds(),
		CorrelationID: correlationID,
		Success:       success,
	}
}
