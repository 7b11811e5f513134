package telemetry

import (
	"os"
	"testing"
)

func TestNew_SeedsFromPriorRun(t *testing.T) {
	home := t.TempDir()
	r1, err := New(home)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r1.RecordExecution(Event{CommandID: "deploy", Duration: 1.5, Success: true})
	r1.RecordExecution(Event{CommandID: "deploy", Duration: 0.5, Success: false})
	if err := r1.Flush(home); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	snap, err := Load(home)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Counts["deploy"] != 2 {
		t.Fatalf("Counts[deploy] = %d, want 2", snap.Counts["deploy"])
	}
	if snap.FailureCount["deploy"] != 1 {
		t.Fatalf("FailureCount[deploy] = %d, want 1", snap.FailureCount["deploy"])
	}
	if snap.TotalSeconds["deploy"] != 2.0 {
		t.Fatalf("TotalSeconds[deploy] = %v, want 2.0", snap.TotalSeconds["deploy"])
	}

	r2, err := New(home)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	r2.RecordExecution(Event{CommandID: "deploy", Duration: 1.0, Success: true})
	if err := r2.Flush(home); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	snap2, err := Load(home)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap2.Counts["deploy"] != 3 {
		t.Fatalf("Counts[deploy] after second run = %d, want 3 (additive across runs)", snap2.Counts["deploy"])
	}
}

func TestLoad_MissingFileReturnsEmptySnapshot(t *testing.T) {
	home := t.TempDir()
	snap, err := Load(home)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Counts) != 0 || len(snap.FailureCount) != 0 || len(snap.TotalSeconds) != 0 {
		t.Fatalf("Load() on missing file = %+v, want empty maps", snap)
	}
}

func TestLoad_CorruptFileReturnsEmptySnapshot(t *testing.T) {
	home := t.TempDir()
	path := filePath(home)
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	snap, err := Load(home)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Counts) != 0 {
		t.Fatalf("Load() on corrupt file = %+v, want empty snapshot", snap)
	}
}
