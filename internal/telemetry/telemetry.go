// Package telemetry accumulates per-command execution counters and
// durations (spec.md §4.H), backed by prometheus/client_golang the way
// spec.md's "counts and percentile-free duration histograms" phrasing maps
// directly onto Counter/Histogram, with a JSON snapshot persisted across
// runs (SPEC_FULL.md §B.4).
package telemetry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Event is one recorded command execution.
type Event struct {
	CommandID string
	Duration  float64 // seconds
	Success   bool
}

// Recorder is the interface the Dispatcher calls at the end of every run
// (spec.md §4.F.6.d/e).
type Recorder interface {
	RecordExecution(e Event)
}

// Snapshot is the persisted cross-run accumulation, additive across
// invocations per SPEC_FULL.md §B.4.
type Snapshot struct {
	Counts       map[string]int     `json:"counts"`
	FailureCount map[string]int     `json:"failureCount"`
	TotalSeconds map[string]float64 `json:"totalSeconds"`
}

func emptySnapshot() *Snapshot {
	return &Snapshot{Counts: map[string]int{}, FailureCount: map[string]int{}, TotalSeconds: map[string]float64{}}
}

// PromRecorder is the process-lifetime Recorder implementation. Counters
// live in an isolated prometheus.Registry rather than the global default,
// so repeated construction in tests never panics on duplicate
// registration.
type PromRecorder struct {
	mu        sync.Mutex
	registry  *prometheus.Registry
	execTotal *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	snapshot  *Snapshot
}

// New constructs a PromRecorder, seeding its in-memory snapshot from the
// previous run's persisted file when present.
func New(homeDir string) (*PromRecorder, error) {
	reg := prometheus.NewRegistry()
	r := &PromRecorder{
		registry: reg,
		execTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kb_command_executions_total",
			Help: "Total command executions by command id and outcome.",
		}, []string{"command_id", "success"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kb_command_duration_seconds",
			Help:    "Command execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command_id"}),
	}
	reg.MustRegister(r.execTotal, r.duration)

	prior, err := Load(homeDir)
	if err != nil {
		return nil, err
	}
	r.snapshot = prior
	return r, nil
}

// RecordExecution implements Recorder: updates the Prometheus vectors and
// the in-memory snapshot that Flush later persists.
func (r *PromRecorder) RecordExecution(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	success := "true"
	if !e.Success {
		success = "false"
	}
	r.execTotal.WithLabelValues(e.CommandID, success).Inc()
	r.duration.WithLabelValues(e.CommandID).Observe(e.Duration)

	r.snapshot.Counts[e.CommandID]++
	if !e.Success {
		r.snapshot.FailureCount[e.CommandID]++
	}
	r.snapshot.TotalSeconds[e.CommandID] += e.Duration
}

// filePath returns <homeDir>/telemetry.json.
func filePath(homeDir string) string {
	return filepath.Join(homeDir, "telemetry.json")
}

// Load reads the prior run's snapshot, defaulting to empty when absent or
// unparsable.
func Load(homeDir string) (*Snapshot, error) {
	b, err := os.ReadFile(filePath(homeDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptySnapshot(), nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return emptySnapshot(), nil
	}
	if s.Counts == nil {
		s.Counts = map[string]int{}
	}
	if s.FailureCount == nil {
		s.FailureCount = map[string]int{}
	}
	if s.TotalSeconds == nil {
		s.TotalSeconds = map[string]float64{}
	}
	return &s, nil
}

// Flush persists the accumulated snapshot atomically. Registered as a
// shutdown disposer (SPEC_FULL.md §B.4/§B.5) so it runs once per process.
func (r *PromRecorder) Flush(homeDir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filePath(homeDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(r.snapshot, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Registry exposes the isolated Prometheus registry, for a future metrics
// endpoint or `kb plugins:doctor` to gather from.
func (r *PromRecorder) Registry() *prometheus.Registry { return r.registry }
