package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// shellSystem uses sh as the engine: scripts are shell scripts and queries
// write their own profile to $PROFILE.
type shellSystem struct {
	dir   string
	setup string
}

func (s *shellSystem) Name() string        { return "sh" }
func (s *shellSystem) Version() string     { return "test" }
func (s *shellSystem) SetupScript() string { return s.setup }
func (s *shellSystem) Build() *BuildConfig { return nil }
func (s *shellSystem) RunCommand() string  { return "sh" }

func (s *shellSystem) SetThreadsCommand(threads int) string {
	return fmt.Sprintf("THREADS=%v", threads)
}

func (s *shellSystem) profilePath(slot int) string {
	return filepath.Join(s.dir, fmt.Sprintf("profile-%v.json", slot))
}

func (s *shellSystem) StartProfilerCommand(slot int) string {
	return fmt.Sprintf("PROFILE=%v", s.profilePath(slot))
}

func (s *shellSystem) ReadMetrics(slot int) (*Metrics, error) {
	return ReadProfileMetrics(s.profilePath(slot))
}

// shellQuery reports a fixed latency and the configured thread count as the
// cardinality.
func shellQuery(name string, index int, latency float64) Query {
	return Query{
		Name:      name,
		Index:     index,
		RunScript: Script{"sh": fmt.Sprintf(`echo "{\"rows_returned\": $THREADS, \"latency\": %v}" > "$PROFILE"`, latency)},
	}
}

func shellDataset(name string) Dataset {
	return Dataset{Name: name, SetupScript: Script{"sh": "true"}, Config: map[string]any{}}
}

// stubSystem hands out prepared metrics, one per ReadMetrics call; once
// they run out it keeps returning the last one.
type stubSystem struct {
	mu      sync.Mutex
	metrics []*Metrics
	err     error
	reads   int
}

func (s *stubSystem) Name() string        { return "stub" }
func (s *stubSystem) Version() string     { return "v0" }
func (s *stubSystem) SetupScript() string { return "setup;" }
func (s *stubSystem) Build() *BuildConfig { return nil }
func (s *stubSystem) RunCommand() string  { return "stub-engine <" }

func (s *stubSystem) SetThreadsCommand(threads int) string {
	return fmt.Sprintf("threads %v;", threads)
}

func (s *stubSystem) StartProfilerCommand(slot int) string {
	return fmt.Sprintf("profile %v;", slot)
}

func (s *stubSystem) ReadMetrics(int) (*Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.metrics) == 0 {
		return nil, nil
	}
	m := s.metrics[0]
	if len(s.metrics) > 1 {
		s.metrics = s.metrics[1:]
	}
	return m, nil
}

func (s *stubSystem) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func stubQuery(name string) Query {
	return Query{Name: name, RunScript: Script{"stub": "select 1;"}}
}

func stubDataset(name string) Dataset {
	return Dataset{Name: name, SetupScript: Script{"stub": "attach;"}}
}

// stubRunner replays statuses, one per call; the last status repeats.
type stubRunner struct {
	mu       sync.Mutex
	statuses []RunStatus
	calls    int
	slots    []int
	scripts  []string
	onRun    func()
}

func (r *stubRunner) RunScript(ctx context.Context, command string, script string, slot int, timeout time.Duration) RunStatus {
	if r.onRun != nil {
		r.onRun()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.slots = append(r.slots, slot)
	r.scripts = append(r.scripts, script)
	if len(r.statuses) == 0 {
		return StatusSuccess
	}
	status := r.statuses[0]
	if len(r.statuses) > 1 {
		r.statuses = r.statuses[1:]
	}
	return status
}

// collectSink keeps results in memory.
type collectSink struct {
	mu      sync.Mutex
	results []ExperimentResult
}

func (s *collectSink) Write(result ExperimentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *collectSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func testPaths(t *testing.T) Paths {
	paths, err := InitPaths(t.TempDir())
	require.Nil(t, err)
	return paths
}

func intPtr(v int) *int { return &v }

func testExperiment(system System, query Query, data Dataset, threads int, runs int) Experiment {
	settings := DefaultRunSettings()
	settings.Runs = runs
	settings.Timeout = 5
	return Experiment{
		ID:            ExperimentID("test", query, data, system, SystemSettings{Threads: threads}),
		Name:          "test-experiment-" + query.Name,
		Benchmark:     "test",
		RunName:       "unit",
		RunDate:       "2024-01-02-03-04-05",
		Data:          data,
		Settings:      settings,
		Query:         query,
		SystemSetting: SystemSettings{Threads: threads},
		System:        system,
	}
}
