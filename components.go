package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash"
)

// System is an engine build or version under test. The executor only talks
// to engines through this interface.
type System interface {
	Name() string
	Version() string
	SetupScript() string
	SetThreadsCommand(threads int) string
	StartProfilerCommand(slot int) string
	// ReadMetrics returns nil metrics when the run left no usable profile.
	ReadMetrics(slot int) (*Metrics, error)
	// RunCommand is the command prefix the script file path is appended to.
	RunCommand() string
	// Build returns nil for systems which are used as-is.
	Build() *BuildConfig
}

func SystemIdentifier(s System) string {
	return s.Name() + "-" + s.Version()
}

type SourceLocation struct {
	Location  string `yaml:"location" json:"location"` // github | local
	GithubUrl string `yaml:"github_url,omitempty" json:"github_url,omitempty"`
	LocalPath string `yaml:"local_path,omitempty" json:"local_path,omitempty"`
}

type BuildConfig struct {
	Location     SourceLocation `yaml:"location" json:"location"`
	BuildCommand string         `yaml:"build_command" json:"build_command"`
}

type SystemRunConfig struct {
	RunFile                string `yaml:"run_file" json:"run_file"`
	RunFileRelativeToBuild bool   `yaml:"run_file_relative_to_build" json:"run_file_relative_to_build"`
}

type Metrics struct {
	Runtime     float64
	Cardinality int64
}

// Script maps an engine name to the script text for that engine.
type Script map[string]string

type Dataset struct {
	Name        string         `json:"name"`
	SetupScript Script         `json:"setup_script"`
	Config      map[string]any `json:"config"`
}

type Query struct {
	Name      string         `json:"name"`
	Index     int            `json:"index"`
	RunScript Script         `json:"run_script"`
	Config    map[string]any `json:"config"`
}

type SystemSettings struct {
	Threads int `yaml:"n_threads" json:"n_threads"`
}

// RunSettings are user overrides; nil fields take the defaults.
type RunSettings struct {
	Seed           *float64 `yaml:"seed"`
	Parallel       *int     `yaml:"n_parallel"`
	Runs           *int     `yaml:"n_runs"`
	Timeout        *int     `yaml:"timeout"`
	Offset         *int     `yaml:"offset"`
	MaxExperiments *int     `yaml:"max_n_experiments"`
	ClearCaches    *bool    `yaml:"clear_caches"`
}

type RunSettingsInternal struct {
	Seed     float64 `json:"seed"`
	Parallel int     `json:"n_parallel"`
	Runs     int     `json:"n_runs"`
	// Timeout in seconds, applied to every single run.
	Timeout        int  `json:"timeout"`
	Offset         int  `json:"offset"`
	MaxExperiments *int `json:"max_n_experiments"`
	ClearCaches    bool `json:"clear_caches"`
}

func DefaultRunSettings() RunSettingsInternal {
	return RunSettingsInternal{
		Seed:     0.42,
		Parallel: 1,
		Runs:     5,
		Timeout:  60,
		Offset:   0,
	}
}

func (s RunSettings) WithDefaults() RunSettingsInternal {
	settings := DefaultRunSettings()
	if s.Seed != nil {
		settings.Seed = *s.Seed
	}
	if s.Parallel != nil {
		settings.Parallel = *s.Parallel
	}
	if s.Runs != nil {
		settings.Runs = *s.Runs
	}
	if s.Timeout != nil {
		settings.Timeout = *s.Timeout
	}
	if s.Offset != nil {
		settings.Offset = *s.Offset
	}
	if s.MaxExperiments != nil {
		limit := *s.MaxExperiments
		settings.MaxExperiments = &limit
	}
	if s.ClearCaches != nil {
		settings.ClearCaches = *s.ClearCaches
	}
	return settings
}

// RunConfig describes a sweep: every query of every benchmark on every
// dataset, for every system and every system setting.
type RunConfig struct {
	Name           string
	RunSettings    RunSettings
	SystemSettings []SystemSettings
	Systems        []System
	Benchmarks     []Benchmark
}

type Experiment struct {
	ID            string
	Name          string
	Benchmark     string
	RunName       string
	RunDate       string
	Data          Dataset
	Settings      RunSettingsInternal
	Query         Query
	SystemSetting SystemSettings
	System        System
}

// ExperimentID derives a stable key from the experiment content so that
// result files do not depend on the expansion order.
func ExperimentID(benchmark string, query Query, data Dataset, system System, setting SystemSettings) string {
	h := xxhash.New()
	for _, part := range []string{
		benchmark,
		query.Name,
		strconv.Itoa(query.Index),
		data.Name,
		SystemIdentifier(system),
		strconv.Itoa(setting.Threads),
	} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%v-%v", benchmark, hex.EncodeToString(h.Sum(nil)))
}

type ExperimentResult struct {
	Experiment    Experiment
	Runtimes      []float64
	Cardinalities []int64
}

func NewExperimentResult(experiment Experiment) ExperimentResult {
	return ExperimentResult{
		Experiment:    experiment,
		Runtimes:      make([]float64, 0),
		Cardinalities: make([]int64, 0),
	}
}

func (r *ExperimentResult) Add(metrics Metrics) {
	r.Runtimes = append(r.Runtimes, metrics.Runtime)
	r.Cardinalities = append(r.Cardinalities, metrics.Cardinality)
}
