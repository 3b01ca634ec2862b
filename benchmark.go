package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Benchmark is a named bundle of datasets and queries; every query runs on
// every dataset.
type Benchmark struct {
	Name     string
	Datasets []Dataset
	Queries  []Query
}

func clearCaches() error {
	switch runtime.GOOS {
	case "linux":
		if err := exec.Command("sync").Run(); err != nil {
			return err
		}
		if err := exec.Command("sh", "-c", "echo 3 | sudo tee /proc/sys/vm/drop_caches").Run(); err != nil {
			return err
		}
		return nil
	case "darwin":
		if err := exec.Command("sync").Run(); err != nil {
			return err
		}
		if err := exec.Command("purge").Run(); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("unable to clear caches for platform '%v'", runtime.GOOS)
}

func clearCachesIfNeeded(settings RunSettingsInternal) {
	if !settings.ClearCaches {
		return
	}
	Logger.Debugf("clear caches")
	if err := clearCaches(); err != nil {
		Logger.Warnf("failed to clear fs caches: %v", err)
	}
}

// BenchmarkSpec selects and parameterizes one of the built-in benchmarks.
type BenchmarkSpec struct {
	Kind         string `yaml:"kind"`
	ScaleFactors []int  `yaml:"scale_factors"`
	QueriesDir   string `yaml:"queries_dir"`
	Database     string `yaml:"database"`
	Rows         int    `yaml:"rows"`
	Variant      string `yaml:"variant"`
}

func (g *DataGenerator) LoadBenchmark(ctx context.Context, spec BenchmarkSpec) (Benchmark, error) {
	switch spec.Kind {
	case "tpch":
		return g.TpchBenchmark(ctx, spec.ScaleFactors)
	case "tpcds":
		return g.TpcdsBenchmark(ctx, spec.ScaleFactors)
	case "clickbench":
		return g.ClickbenchBenchmark(ctx, spec.Rows)
	case "imdb":
		return ImdbBenchmark(g.Paths, spec.Database, spec.QueriesDir)
	case "join_micro":
		return g.JoinMicroBenchmark(ctx, spec.Variant, spec.Rows)
	}
	return Benchmark{}, fmt.Errorf("unknown benchmark kind '%v'", spec.Kind)
}

const generateTimeout = 4 * time.Hour

// DataGenerator creates benchmark databases by running generation scripts
// through the engine itself.
type DataGenerator struct {
	Paths   Paths
	Runner  ScriptRunner
	System  System
	Timeout time.Duration
	// Seed is handed to setseed before generating randomized tables.
	Seed float64
}

// Generate runs script against a fresh database which is moved to file on
// success. Existing files are kept as they are.
func (g *DataGenerator) Generate(ctx context.Context, file string, script string) error {
	if _, err := os.Stat(file); err == nil {
		Logger.Infof("file %v already exists, skipping generation", file)
		return nil
	}
	if g.System == nil {
		return fmt.Errorf("no system available to generate %v", file)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return err
	}
	tmp := file + ".tmp"
	for _, leftover := range []string{tmp, tmp + ".wal"} {
		if err := os.Remove(leftover); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	timeout := g.Timeout
	if timeout == 0 {
		timeout = generateTimeout
	}
	Logger.Infof("started generating %v", file)
	full := fmt.Sprintf("ATTACH '%v' AS generated;\nUSE generated;\n%v\nCHECKPOINT generated;\n", tmp, script)
	status := g.Runner.RunScript(ctx, g.System.RunCommand(), full, 0, timeout)
	if status != StatusSuccess {
		return fmt.Errorf("generation of %v failed: %v", file, status)
	}
	if err := os.Rename(tmp, file); err != nil {
		return err
	}
	Logger.Infof("finished generating %v", file)
	return nil
}

func attachScript(file string) string {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return fmt.Sprintf("ATTACH '%v' (READ_ONLY); USE '%v';", file, stem)
}
