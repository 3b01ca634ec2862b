package main

import (
	"fmt"
	"path/filepath"
	"sort"
)

const duckdbBuildCommand = "GEN=ninja BUILD_HTTPFS=1 BUILD_TPCH=1 BUILD_TPCDS=1 make"

type DuckDB struct {
	paths   Paths
	version string
	build   *BuildConfig
	run     SystemRunConfig
	setup   string
}

func NewDuckDB(paths Paths, version string, build *BuildConfig, run SystemRunConfig) *DuckDB {
	return &DuckDB{paths: paths, version: version, build: build, run: run}
}

func (d *DuckDB) Name() string        { return "duckdb" }
func (d *DuckDB) Version() string     { return d.version }
func (d *DuckDB) SetupScript() string { return d.setup }
func (d *DuckDB) Build() *BuildConfig { return d.build }

func (d *DuckDB) SetThreadsCommand(threads int) string {
	return fmt.Sprintf("PRAGMA threads = %v;", threads)
}

func (d *DuckDB) profilePath(slot int) string {
	return d.paths.TmpPath(fmt.Sprintf("duckdb-profile-thread-%v.json", slot))
}

func (d *DuckDB) StartProfilerCommand(slot int) string {
	return fmt.Sprintf("PRAGMA enable_profiling = 'json';pragma profile_output='%v';", d.profilePath(slot))
}

func (d *DuckDB) ReadMetrics(slot int) (*Metrics, error) {
	return ReadProfileMetrics(d.profilePath(slot))
}

func (d *DuckDB) RunCommand() string {
	if !d.run.RunFileRelativeToBuild {
		return d.run.RunFile
	}
	dir := SourceDir(d.paths, SystemIdentifier(d), d.build)
	return filepath.Join(dir, d.run.RunFile)
}

func duckdbGithubBuild(url string) *BuildConfig {
	return &BuildConfig{
		Location:     SourceLocation{Location: "github", GithubUrl: url},
		BuildCommand: duckdbBuildCommand,
	}
}

var duckdbReleaseRun = SystemRunConfig{RunFile: "build/release/duckdb <", RunFileRelativeToBuild: true}

func duckmanRun(version string) SystemRunConfig {
	return SystemRunConfig{RunFile: fmt.Sprintf("duckman run %v <", version)}
}

// SystemFactory creates a registered system rooted at paths.
type SystemFactory func(paths Paths) System

var systemRegistry = map[string]SystemFactory{
	"duckdb-main": func(p Paths) System {
		return NewDuckDB(p, "v1.0.0", duckdbGithubBuild("https://github.com/duckdb/duckdb/commit/1f98600c2cf8722a6d2f2d805bb4af5e701319fc"), duckdbReleaseRun)
	},
	"duckdb-nightly-build-locally": func(p Paths) System {
		return NewDuckDB(p, "nightly-build-locally", duckdbGithubBuild("https://github.com/duckdb/duckdb"), duckdbReleaseRun)
	},
	"duckdb-v1.0.0":  func(p Paths) System { return NewDuckDB(p, "v1.0.0", nil, duckmanRun("1.0.0")) },
	"duckdb-v1.1.3":  func(p Paths) System { return NewDuckDB(p, "v1.1.3", nil, duckmanRun("1.1.3")) },
	"duckdb-nightly": func(p Paths) System { return NewDuckDB(p, "nightly", nil, duckmanRun("nightly")) },
	"duckdb-lp-join-baseline": func(p Paths) System {
		return NewDuckDB(p, "baseline", duckdbGithubBuild("https://github.com/gropaul/duckdb/commit/fd2e59672e02d49278e9491ed1bd8fa5d1cdb0a7"), duckdbReleaseRun)
	},
	"duckdb-lp-join": func(p Paths) System {
		return NewDuckDB(p, "lp-join", duckdbGithubBuild("https://github.com/gropaul/duckdb/commit/e30f8270594e6fde06ca87b2193ad31d91db047e"), duckdbReleaseRun)
	},
	"duckdb-lp-join-no-salt": func(p Paths) System {
		return NewDuckDB(p, "lp-join-no-salt", duckdbGithubBuild("https://github.com/gropaul/duckdb/commit/442274812bda9504b697524e58f796d182612838"), duckdbReleaseRun)
	},
	"duckdb-fact-intersection": func(p Paths) System {
		return NewDuckDB(p, "fact-intersection", duckdbGithubBuild("https://github.com/gropaul/duckdb/commit/446b25a1af4a39cede073f7f3872b49145ec2cd0"), duckdbReleaseRun)
	},
	"duckdb-join-optimization-baseline": func(p Paths) System {
		return NewDuckDB(p, "join-optimization-baseline", duckdbGithubBuild("https://github.com/gropaul/duckdb/commit/4ba2e66277a7576f58318c1aac112faa67c47b11"), duckdbReleaseRun)
	},
	"duckdb-join-optimization-hash-marker": func(p Paths) System {
		return NewDuckDB(p, "join-optimization-hash-marker", duckdbGithubBuild("https://github.com/gropaul/duckdb/tree/join-optimization/hash-marker"), duckdbReleaseRun)
	},
	"duckdb-without-atomics": func(p Paths) System {
		return NewDuckDB(p, "without-atomics", duckdbGithubBuild("https://github.com/gropaul/duckdb/tree/join/atomics-test"), duckdbReleaseRun)
	},
	"duckdb-partitioned-ht": func(p Paths) System {
		return NewDuckDB(p, "partitioned-ht", duckdbGithubBuild("https://github.com/gropaul/duckdb/tree/join/partioning-non-atomic-v2"), duckdbReleaseRun)
	},
}

func RegisteredSystems() []string {
	names := make([]string, 0, len(systemRegistry))
	for name := range systemRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func LookupSystem(paths Paths, name string) (System, error) {
	factory, ok := systemRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown system '%v'", name)
	}
	return factory(paths), nil
}
