package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Join micro benchmarks generate synthetic key tables and time a single hash
// join between a probe and a build side.
const (
	joinVariantProbe       = "probe"
	joinVariantBuild       = "build"
	joinVariantSelectivity = "selectivity"

	// queries producing more rows than this are skipped
	maxJoinCardinality = 1_000_000_000
)

var (
	joinProbeCardinality   = 10_000_000
	joinProbeRatios        = []float64{1, 4, 16, 64}
	joinProbeDuplicates    = []int{1, 4, 16, 64, 256, 1024, 4096, 16384}
	joinProbeSelectivities = []float64{0.01, 0.1, 0.25, 0.5, 0.75, 1.0}

	joinBuildCardinality = 100_000_000
	joinBuildDuplicates  = []int{1, 16, 256, 4096, 65536, 1048576, 16777216}

	joinSelectivityCardinalities = []int{10_000_000, 100_000_000}
	joinSelectivityRatio         = 10
	joinSelectivities            = []float64{0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 0.75, 1.0}
)

func formatRatio(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// joinTables collects table definitions in creation order; tables shared by
// several queries are created once.
type joinTables struct {
	seen       map[string]bool
	statements []string
}

func (t *joinTables) add(name string, statement string) {
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	if t.seen[name] {
		return
	}
	t.seen[name] = true
	t.statements = append(t.statements, statement)
}

// script creates every table with random() seeded, so repeated generations
// produce identical data.
func (t *joinTables) script(seed float64) string {
	var script strings.Builder
	fmt.Fprintf(&script, "SELECT setseed(%v);\n", seed)
	for _, statement := range t.statements {
		script.WriteString(statement)
		script.WriteString("\n")
	}
	return script.String()
}

// joinProbeCase shifts the probe keys against the build keys so that only a
// fraction of the probe rows find a match, each hitting duplicates build rows.
type joinProbeCase struct {
	Selectivity float64
	Ratio       float64
	Duplicates  int
	ProbeSize   int
	BuildSize   int
	ValueRange  int
	Offset      int
	Expected    int
}

func newJoinProbeCase(selectivity float64, ratio float64, duplicates int, probeSize int) joinProbeCase {
	buildSize := max(1, int(math.Round(float64(probeSize)/ratio)))
	valueRange := max(1, int(math.Round(float64(buildSize)/float64(duplicates))))
	return joinProbeCase{
		Selectivity: selectivity,
		Ratio:       ratio,
		Duplicates:  duplicates,
		ProbeSize:   probeSize,
		BuildSize:   buildSize,
		ValueRange:  valueRange,
		Offset:      int(math.Round(float64(valueRange) * (1 - selectivity))),
		Expected:    int(math.Round(float64(probeSize) * selectivity * float64(duplicates))),
	}
}

func (c joinProbeCase) buildTable() string {
	return fmt.Sprintf("join_build_%v_%v", c.ValueRange, c.BuildSize)
}

func (c joinProbeCase) probeTable() string {
	return fmt.Sprintf("join_probe_%v_%v", c.ValueRange, c.Offset)
}

func (c joinProbeCase) buildStatement() string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %v AS SELECT range %% %v AS key FROM range(%v) ORDER BY random();",
		c.buildTable(), c.ValueRange, c.BuildSize,
	)
}

func (c joinProbeCase) probeStatement() string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %v AS SELECT (range %% %v) + %v AS key FROM range(%v) ORDER BY random();",
		c.probeTable(), c.ValueRange, c.Offset, c.ProbeSize,
	)
}

func joinProbeQueries(probeSize int) ([]Query, *joinTables) {
	tables := &joinTables{}
	queries := make([]Query, 0)
	for _, selectivity := range joinProbeSelectivities {
		for _, ratio := range joinProbeRatios {
			for _, duplicates := range joinProbeDuplicates {
				c := newJoinProbeCase(selectivity, ratio, duplicates, probeSize)
				if c.Expected > maxJoinCardinality {
					Logger.Debugf("skipping probe join with expected cardinality %v", c.Expected)
					continue
				}
				tables.add(c.probeTable(), c.probeStatement())
				tables.add(c.buildTable(), c.buildStatement())
				queries = append(queries, Query{
					Name:  fmt.Sprintf("join_micro_probe_%v_%v_%v", int(math.Round(ratio)), int(math.Round(100*selectivity)), duplicates),
					Index: len(queries),
					RunScript: Script{
						"duckdb": fmt.Sprintf("SELECT * FROM %v AS probe JOIN %v AS build ON probe.key = build.key;", c.probeTable(), c.buildTable()),
					},
					Config: map[string]any{
						"build_to_probe_ratio": ratio,
						"selectivity":          selectivity,
						"duplicates":           duplicates,
						"probe_cardinality":    probeSize,
						"expected_cardinality": c.Expected,
						"build_table_query":    c.buildStatement(),
						"probe_table_query":    c.probeStatement(),
					},
				})
			}
		}
	}
	return queries, tables
}

func joinBuildQueries(cardinality int) ([]Query, *joinTables) {
	tables := &joinTables{}
	tables.add("probe", "CREATE TABLE IF NOT EXISTS probe (key INT64);")
	queries := make([]Query, 0, len(joinBuildDuplicates))
	for i, duplicates := range joinBuildDuplicates {
		build := fmt.Sprintf("join_build_%v_%v", cardinality, duplicates)
		statement := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %v AS SELECT range // %v AS key FROM range(%v) ORDER BY random();",
			build, duplicates, cardinality,
		)
		tables.add(build, statement)
		queries = append(queries, Query{
			Name:      fmt.Sprintf("join_micro_build_%v", duplicates),
			Index:     i,
			RunScript: Script{"duckdb": fmt.Sprintf("SELECT * FROM probe JOIN %v AS build ON probe.key = build.key;", build)},
			Config: map[string]any{
				"duplicates":        duplicates,
				"build_cardinality": cardinality,
				"build_table_query": statement,
			},
		})
	}
	return queries, tables
}

func joinSelectivityQueries(cardinalities []int) ([]Query, *joinTables) {
	tables := &joinTables{}
	queries := make([]Query, 0, len(joinSelectivities)*len(cardinalities))
	for _, selectivity := range joinSelectivities {
		for _, probeSize := range cardinalities {
			expected := int(float64(probeSize) * selectivity)
			if expected > maxJoinCardinality {
				Logger.Debugf("skipping selectivity join with expected cardinality %v", expected)
				continue
			}
			permille := int(math.Round(1000 * selectivity))
			probe := fmt.Sprintf("join_probe_%v", probeSize)
			build := fmt.Sprintf("join_build_%v_%v", probeSize, permille)
			probeStatement := fmt.Sprintf(
				"CREATE TABLE IF NOT EXISTS %v AS SELECT range AS key FROM range(%v) ORDER BY random();",
				probe, probeSize,
			)
			buildStatement := fmt.Sprintf(
				"CREATE TABLE IF NOT EXISTS %v AS SELECT key FROM %v WHERE random() < %v;",
				build, probe, formatRatio(selectivity),
			)
			tables.add(probe, probeStatement)
			tables.add(build, buildStatement)
			queries = append(queries, Query{
				Name:  fmt.Sprintf("join_micro_probe_%v_%v_%v", joinSelectivityRatio, permille, probeSize),
				Index: len(queries),
				RunScript: Script{
					"duckdb": fmt.Sprintf("SELECT * FROM %v AS probe JOIN %v AS build ON probe.key = build.key AND hash(build.key) > 1;", probe, build),
				},
				Config: map[string]any{
					"build_to_probe_ratio": joinSelectivityRatio,
					"selectivity":          selectivity,
					"probe_cardinality":    probeSize,
					"expected_cardinality": expected,
					"build_table_query":    buildStatement,
					"probe_table_query":    probeStatement,
				},
			})
		}
	}
	return queries, tables
}

// JoinMicroBenchmark prepares one of the join micro benchmarks. A positive
// rows replaces the default probe (or build) cardinality, which keeps the
// generated database small enough for smoke runs.
func (g *DataGenerator) JoinMicroBenchmark(ctx context.Context, variant string, rows int) (Benchmark, error) {
	var (
		queries []Query
		tables  *joinTables
		setup   = "PRAGMA disable_optimizer; PRAGMA disable_progress_bar;"
	)
	switch variant {
	case "", joinVariantProbe:
		variant = joinVariantProbe
		queries, tables = joinProbeQueries(orDefault(rows, joinProbeCardinality))
	case joinVariantBuild:
		queries, tables = joinBuildQueries(orDefault(rows, joinBuildCardinality))
	case joinVariantSelectivity:
		cardinalities := joinSelectivityCardinalities
		if rows > 0 {
			cardinalities = []int{rows}
		}
		queries, tables = joinSelectivityQueries(cardinalities)
		// selectivity joins run with the optimizer enabled
		setup = "PRAGMA disable_progress_bar;"
	default:
		return Benchmark{}, fmt.Errorf("unknown join micro variant '%v'", variant)
	}

	name := "micro_" + variant
	dataset := "join-micro-" + variant
	if rows > 0 {
		name = fmt.Sprintf("%v_%v", name, rows)
		dataset = fmt.Sprintf("%v-%v", dataset, rows)
	}
	file := g.Paths.DataPath(fmt.Sprintf("join/%v.db", name))
	Logger.Infof("preparing %v tables for %v join micro queries", len(tables.statements), len(queries))
	if err := g.Generate(ctx, file, tables.script(g.Seed)); err != nil {
		return Benchmark{}, err
	}
	return Benchmark{
		Name: "join_micro_" + variant,
		Datasets: []Dataset{{
			Name:        dataset,
			SetupScript: Script{"duckdb": attachScript(file) + " " + setup},
			Config:      map[string]any{"rows": rows, "seed": g.Seed},
		}},
		Queries: queries,
	}, nil
}

func orDefault(value int, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
