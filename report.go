package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/jedib0t/go-pretty/table"
)

type ReportRow struct {
	RunDate     string
	Benchmark   string
	Query       string
	QueryIndex  int
	Dataset     string
	System      string
	Threads     int
	Samples     int
	MinRuntime  *float64
	Median      *float64
	Cardinality *int64
}

type storedResult struct {
	Experiment struct {
		Benchmark string `json:"benchmark"`
		RunDate   string `json:"run_date"`
		Data      struct {
			Name string `json:"name"`
		} `json:"data"`
		Query struct {
			Name  string `json:"name"`
			Index int    `json:"index"`
		} `json:"query"`
		SystemSetting SystemSettings `json:"system_setting"`
		System        *struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"system"`
	} `json:"experiment"`
	Runtimes      []float64 `json:"runtimes"`
	Cardinalities []int64   `json:"cardinalities"`
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func reportRow(result storedResult) ReportRow {
	e := result.Experiment
	row := ReportRow{
		RunDate:    e.RunDate,
		Benchmark:  e.Benchmark,
		Query:      e.Query.Name,
		QueryIndex: e.Query.Index,
		Dataset:    e.Data.Name,
		Threads:    e.SystemSetting.Threads,
		Samples:    len(result.Runtimes),
	}
	if e.System != nil {
		row.System = e.System.Name + "-" + e.System.Version
	}
	if len(result.Runtimes) > 0 {
		low, mid := result.Runtimes[0], median(result.Runtimes)
		for _, runtime := range result.Runtimes[1:] {
			low = min(low, runtime)
		}
		row.MinRuntime, row.Median = &low, &mid
	}
	if len(result.Cardinalities) > 0 {
		cardinality := result.Cardinalities[0]
		row.Cardinality = &cardinality
	}
	return row
}

// LoadReport reads the persisted results of a run; an empty date selects
// every date of the run.
func LoadReport(paths Paths, runName string, runDate string) ([]ReportRow, error) {
	pattern := filepath.Join(paths.Runs, runName, "*", "*.json")
	if runDate != "" {
		pattern = filepath.Join(paths.RunDir(runName, runDate), "*.json")
	}
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no results found for run %v", runName)
	}
	rows := make([]ReportRow, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		var result storedResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to parse result %v: %w", file, err)
		}
		rows = append(rows, reportRow(result))
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.RunDate != b.RunDate {
			return a.RunDate < b.RunDate
		}
		if a.Benchmark != b.Benchmark {
			return a.Benchmark < b.Benchmark
		}
		if a.QueryIndex != b.QueryIndex {
			return a.QueryIndex < b.QueryIndex
		}
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		if a.System != b.System {
			return a.System < b.System
		}
		return a.Threads < b.Threads
	})
	return rows, nil
}

func optional[T any](value *T) any {
	if value == nil {
		return "-"
	}
	return *value
}

func RenderReport(w io.Writer, rows []ReportRow, csv bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"date", "benchmark", "query", "dataset", "system", "threads", "samples", "min", "median", "cardinality"})
	for _, row := range rows {
		t.AppendRow(table.Row{
			row.RunDate,
			row.Benchmark,
			row.Query,
			row.Dataset,
			row.System,
			row.Threads,
			row.Samples,
			optional(row.MinRuntime),
			optional(row.Median),
			optional(row.Cardinality),
		})
	}
	if csv {
		t.RenderCSV()
	} else {
		t.Render()
	}
}
