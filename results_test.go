package main

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJsonWriterLayout(t *testing.T) {
	paths := testPaths(t)
	writer := &JsonWriter{Paths: paths}
	system := NewDuckDB(paths, "v1.1.3", nil, duckmanRun("1.1.3"))
	experiment := testExperiment(system, stubQuery("q1"), stubDataset("tpch-1"), 2, 3)

	require.Equal(t, filepath.Join(paths.Runs, "unit", "2024-01-02-03-04-05", experiment.ID+".json"), writer.Path(experiment))

	result := NewExperimentResult(experiment)
	result.Add(Metrics{Runtime: 0.5, Cardinality: 42})
	require.Nil(t, writer.Write(result))

	data, err := os.ReadFile(writer.Path(experiment))
	require.Nil(t, err)
	var decoded map[string]any
	require.Nil(t, json.Unmarshal(data, &decoded))
	require.Equal(t, []any{0.5}, decoded["runtimes"])
	require.Equal(t, []any{42.0}, decoded["cardinalities"])

	record := decoded["experiment"].(map[string]any)
	require.Equal(t, experiment.ID, record["id"])
	require.Equal(t, "unit", record["run_name"])
	require.Equal(t, map[string]any{"n_threads": 2.0}, record["system_setting"])
	require.Equal(t, map[string]any{
		"name":         "duckdb",
		"version":      "v1.1.3",
		"run_command":  "duckman run 1.1.3 <",
		"build_config": nil,
	}, record["system"])
}

func TestJsonWriterEmptyResult(t *testing.T) {
	paths := testPaths(t)
	writer := &JsonWriter{Paths: paths}
	experiment := testExperiment(&stubSystem{}, stubQuery("q1"), stubDataset("d"), 1, 3)

	require.Nil(t, writer.Write(ExperimentResult{Experiment: experiment}))
	data, err := os.ReadFile(writer.Path(experiment))
	require.Nil(t, err)
	require.Contains(t, string(data), `"runtimes": []`)
	require.Contains(t, string(data), `"cardinalities": []`)
}

func TestJsonWriterUnserializableConfig(t *testing.T) {
	paths := testPaths(t)
	writer := &JsonWriter{Paths: paths}
	data := stubDataset("d")
	data.Config = map[string]any{
		"sf":       10,
		"callback": func() {},
		"ratio":    math.NaN(),
		"nested":   map[int]any{1: make(chan int), 2: "ok"},
		"list":     []any{1, func() {}},
	}
	experiment := testExperiment(&stubSystem{}, stubQuery("q1"), data, 1, 3)

	require.Nil(t, writer.Write(NewExperimentResult(experiment)))
	content, err := os.ReadFile(writer.Path(experiment))
	require.Nil(t, err)
	var decoded struct {
		Experiment struct {
			Data struct {
				Config map[string]any `json:"config"`
			} `json:"data"`
		} `json:"experiment"`
	}
	require.Nil(t, json.Unmarshal(content, &decoded))
	require.Equal(t, map[string]any{
		"sf":       10.0,
		"callback": nil,
		"ratio":    nil,
		"nested":   map[string]any{"1": nil, "2": "ok"},
		"list":     []any{1.0, nil},
	}, decoded.Experiment.Data.Config)
	// the input config is left untouched
	require.NotNil(t, data.Config["callback"])
}

func TestSinksStopOnError(t *testing.T) {
	first, last := &collectSink{}, &collectSink{}
	failing := failingSink{}
	err := Sinks{first, failing, last}.Write(ExperimentResult{})
	require.ErrorContains(t, err, "sink is full")
	require.Equal(t, 1, first.count())
	require.Equal(t, 0, last.count())
}

type failingSink struct{}

func (failingSink) Write(ExperimentResult) error { return errors.New("sink is full") }
