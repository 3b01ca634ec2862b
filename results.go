package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
)

type systemRecord struct {
	Name    string       `json:"name"`
	Version string       `json:"version"`
	Run     string       `json:"run_command"`
	Build   *BuildConfig `json:"build_config"`
}

type experimentRecord struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Benchmark     string              `json:"benchmark"`
	RunName       string              `json:"run_name"`
	RunDate       string              `json:"run_date"`
	Data          Dataset             `json:"data"`
	Settings      RunSettingsInternal `json:"settings"`
	Query         Query               `json:"query"`
	SystemSetting SystemSettings      `json:"system_setting"`
	System        *systemRecord       `json:"system"`
}

type resultRecord struct {
	Experiment    experimentRecord `json:"experiment"`
	Runtimes      []float64        `json:"runtimes"`
	Cardinalities []int64          `json:"cardinalities"`
}

func newResultRecord(result ExperimentResult) resultRecord {
	e := result.Experiment
	record := experimentRecord{
		ID:            e.ID,
		Name:          e.Name,
		Benchmark:     e.Benchmark,
		RunName:       e.RunName,
		RunDate:       e.RunDate,
		Data:          e.Data,
		Settings:      e.Settings,
		Query:         e.Query,
		SystemSetting: e.SystemSetting,
	}
	record.Data.Config = safeMap(e.Data.Config)
	record.Query.Config = safeMap(e.Query.Config)
	if e.System != nil {
		record.System = &systemRecord{
			Name:    e.System.Name(),
			Version: e.System.Version(),
			Run:     e.System.RunCommand(),
			Build:   e.System.Build(),
		}
	}
	runtimes, cardinalities := result.Runtimes, result.Cardinalities
	if runtimes == nil {
		runtimes = []float64{}
	}
	if cardinalities == nil {
		cardinalities = []int64{}
	}
	return resultRecord{Experiment: record, Runtimes: runtimes, Cardinalities: cardinalities}
}

// safeMap copies free-form config values, replacing anything encoding/json
// cannot represent with nil.
func safeMap(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}
	safe := make(map[string]any, len(config))
	for key, value := range config {
		safe[key] = safeValue(reflect.ValueOf(value))
	}
	return safe
}

func safeValue(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return nil
	case reflect.Float32, reflect.Float64:
		// NaN and infinities are not valid JSON
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return v.Interface()
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return safeValue(v.Elem())
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		safe := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			safe[fmt.Sprint(iter.Key().Interface())] = safeValue(iter.Value())
		}
		return safe
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface()
		}
		safe := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			safe[i] = safeValue(v.Index(i))
		}
		return safe
	case reflect.Struct:
		if _, err := json.Marshal(v.Interface()); err != nil {
			return nil
		}
		return v.Interface()
	}
	return v.Interface()
}

// JsonWriter persists every result as
// <runs>/<run name>/<run date>/<experiment id>.json.
type JsonWriter struct {
	Paths Paths
}

func (w *JsonWriter) Path(experiment Experiment) string {
	return filepath.Join(w.Paths.RunDir(experiment.RunName, experiment.RunDate), experiment.ID+".json")
}

func (w *JsonWriter) Write(result ExperimentResult) error {
	path := w.Path(result.Experiment)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(newResultRecord(result), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode result of %v: %w", result.Experiment.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	Logger.Debugf("saved result of %v to %v", result.Experiment.Name, path)
	return nil
}

// Sinks fans a result out to several sinks, stopping at the first failure.
type Sinks []ResultSink

func (s Sinks) Write(result ExperimentResult) error {
	for _, sink := range s {
		if err := sink.Write(result); err != nil {
			return err
		}
	}
	return nil
}
