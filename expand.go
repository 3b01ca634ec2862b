package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
)

const RunDateFormat = "2006-01-02-15-04-05"

// AvailableCores reports the logical core count of the host.
var AvailableCores = func() int {
	count, err := cpu.Counts(true)
	if err != nil || count == 0 {
		return runtime.NumCPU()
	}
	return count
}

// ExpandExperiments turns a run config into the ordered list of experiments
// (benchmark -> query -> dataset -> system -> system setting), sliced by the
// offset and max_n_experiments settings.
func ExpandExperiments(config RunConfig, now time.Time) ([]Experiment, RunSettingsInternal, error) {
	settings := config.RunSettings.WithDefaults()
	if len(config.SystemSettings) == 0 {
		return nil, settings, fmt.Errorf("run %v has no system settings", config.Name)
	}
	if settings.Parallel < 1 {
		return nil, settings, fmt.Errorf("n_parallel must be positive, got %v", settings.Parallel)
	}
	if settings.Offset < 0 {
		return nil, settings, fmt.Errorf("offset must not be negative, got %v", settings.Offset)
	}

	maxThreads := 0
	for _, setting := range config.SystemSettings {
		maxThreads = max(maxThreads, setting.Threads)
	}
	required, available := settings.Parallel*maxThreads, AvailableCores()
	if required > available {
		Logger.Warnf("number of cores required (%v) is greater than the number of cores available (%v)", required, available)
	} else {
		Logger.Infof("number of cores required (%v), available (%v)", required, available)
	}

	runDate := now.Format(RunDateFormat)
	experiments := make([]Experiment, 0)
	index := 0
	for _, benchmark := range config.Benchmarks {
		for _, query := range benchmark.Queries {
			for _, data := range benchmark.Datasets {
				for _, system := range config.Systems {
					for _, setting := range config.SystemSettings {
						experiments = append(experiments, Experiment{
							ID:            ExperimentID(benchmark.Name, query, data, system, setting),
							Name:          fmt.Sprintf("%v-experiment-%v", benchmark.Name, index),
							Benchmark:     benchmark.Name,
							RunName:       config.Name,
							RunDate:       runDate,
							Data:          data,
							Settings:      settings,
							Query:         query,
							SystemSetting: setting,
							System:        system,
						})
						index++
					}
				}
			}
		}
	}
	total := len(experiments)

	seen := make(map[string]string, total)
	for _, experiment := range experiments {
		if other, ok := seen[experiment.ID]; ok {
			return nil, settings, fmt.Errorf(
				"experiments %v and %v are identical (%v on %v with %v threads): check for repeated benchmarks, datasets or system settings",
				other, experiment.Name, experiment.Query.Name, experiment.Data.Name, experiment.SystemSetting.Threads,
			)
		}
		seen[experiment.ID] = experiment.Name
	}

	start := min(settings.Offset, total)
	end := total
	if settings.MaxExperiments != nil {
		end = min(start+max(*settings.MaxExperiments, 0), total)
	}
	experiments = experiments[start:end]

	Logger.Infof(
		"created %v of %v experiments from %v benchmarks, %v systems and %v system settings",
		len(experiments), total, len(config.Benchmarks), len(config.Systems), len(config.SystemSettings),
	)
	return experiments, settings, nil
}
