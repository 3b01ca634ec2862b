package main

import (
	"context"
	"fmt"
	"time"
)

const defaultErrorDelay = 200 * time.Millisecond

type Executor struct {
	Runner ScriptRunner
	// ErrorDelay gives a failed engine time to release file locks.
	ErrorDelay time.Duration
}

// Execute runs one experiment up to n_runs times on the given slot. The first
// crash, timeout or missing profile ends the experiment early; the samples
// gathered so far are returned. Configuration errors and cancellation of ctx
// are returned as errors.
func (e *Executor) Execute(ctx context.Context, experiment Experiment, slot int) (ExperimentResult, error) {
	result := NewExperimentResult(experiment)
	system := experiment.System
	identifier := SystemIdentifier(system)

	script, err := ComposeScript(system, experiment.Data, experiment.Query, experiment.SystemSetting, slot)
	if err != nil {
		return result, fmt.Errorf("failed to compose script for %v: %w", experiment.Name, err)
	}
	command := system.RunCommand()
	timeout := time.Duration(experiment.Settings.Timeout) * time.Second

	for i := 0; i < experiment.Settings.Runs; i++ {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		clearCachesIfNeeded(experiment.Settings)

		Logger.Debugf("running %v #%v/%v on %v (slot %v)", experiment.Name, i+1, experiment.Settings.Runs, identifier, slot)
		status := e.Runner.RunScript(ctx, command, script, slot, timeout)
		if ctx.Err() != nil {
			// the run was killed by the cancellation, not by the engine
			if _, err := system.ReadMetrics(slot); err != nil {
				Logger.Warnf("failed to drain metrics of cancelled %v: %v", experiment.Name, err)
			}
			return result, ctx.Err()
		}
		if status != StatusSuccess {
			Logger.Errorf("error in running %v for %v: %v", identifier, experiment.Name, status)
			e.pause()
			if status == StatusCrash || status == StatusTimeout {
				// a failed engine may still have written a profile; the next
				// experiment on this slot must not pick it up
				if _, err := system.ReadMetrics(slot); err != nil {
					return result, fmt.Errorf("failed to read metrics for %v: %w", experiment.Name, err)
				}
				break
			}
		}

		metrics, err := system.ReadMetrics(slot)
		if err != nil {
			return result, fmt.Errorf("failed to read metrics for %v: %w", experiment.Name, err)
		}
		if metrics == nil {
			Logger.Errorf("no metrics retrieved for %v in %v", identifier, experiment.Name)
			break
		}
		result.Add(*metrics)
	}
	return result, nil
}

func (e *Executor) pause() {
	delay := e.ErrorDelay
	if delay == 0 {
		delay = defaultErrorDelay
	}
	time.Sleep(delay)
}
