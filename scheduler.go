package main

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ResultSink receives every finished experiment, including those without
// samples.
type ResultSink interface {
	Write(result ExperimentResult) error
}

type Scheduler struct {
	Executor *Executor
	Sink     ResultSink
	Parallel int
}

type progress struct {
	mu    sync.Mutex
	done  int
	total int
}

func (p *progress) finish(experiment Experiment, samples int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	Logger.Infof("finished %v/%v experiments: %v (%v samples)", p.done, p.total, experiment.Name, samples)
}

// Run executes all experiments. With Parallel > 1 a fixed pool of workers,
// each owning one slot in [0, Parallel), drains a shared queue. A
// configuration error or panic in any worker stops the sweep: no new
// experiments are dequeued and the first error is returned.
func (s *Scheduler) Run(ctx context.Context, experiments []Experiment) error {
	p := &progress{total: len(experiments)}
	if s.Parallel <= 1 {
		Logger.Infof("running %v experiments sequentially", len(experiments))
		for _, experiment := range experiments {
			if err := s.runOne(ctx, experiment, 0, p); err != nil {
				return err
			}
		}
		return ctx.Err()
	}

	Logger.Infof("running %v experiments in parallel with %v workers", len(experiments), s.Parallel)
	queue := make(chan Experiment, len(experiments))
	for _, experiment := range experiments {
		queue <- experiment
	}
	close(queue)

	eg, gctx := errgroup.WithContext(ctx)
	for slot := 0; slot < s.Parallel; slot++ {
		eg.Go(func() error {
			for experiment := range queue {
				if gctx.Err() != nil {
					return nil
				}
				if err := s.runOne(gctx, experiment, slot, p); err != nil {
					Logger.Errorf("worker %v stopped: %v", slot, err)
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Scheduler) runOne(ctx context.Context, experiment Experiment, slot int, p *progress) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("experiment %v panicked: %v", experiment.Name, r)
		}
	}()
	result, err := s.Executor.Execute(ctx, experiment, slot)
	if err != nil {
		return err
	}
	if err := s.Sink.Write(result); err != nil {
		return fmt.Errorf("failed to write result of %v: %w", experiment.Name, err)
	}
	p.finish(experiment, len(result.Runtimes))
	return nil
}
