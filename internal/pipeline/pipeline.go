// Package pipeline runs the stages from raw inputs to response maps:
// Align, Extract, Normalize, Group, Reduce. Each stage completes before the
// next begins and any failure aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"widefield-mapper/internal/conditions"
	"widefield-mapper/internal/config"
	"widefield-mapper/internal/epoch"
	"widefield-mapper/internal/metrics"
	"widefield-mapper/internal/recording"
	"widefield-mapper/internal/response"
	"widefield-mapper/internal/stage"
	"widefield-mapper/internal/trials"
	"widefield-mapper/internal/trigger"
)

// Inputs are the three loaded inputs of a run.
type Inputs struct {
	Recording *recording.Recording
	Trace     trigger.Trace
	Labels    []conditions.Label // untrimmed, including calibration trials
}

// Result is what a completed run produces.
type Result struct {
	RunID      string
	Onsets     []trigger.Onset
	Trials     int // epochs extracted
	Maps       response.Maps
	Degenerate int
}

// LoadInputs reads the recording, trigger trace and condition labels named
// by cfg.
func LoadInputs(cfg config.Config) (*Inputs, error) {
	rec, err := recording.Load(cfg.RecordingPath(), cfg.DownsampleFactor)
	if err != nil {
		return nil, stage.Wrap(stage.Load, err)
	}
	trace, err := trigger.ReadCSV(cfg.TriggersPath(), cfg.TriggerFrameRate)
	if err != nil {
		return nil, stage.Wrap(stage.Load, err)
	}
	labels, err := conditions.Load(cfg.ConditionsPath(), cfg.ConditionColumn)
	if err != nil {
		return nil, stage.Wrap(stage.Load, err)
	}
	return &Inputs{Recording: rec, Trace: trace, Labels: labels}, nil
}

// runner carries per-run state shared by the stage helpers.
type runner struct {
	ctx     context.Context
	id      string
	metrics *metrics.Metrics
}

func (r *runner) logf(format string, args ...interface{}) {
	fmt.Printf("[%s] "+format+"\n", append([]interface{}{r.id}, args...)...)
}

// step runs fn as stage name, timing it and attributing its error. The
// context is only checked before a stage starts.
func (r *runner) step(name stage.Name, fn func() error) error {
	if err := r.ctx.Err(); err != nil {
		return stage.Wrap(name, err)
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	r.metrics.ObserveStage(name, elapsed)
	if err != nil {
		r.logf("[%s] failed after %v: %v", name, elapsed, err)
		return stage.Wrap(name, err)
	}
	r.logf("[%s] done in %v", name, elapsed)
	return nil
}

// Run executes the pipeline over in. m may be nil.
func Run(ctx context.Context, cfg config.Config, in *Inputs, m *metrics.Metrics) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &runner{ctx: ctx, id: uuid.NewString(), metrics: m}
	res := &Result{RunID: r.id}
	rec := in.Recording
	r.logf("Starting run: %d frames of %dx%d, %d trigger samples, %d labels",
		rec.Frames, rec.Height, rec.Width, len(in.Trace), len(in.Labels))

	var labels []conditions.Label
	err := r.step(stage.Align, func() error {
		onsets, err := trigger.Align(in.Trace, cfg)
		if err != nil {
			return err
		}
		if labels, err = conditions.Trim(in.Labels, cfg.CalibrationTriggers); err != nil {
			return err
		}
		if err := conditions.CheckAligned(labels, len(onsets)); err != nil {
			return err
		}
		res.Onsets = onsets
		r.logf("[%s] %d onsets after %d calibration triggers", stage.Align, len(onsets), cfg.CalibrationTriggers)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var epochs []*epoch.Epoch
	err = r.step(stage.Extract, func() error {
		var err error
		epochs, err = epoch.Extract(rec, res.Onsets, cfg)
		res.Trials = len(epochs)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.step(stage.Normalize, func() error {
		var err error
		epochs, err = epoch.Normalize(epochs, cfg.BaselineFrames, cfg.Workers)
		return err
	})
	if err != nil {
		return nil, err
	}

	var groups trials.Groups
	err = r.step(stage.Group, func() error {
		// the final onset yields no epoch, so neither does its label
		var err error
		groups, err = trials.ByCondition(epochs, labels[:len(epochs)])
		if err != nil {
			return err
		}
		for _, l := range groups.Labels() {
			m.AddTrials(l, groups[l].Count())
			r.logf("[%s] condition %d: %d repetitions", stage.Group, l, groups[l].Count())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.step(stage.Reduce, func() error {
		maps, stats, err := response.Reduce(groups, response.Options{
			Window:   response.Window{Start: cfg.ResponseStart, Stop: cfg.ResponseStop},
			Baseline: cfg.BaselineFrames,
			Workers:  cfg.Workers,
			Strict:   cfg.StrictStatistics,
		})
		if err != nil {
			return err
		}
		res.Maps = maps
		res.Degenerate = stats.Degenerate
		m.AddDegenerate(stats.Degenerate)
		if stats.Degenerate > 0 {
			r.logf("[%s] %d trial pixels had a flat baseline", stage.Reduce, stats.Degenerate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logf("Run complete: %d conditions from %d trials", len(res.Maps), res.Trials)
	return res, nil
}
