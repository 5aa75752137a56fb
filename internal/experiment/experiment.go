// Package experiment ties configuration, stimulus data, sequence compilation
// and the monitor together into a runnable experiment.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/spaun-sim/stimseq/internal/config"
	"github.com/spaun-sim/stimseq/internal/logging"
	"github.com/spaun-sim/stimseq/internal/monitor"
	"github.com/spaun-sim/stimseq/internal/schedule"
	"github.com/spaun-sim/stimseq/internal/sequence"
	"github.com/spaun-sim/stimseq/internal/stimulus"
	"github.com/spaun-sim/stimseq/internal/store"
)

// syntheticPerLabel is how many images each label gets in the synthetic set.
const syntheticPerLabel = 5

// Experiment holds everything needed to compile and run sequences under one
// configuration.
type Experiment struct {
	Config *config.Config
	Images *stimulus.ImageSet
	Logger *slog.Logger
	Events *logging.EventLogger
}

// New loads the configured image set, or builds the synthetic one when none
// is configured. The synthetic set is the same for every run so that fixed
// image indexes are stable.
func New(cfg *config.Config, logger *slog.Logger, events *logging.EventLogger) (*Experiment, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	var images *stimulus.ImageSet
	if cfg.Data.ImageSet != "" {
		var err error
		images, err = stimulus.LoadImageSet(cfg.Data.ImageSet)
		if err != nil {
			return nil, fmt.Errorf("loading image set: %w", err)
		}
		logger.Debug("loaded image set", "path", cfg.Data.ImageSet, "images", images.Len())
	} else {
		images = stimulus.SyntheticImageSet(cfg.Vocab.VisDim, syntheticPerLabel, sequence.NewRand(0))
		logger.Debug("using synthetic image set", "images", images.Len(), "dim", cfg.Vocab.VisDim)
	}

	return &Experiment{Config: cfg, Images: images, Logger: logger, Events: events}, nil
}

// WithConfig returns an experiment that shares e's images and loggers but
// compiles under cfg.
func (e *Experiment) WithConfig(cfg *config.Config) *Experiment {
	cp := *e
	cp.Config = cfg
	return &cp
}

// Prepared is a compiled sequence laid out on the configured timing.
type Prepared struct {
	Compiled        *sequence.Compiled
	Schedule        *schedule.Schedule
	Warnings        []schedule.Warning
	SeparateRepeats bool
}

// Record returns the storable form of the prepared schedule.
func (p *Prepared) Record(now time.Time) *store.Schedule {
	return store.NewSchedule(p.Compiled, p.Schedule.Timing(), p.SeparateRepeats, now)
}

// Prepare compiles raw with seed and builds its schedule. Warnings about
// list lengths are logged but do not fail the call.
func (e *Experiment) Prepare(raw string, seed uint64) (*Prepared, error) {
	timing := e.Config.Timing()
	separate := e.Config.SeparateRepeats()
	compiled, err := sequence.Compile(raw, sequence.Options{
		Timing:          timing,
		SeparateRepeats: separate,
		Images:          e.Images,
		Seed:            seed,
	})
	if err != nil {
		e.Events.Log("compile_error", map[string]any{"raw": raw, "seed": seed, "error": err.Error()})
		return nil, err
	}

	sched, err := schedule.New(compiled.Stream, timing)
	if err != nil {
		return nil, err
	}
	warnings := sched.Validate(e.Config.Stimulus.MaxEnumListPos)
	for _, w := range warnings {
		e.Logger.Warn("schedule warning", "step", w.Step, "msg", w.Msg)
	}

	e.Logger.Info("compiled sequence", "steps", sched.Len(), "runtime", sched.EstRuntime(), "seed", seed)
	e.Logger.Log(context.Background(), logging.LevelTrace, "resolved stream",
		"expanded", compiled.Expanded, "stream", compiled.Stream.String())
	e.Events.Log("compile", map[string]any{
		"raw":      raw,
		"expanded": compiled.Expanded,
		"seed":     seed,
		"steps":    sched.Len(),
		"runtime":  sched.EstRuntime(),
		"warnings": len(warnings),
	})

	return &Prepared{Compiled: compiled, Schedule: sched, Warnings: warnings, SeparateRepeats: separate}, nil
}

// MotorSource reports the motor state at simulated time t.
type MotorSource func(t float64) monitor.MotorInput

// IdleMotor never writes.
func IdleMotor(float64) monitor.MotorInput { return monitor.MotorInput{} }

// ReplayMotor writes the characters of response one after another starting
// at start, each taking interval seconds: the ramp is high for the first
// half of the interval and low for the second.
func ReplayMotor(response string, start, interval float64) MotorSource {
	outputs := []rune(response)
	return func(t float64) monitor.MotorInput {
		if interval <= 0 || t < start {
			return monitor.MotorInput{}
		}
		k := int((t - start) / interval)
		if k >= len(outputs) {
			return monitor.MotorInput{}
		}
		phase := math.Mod(t-start, interval) / interval
		in := monitor.MotorInput{Select: motorSelect(outputs[k])}
		if phase < 0.5 {
			in.Ramp = 1
		}
		return in
	}
}

func motorSelect(c rune) []float64 {
	sel := make([]float64, 11)
	switch {
	case c >= '0' && c <= '9':
		sel[c-'0'] = 1
	case c == '-':
		sel[10] = 1
	}
	return sel
}

// RunResult summarizes a stepping loop run.
type RunResult struct {
	Steps        int     `json:"steps"`
	VisibleSteps int     `json:"visible_steps"`
	VocabSteps   int     `json:"vocab_steps"`
	Presented    int     `json:"presented"`
	MotorWrites  int     `json:"motor_writes"`
	SimTime      float64 `json:"sim_time"`
}

// Run drives the per-timestep stimulus functions over the whole schedule at
// the configured sim_dt, feeding the monitor as a simulator would. A nil mon
// or motor is logged as a warning and left unconnected.
func (e *Experiment) Run(ctx context.Context, p *Prepared, mon *monitor.Monitor, motor MotorSource) (RunResult, error) {
	switch {
	case mon == nil:
		e.Logger.Warn("monitor missing, trace not written")
	case motor == nil:
		e.Logger.Warn("monitor cannot connect from motor source, motor channel idle")
		motor = IdleMotor
	}
	vocab, err := stimulus.NewVocabulary(e.Config.Vocab.SPDim,
		stimulus.VisualKeys(e.Config.Stimulus.MaxEnumListPos), sequence.NewRand(p.Compiled.Seed+1))
	if err != nil {
		return RunResult{}, err
	}

	visFunc := p.Schedule.StimulusFunc(e.Images)
	vocabFunc := p.Schedule.StimulusFunc(vocab)

	dt := e.Config.Stimulus.SimDt
	runtime := p.Schedule.EstRuntime()
	n := int(math.Ceil(runtime / dt))

	var res RunResult
	for i := range n {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		t := float64(i) * dt
		if visFunc(t).Index >= 0 {
			res.VisibleSteps++
		}
		if vocabFunc(t).Index >= 0 {
			res.VocabSteps++
		}
		if mon != nil {
			if err := mon.Observe(t, motor(t)); err != nil {
				return res, fmt.Errorf("monitor at t=%g: %w", t, err)
			}
		}
		res.Steps++
		res.SimTime = t + dt
	}

	if mon != nil {
		res.Presented, res.MotorWrites = mon.Counts()
	}
	e.Events.Log("run", map[string]any{
		"steps":        res.Steps,
		"visible":      res.VisibleSteps,
		"presented":    res.Presented,
		"motor_writes": res.MotorWrites,
		"sim_time":     res.SimTime,
	})
	return res, nil
}
