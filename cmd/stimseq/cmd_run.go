package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"time"

	"github.com/spaun-sim/stimseq/internal/experiment"
	"github.com/spaun-sim/stimseq/internal/monitor"
	"github.com/spaun-sim/stimseq/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [sequence]",
		Short: "Dry-run the stepping loop and write the monitor trace",
		Long: `Step through a compiled schedule at stimulus.sim_dt, evaluating the
visual and vocabulary stimulus functions at every timestep and feeding
the monitor, which writes the presented sequence to the trace log.

--motor replays a response through the monitor's motor channel, one
character per --motor-interval seconds starting at --motor-start (by
default, right after the last stimulus).

The schedule and the run are recorded in the project history.

Examples:
  stimseq run 'A0[#1]?X' --seed 3
  stimseq run 'A3[123]?XXX' --motor 321 --log /tmp/trace.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			seedFlag, _ := cmd.Flags().GetInt64("seed")
			response, _ := cmd.Flags().GetString("motor")
			motorStart, _ := cmd.Flags().GetFloat64("motor-start")
			motorInterval, _ := cmd.Flags().GetFloat64("motor-interval")
			logPath, _ := cmd.Flags().GetString("log")

			exp, err := experiment.New(e.cfg, e.logger, e.events)
			if err != nil {
				return err
			}
			p, err := exp.Prepare(sequenceArg(e, args), e.seed(seedFlag))
			if err != nil {
				return err
			}

			if logPath == "" {
				logPath = e.cfg.MonitorLogPath(e.root)
			}
			startedAt := time.Now()
			mon, err := monitor.Open(logPath, p.Schedule, e.cfg.Properties(), startedAt)
			if err != nil {
				return err
			}
			defer mon.Close()

			var motor experiment.MotorSource = experiment.IdleMotor
			if response != "" {
				if motorStart < 0 {
					motorStart = lastStimulusEnd(p)
				}
				if motorInterval <= 0 {
					motorInterval = e.cfg.Stimulus.MtrEstDigitResponseTime
				}
				motor = experiment.ReplayMotor(response, motorStart, motorInterval)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
			defer stop()

			res, err := exp.Run(ctx, p, mon, motor)
			if err != nil {
				return err
			}
			if err := mon.Close(); err != nil {
				return fmt.Errorf("failed to close monitor log: %w", err)
			}

			rec := p.Record(startedAt)
			run := store.Run{
				ScheduleID:  rec.ID,
				StartedAt:   startedAt,
				FinishedAt:  time.Now(),
				Steps:       res.Steps,
				Presented:   res.Presented,
				MotorWrites: res.MotorWrites,
				LogPath:     logPath,
			}
			if run.ID, err = recordRun(cmd.Context(), e.root, rec, run); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if e.jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"schedule_id": rec.ID,
					"run_id":      run.ID,
					"seed":        rec.Seed,
					"log_path":    logPath,
					"result":      res,
				})
			}

			fmt.Fprintf(out, "Ran %s (seed %d): %d timesteps, %.3fs simulated\n", rec.ID, rec.Seed, res.Steps, res.SimTime)
			fmt.Fprintf(out, "  Visible steps: %d\n", res.VisibleSteps)
			fmt.Fprintf(out, "  Presented:     %d\n", res.Presented)
			fmt.Fprintf(out, "  Motor writes:  %d\n", res.MotorWrites)
			fmt.Fprintf(out, "  Trace log:     %s\n", logPath)
			return nil
		},
	}

	cmd.Flags().Int64("seed", -1, "Random seed (negative uses stimulus.seed from config)")
	cmd.Flags().String("motor", "", "Response to replay through the motor channel (digits and '-')")
	cmd.Flags().Float64("motor-start", -1, "Simulated time of the first motor response (negative: after the last stimulus)")
	cmd.Flags().Float64("motor-interval", 0, "Seconds per motor response (default stimulus.mtr_est_digit_response_time)")
	cmd.Flags().String("log", "", "Trace log path (default <data_dir>/<probe name>_log.txt)")

	return cmd
}

// lastStimulusEnd is the time at which the last non-blank step finishes.
func lastStimulusEnd(p *experiment.Prepared) float64 {
	stream := p.Schedule.Stream()
	last := -1
	for i, sym := range stream {
		if sym.IsStimulus() {
			last = i
		}
	}
	return float64(last+1) * p.Schedule.Timing().StepDuration()
}

func recordRun(ctx context.Context, root string, rec *store.Schedule, run store.Run) (int64, error) {
	st, err := store.NewSQLiteStore(ctx, root)
	if err != nil {
		return 0, fmt.Errorf("failed to open schedule store: %w", err)
	}
	defer st.Close()

	if _, err := st.SaveSchedule(ctx, rec); err != nil {
		return 0, fmt.Errorf("failed to save schedule: %w", err)
	}
	id, err := st.RecordRun(ctx, run)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}
