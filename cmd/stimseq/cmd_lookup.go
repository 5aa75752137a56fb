package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spaun-sim/stimseq/internal/experiment"
	"github.com/spaun-sim/stimseq/internal/schedule"
	"github.com/spaun-sim/stimseq/internal/store"
	"github.com/spf13/cobra"
)

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <time>...",
		Short: "Show which stimulus is presented at simulated times",
		Long: `Report the schedule step and stimulus shown at each simulated time.

Times are in seconds. The schedule is a stored one (--schedule) or is
compiled from --seq, falling back to stimulus.raw_seq from the config.

Examples:
  stimseq lookup 0 0.15 0.3 --seq 'A0[#1]?X' --seed 3
  stimseq lookup 1.2 --schedule sch-0123456789abcdef`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			times := make([]float64, len(args))
			for i, a := range args {
				t, err := strconv.ParseFloat(a, 64)
				if err != nil {
					return fmt.Errorf("invalid time %q: %w", a, err)
				}
				times[i] = t
			}

			scheduleID, _ := cmd.Flags().GetString("schedule")
			seq, _ := cmd.Flags().GetString("seq")
			seedFlag, _ := cmd.Flags().GetInt64("seed")

			var sched *schedule.Schedule
			if scheduleID != "" {
				st, err := store.NewSQLiteStore(cmd.Context(), e.root)
				if err != nil {
					return fmt.Errorf("failed to open schedule store: %w", err)
				}
				defer st.Close()

				rec, err := st.GetSchedule(cmd.Context(), scheduleID)
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("schedule not found: %s", scheduleID)
				}
				if sched, err = schedule.New(rec.Stream, rec.Timing); err != nil {
					return err
				}
			} else {
				exp, err := experiment.New(e.cfg, e.logger, e.events)
				if err != nil {
					return err
				}
				p, err := exp.Prepare(sequenceArg(e, []string{seq}), e.seed(seedFlag))
				if err != nil {
					return err
				}
				sched = p.Schedule
			}

			type result struct {
				Time    float64 `json:"time"`
				Step    int     `json:"step"`
				Visible bool    `json:"visible"`
				Symbol  string  `json:"symbol,omitempty"`
			}
			results := make([]result, len(times))
			for i, t := range times {
				sym, ok := sched.At(t)
				results[i] = result{Time: t, Step: sched.Step(t), Visible: ok}
				if ok {
					results[i].Symbol = sym.String()
				}
			}

			if e.jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"schedule": sched.String(),
					"results":  results,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n", sched)
			fmt.Fprintf(out, "%-10s %-6s %s\n", "TIME", "STEP", "STIMULUS")
			for _, r := range results {
				shown := r.Symbol
				if !r.Visible {
					shown = "(blank)"
				}
				fmt.Fprintf(out, "%-10g %-6d %s\n", r.Time, r.Step, shown)
			}
			return nil
		},
	}

	cmd.Flags().String("schedule", "", "Stored schedule ID")
	cmd.Flags().String("seq", "", "Sequence to compile (default stimulus.raw_seq)")
	cmd.Flags().Int64("seed", -1, "Random seed for --seq (negative uses stimulus.seed from config)")

	return cmd
}
