package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spaun-sim/stimseq/internal/experiment"
	"github.com/spaun-sim/stimseq/internal/store"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [sequence]",
		Short: "Compile a task sequence and show its stimulus stream",
		Long: `Expand and resolve a task sequence into its stimulus stream.

Without an argument the configured stimulus.raw_seq is compiled. The
resulting schedule is stored in the project history unless --no-save
is given.

Examples:
  stimseq parse 'A0[#1]?X'
  stimseq parse '{A3[#1#2]?X:2}' --seed 7
  stimseq parse 'A2[432]?XX' --json --no-save`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			noSave, _ := cmd.Flags().GetBool("no-save")
			seedFlag, _ := cmd.Flags().GetInt64("seed")

			exp, err := experiment.New(e.cfg, e.logger, e.events)
			if err != nil {
				return err
			}
			p, err := exp.Prepare(sequenceArg(e, args), e.seed(seedFlag))
			if err != nil {
				return err
			}

			rec := p.Record(time.Now())
			if !noSave {
				if err := saveSchedule(cmd.Context(), e.root, rec); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if e.jsonOut {
				result := map[string]any{
					"raw":      rec.Raw,
					"expanded": rec.Expanded,
					"seed":     rec.Seed,
					"stream":   rec.Stream,
					"steps":    len(rec.Stream),
					"symbols":  rec.Symbols,
					"runtime":  rec.Runtime,
					"warnings": p.Warnings,
				}
				if !noSave {
					result["schedule_id"] = rec.ID
				}
				return json.NewEncoder(out).Encode(result)
			}

			fmt.Fprintf(out, "Sequence: %s\n", rec.Raw)
			if rec.Expanded != rec.Raw {
				fmt.Fprintf(out, "Expanded: %s\n", rec.Expanded)
			}
			fmt.Fprintf(out, "Seed:     %d\n", rec.Seed)
			fmt.Fprintf(out, "Steps:    %d (%d stimuli, est. runtime %.3fs)\n", len(rec.Stream), rec.Symbols, rec.Runtime)
			fmt.Fprintf(out, "Stream:   %s\n", rec.Stream.String())
			for _, w := range p.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if !noSave {
				fmt.Fprintf(out, "Saved as %s\n", rec.ID)
			}
			return nil
		},
	}

	cmd.Flags().Int64("seed", -1, "Random seed (negative uses stimulus.seed from config)")
	cmd.Flags().Bool("no-save", false, "Do not store the schedule in history")

	return cmd
}

// sequenceArg returns the sequence given on the command line, or the
// configured one.
func sequenceArg(e *env, args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	return e.cfg.Stimulus.RawSeq
}

// seed returns flag when it is non-negative, else the configured seed.
func (e *env) seed(flag int64) uint64 {
	if flag >= 0 {
		return uint64(flag)
	}
	return e.cfg.ResolveSeed(time.Now())
}

func saveSchedule(ctx context.Context, root string, rec *store.Schedule) error {
	st, err := store.NewSQLiteStore(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to open schedule store: %w", err)
	}
	defer st.Close()

	if _, err := st.SaveSchedule(ctx, rec); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}
