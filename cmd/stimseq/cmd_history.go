package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spaun-sim/stimseq/internal/backup"
	"github.com/spaun-sim/stimseq/internal/store"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage stored schedules",
		Long: `List, inspect, delete, export and import the schedules stored in
.stimseq/stimseq.db under the project root.

Examples:
  stimseq history list --limit 5
  stimseq history show sch-0123456789abcdef
  stimseq history export schedules.jsonl
  stimseq history import schedules.jsonl
  stimseq history backup --keep 5
  stimseq history restore .stimseq/backups/stimseq-backup-20260101-120000.000.jsonl.gz`,
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryDeleteCmd(),
		newHistoryExportCmd(),
		newHistoryImportCmd(),
		newHistoryBackupCmd(),
		newHistoryRestoreCmd(),
	)

	return cmd
}

// withStore opens the project store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.SQLiteStore) error) error {
	root, _ := cmd.Flags().GetString("root")
	ctx := cmd.Context()
	st, err := store.NewSQLiteStore(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to open schedule store: %w", err)
	}
	defer st.Close()
	return fn(ctx, st)
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored schedules, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
				schedules, err := st.ListSchedules(ctx, limit)
				if err != nil {
					return fmt.Errorf("failed to list schedules: %w", err)
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]any{
						"schedules": schedules,
						"count":     len(schedules),
					})
				}

				if len(schedules) == 0 {
					fmt.Fprintln(out, "No stored schedules.")
					return nil
				}
				fmt.Fprintf(out, "%-20s %-20s %6s %9s  %s\n", "ID", "CREATED", "STEPS", "RUNTIME", "SEQUENCE")
				for _, s := range schedules {
					fmt.Fprintf(out, "%-20s %-20s %6d %8.2fs  %s\n",
						s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04:05"), len(s.Stream), s.Runtime, s.Raw)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum schedules to list (0 for all)")

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored schedule and its runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
				s, err := st.GetSchedule(ctx, args[0])
				if err != nil {
					return err
				}
				if s == nil {
					return fmt.Errorf("schedule not found: %s", args[0])
				}
				runs, err := st.ListRuns(ctx, s.ID)
				if err != nil {
					return fmt.Errorf("failed to list runs: %w", err)
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]any{
						"schedule": s,
						"runs":     runs,
					})
				}

				fmt.Fprintf(out, "Schedule %s\n", s.ID)
				fmt.Fprintf(out, "  Sequence: %s\n", s.Raw)
				fmt.Fprintf(out, "  Expanded: %s\n", s.Expanded)
				fmt.Fprintf(out, "  Seed:     %d\n", s.Seed)
				fmt.Fprintf(out, "  Timing:   interval %gs, blanks %t, motor %gs, separate repeats %t\n",
					s.Timing.PresentInterval, s.Timing.PresentBlanks, s.Timing.MotorResponseTime, s.SeparateRepeats)
				fmt.Fprintf(out, "  Steps:    %d (%d stimuli, est. runtime %.3fs)\n", len(s.Stream), s.Symbols, s.Runtime)
				fmt.Fprintf(out, "  Stream:   %s\n", s.Stream.String())
				fmt.Fprintf(out, "  Created:  %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"))

				if len(runs) > 0 {
					fmt.Fprintf(out, "\nRuns (%d):\n", len(runs))
					for _, r := range runs {
						fmt.Fprintf(out, "  #%d  %s  %d steps, %d presented, %d motor writes  %s\n",
							r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Steps, r.Presented, r.MotorWrites, r.LogPath)
					}
				}
				return nil
			})
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored schedule and its runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
				s, err := st.GetSchedule(ctx, args[0])
				if err != nil {
					return err
				}
				if s == nil {
					return fmt.Errorf("schedule not found: %s", args[0])
				}
				if err := st.DeleteSchedule(ctx, s.ID); err != nil {
					return fmt.Errorf("failed to delete schedule: %w", err)
				}

				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
						"status": "deleted",
						"id":     s.ID,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", s.ID)
				return nil
			})
		},
	}
}

func newHistoryExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Export all schedules as JSONL (stdout when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
				if len(args) == 0 {
					return st.ExportJSONL(ctx, cmd.OutOrStdout())
				}

				path := args[0]
				if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
					return fmt.Errorf("failed to create export directory: %w", err)
				}
				f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				if err := st.ExportJSONL(ctx, f); err != nil {
					f.Close()
					return fmt.Errorf("export failed: %w", err)
				}
				if err := f.Close(); err != nil {
					return err
				}

				jsonOut, _ := cmd.Flags().GetBool("json")
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
						"status": "exported",
						"path":   path,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported schedules to %s\n", path)
				return nil
			})
		},
	}
}

func newHistoryImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Import schedules from a JSONL export ('-' reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open import file: %w", err)
				}
				defer f.Close()
				r = f
			}

			return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
				n, err := store.ImportJSONL(ctx, st, r)
				if err != nil {
					return fmt.Errorf("import failed after %d schedules: %w", n, err)
				}

				jsonOut, _ := cmd.Flags().GetBool("json")
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"status":   "imported",
						"imported": n,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d schedules\n", n)
				return nil
			})
		},
	}
}

func newHistoryBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a compressed snapshot of all stored schedules",
		Long: `Write a gzip-compressed, checksummed snapshot of the schedule store.
Snapshots go to .stimseq/backups under the project root unless --output is
given. --keep prunes older snapshots in that directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			output, _ := cmd.Flags().GetString("output")
			keep, _ := cmd.Flags().GetInt("keep")
			jsonOut, _ := cmd.Flags().GetBool("json")

			now := time.Now()
			path := output
			if path == "" {
				path = backup.GeneratePath(backup.DefaultDir(root), now)
			}

			return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
				header, err := backup.Write(ctx, st, path, now)
				if err != nil {
					return fmt.Errorf("backup failed: %w", err)
				}
				removed, err := backup.Rotate(filepath.Dir(path), keep)
				if err != nil {
					return fmt.Errorf("backup rotation failed: %w", err)
				}

				out := cmd.OutOrStdout()
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]any{
						"path":      path,
						"schedules": header.Schedules,
						"checksum":  header.Checksum,
						"removed":   removed,
					})
				}
				fmt.Fprintf(out, "Backed up %d schedules to %s\n", header.Schedules, path)
				for _, r := range removed {
					fmt.Fprintf(out, "Removed old backup %s\n", filepath.Base(r))
				}
				return nil
			})
		},
	}

	cmd.Flags().String("output", "", "Snapshot file path (default .stimseq/backups/<timestamp>)")
	cmd.Flags().Int("keep", 0, "Keep only the N most recent snapshots (0 keeps all)")

	return cmd
}

func newHistoryRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <path>",
		Short: "Restore schedules from a snapshot written by 'history backup'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			if _, err := backup.Verify(args[0]); err != nil {
				return fmt.Errorf("invalid backup: %w", err)
			}

			return withStore(cmd, func(ctx context.Context, st *store.SQLiteStore) error {
				n, err := backup.Restore(ctx, st, args[0])
				if err != nil {
					return fmt.Errorf("restore failed: %w", err)
				}

				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"status":   "restored",
						"restored": n,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d schedules from %s\n", n, args[0])
				return nil
			})
		},
	}
}
