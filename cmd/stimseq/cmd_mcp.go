package main

import (
	"fmt"

	"github.com/spaun-sim/stimseq/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout.

Tools:
  stimseq_parse    compile a sequence and return its stream and runtime
  stimseq_lookup   stimulus shown at given times for a stored or inline schedule
  stimseq_history  list, show or export stored schedules

Resources:
  stimseq://schedules/{id}  a stored schedule as JSON

Tool calls are audited to .stimseq/audit.jsonl under the project root.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			server, err := mcp.NewServer(cmd.Context(), &mcp.Config{
				Name:     "stimseq",
				Version:  version,
				Root:     e.root,
				Settings: e.cfg,
				Logger:   e.logger,
				Events:   e.events,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			e.logger.Info("mcp server starting", "root", e.root)
			return server.Run(cmd.Context())
		},
	}
}
