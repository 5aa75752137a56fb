package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spaun-sim/stimseq/internal/config"
	"github.com/spaun-sim/stimseq/internal/experiment"
	"github.com/spaun-sim/stimseq/internal/logging"
	"github.com/spaun-sim/stimseq/internal/ratelimit"
	"github.com/spaun-sim/stimseq/internal/store"
)

// Server wraps the MCP SDK server and provides stimseq tools.
type Server struct {
	server       *sdk.Server
	store        store.ScheduleStore
	exp          *experiment.Experiment
	root         string
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	now          func() time.Time
	closeOnce    sync.Once
}

// Config holds server configuration.
type Config struct {
	Name     string         // Server name (e.g., "stimseq")
	Version  string         // Server version
	Root     string         // Project root directory
	Settings *config.Config // Loaded stimseq configuration; defaults when nil
	Logger   *slog.Logger
	Events   *logging.EventLogger

	// Store overrides the project SQLite store. The server closes it.
	Store store.ScheduleStore
}

// NewServer creates a new MCP server with stimseq tools.
func NewServer(ctx context.Context, cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	exp, err := experiment.New(settings, cfg.Logger, cfg.Events)
	if err != nil {
		return nil, err
	}

	st := cfg.Store
	if st == nil {
		sqlStore, err := store.NewSQLiteStore(ctx, cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to open schedule store: %w", err)
		}
		st = sqlStore
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:       mcpServer,
		store:        st,
		exp:          exp,
		root:         cfg.Root,
		toolLimiters: ratelimit.NewToolLimiters(),
		auditLogger:  NewAuditLogger(store.StimseqDir(cfg.Root)),
		now:          time.Now,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the server and releases resources. Safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.store.Close()
		if aerr := s.auditLogger.Close(); err == nil {
			err = aerr
		}
	})
	return err
}
