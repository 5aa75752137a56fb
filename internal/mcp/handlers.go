package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spaun-sim/stimseq/internal/experiment"
	"github.com/spaun-sim/stimseq/internal/pathutil"
	"github.com/spaun-sim/stimseq/internal/ratelimit"
	"github.com/spaun-sim/stimseq/internal/schedule"
	"github.com/spaun-sim/stimseq/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxLookupTimes      = 10000
	maxSequenceLength   = 4096
	scheduleURIPrefix   = "stimseq://schedules/"
)

// registerTools registers all stimseq MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stimseq_parse",
		Description: "Compile a task sequence into the resolved stimulus stream and estimate its runtime",
	}, s.handleParse)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stimseq_lookup",
		Description: "Report which stimulus a schedule shows at given simulated times",
	}, s.handleLookup)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "stimseq_history",
		Description: "List, show or export stored schedules and their runs",
	}, s.handleHistory)
}

// registerResources registers MCP resources.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: scheduleURIPrefix + "{id}",
		Name:        "stimseq-schedule",
		Description: "A stored schedule with its resolved stream, as JSON.",
		MIMEType:    "application/json",
	}, s.handleScheduleResource)
}

// handleScheduleResource returns a stored schedule as JSON.
// URI format: stimseq://schedules/{id}
func (s *Server) handleScheduleResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, scheduleURIPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, scheduleURIPrefix)
	if id == "" {
		return nil, fmt.Errorf("schedule ID is required")
	}

	sch, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	if sch == nil {
		return nil, fmt.Errorf("schedule not found: %s", id)
	}

	data, err := json.MarshalIndent(sch, "", "  ")
	if err != nil {
		return nil, err
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

// handleParse implements the stimseq_parse tool.
func (s *Server) handleParse(ctx context.Context, req *sdk.CallToolRequest, args ParseInput) (_ *sdk.CallToolResult, _ ParseOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stimseq_parse", start, retErr, sanitizeToolParams(map[string]any{
			"sequence": args.Sequence, "seed": derefInt64(args.Seed),
			"present_interval": args.PresentInterval, "present_blanks": derefBool(args.PresentBlanks),
			"save": args.Save,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stimseq_parse"); err != nil {
		return nil, ParseOutput{}, err
	}
	if strings.TrimSpace(args.Sequence) == "" {
		return nil, ParseOutput{}, fmt.Errorf("'sequence' parameter is required")
	}
	if err := checkSequenceLength(args.Sequence); err != nil {
		return nil, ParseOutput{}, err
	}

	exp, err := s.experimentFor(args.PresentInterval, args.PresentBlanks)
	if err != nil {
		return nil, ParseOutput{}, err
	}
	p, err := exp.Prepare(args.Sequence, s.seedFor(exp, args.Seed))
	if err != nil {
		return nil, ParseOutput{}, err
	}

	out := ParseOutput{
		Expanded: p.Compiled.Expanded,
		Stream:   make([]string, len(p.Compiled.Stream)),
		Steps:    p.Schedule.Len(),
		Runtime:  p.Schedule.EstRuntime(),
		Seed:     p.Compiled.Seed,
	}
	for i, sym := range p.Compiled.Stream {
		out.Stream[i] = sym.String()
		if sym.IsStimulus() {
			out.Symbols++
		}
	}
	for _, w := range p.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}

	if args.Save {
		id, err := s.store.SaveSchedule(ctx, p.Record(s.now()))
		if err != nil {
			return nil, ParseOutput{}, fmt.Errorf("failed to save schedule: %w", err)
		}
		out.ScheduleID = id
	}
	return nil, out, nil
}

// handleLookup implements the stimseq_lookup tool.
func (s *Server) handleLookup(ctx context.Context, req *sdk.CallToolRequest, args LookupInput) (_ *sdk.CallToolResult, _ LookupOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stimseq_lookup", start, retErr, sanitizeToolParams(map[string]any{
			"schedule_id": args.ScheduleID, "sequence": args.Sequence,
			"seed": derefInt64(args.Seed), "times": len(args.Times),
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stimseq_lookup"); err != nil {
		return nil, LookupOutput{}, err
	}
	if len(args.Times) == 0 {
		return nil, LookupOutput{}, fmt.Errorf("'times' parameter is required")
	}
	if len(args.Times) > maxLookupTimes {
		return nil, LookupOutput{}, fmt.Errorf("too many times: %d (max %d)", len(args.Times), maxLookupTimes)
	}

	sched, err := s.lookupSchedule(ctx, args)
	if err != nil {
		return nil, LookupOutput{}, err
	}

	out := LookupOutput{ScheduleID: args.ScheduleID, Results: make([]LookupResult, len(args.Times))}
	for i, t := range args.Times {
		sym, visible := sched.At(t)
		r := LookupResult{Time: t, Step: sched.Step(t), Visible: visible}
		if visible {
			r.Symbol = sym.String()
		}
		out.Results[i] = r
	}
	return nil, out, nil
}

func (s *Server) lookupSchedule(ctx context.Context, args LookupInput) (*schedule.Schedule, error) {
	switch {
	case args.ScheduleID != "":
		sch, err := s.store.GetSchedule(ctx, args.ScheduleID)
		if err != nil {
			return nil, fmt.Errorf("failed to get schedule: %w", err)
		}
		if sch == nil {
			return nil, fmt.Errorf("schedule not found: %s", args.ScheduleID)
		}
		return schedule.New(sch.Stream, sch.Timing)
	case strings.TrimSpace(args.Sequence) != "":
		if err := checkSequenceLength(args.Sequence); err != nil {
			return nil, err
		}
		p, err := s.exp.Prepare(args.Sequence, s.seedFor(s.exp, args.Seed))
		if err != nil {
			return nil, err
		}
		return p.Schedule, nil
	default:
		return nil, errors.New("one of 'schedule_id' or 'sequence' is required")
	}
}

func checkSequenceLength(seq string) error {
	if len(seq) > maxSequenceLength {
		return fmt.Errorf("'sequence' exceeds %d bytes", maxSequenceLength)
	}
	return nil
}

// handleHistory implements the stimseq_history tool.
func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (_ *sdk.CallToolResult, _ HistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("stimseq_history", start, retErr, sanitizeToolParams(map[string]any{
			"schedule_id": args.ScheduleID, "limit": args.Limit, "export_path": args.ExportPath,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "stimseq_history"); err != nil {
		return nil, HistoryOutput{}, err
	}

	var out HistoryOutput
	if args.ScheduleID != "" {
		sch, err := s.store.GetSchedule(ctx, args.ScheduleID)
		if err != nil {
			return nil, HistoryOutput{}, fmt.Errorf("failed to get schedule: %w", err)
		}
		if sch == nil {
			return nil, HistoryOutput{}, fmt.Errorf("schedule not found: %s", args.ScheduleID)
		}
		runs, err := s.store.ListRuns(ctx, sch.ID)
		if err != nil {
			return nil, HistoryOutput{}, fmt.Errorf("failed to list runs: %w", err)
		}
		out.Schedules = []ScheduleListItem{toListItem(*sch)}
		for _, r := range runs {
			out.Runs = append(out.Runs, RunListItem{
				ID: r.ID, StartedAt: r.StartedAt, Steps: r.Steps,
				Presented: r.Presented, MotorWrites: r.MotorWrites,
			})
		}
	} else {
		limit := args.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		schedules, err := s.store.ListSchedules(ctx, limit)
		if err != nil {
			return nil, HistoryOutput{}, fmt.Errorf("failed to list schedules: %w", err)
		}
		out.Schedules = make([]ScheduleListItem, 0, len(schedules))
		for _, sch := range schedules {
			out.Schedules = append(out.Schedules, toListItem(sch))
		}
	}
	out.Count = len(out.Schedules)

	if args.ExportPath != "" {
		path, err := s.export(ctx, args.ExportPath)
		if err != nil {
			return nil, HistoryOutput{}, err
		}
		out.ExportedTo = path
	}
	return nil, out, nil
}

// export writes all schedules as JSONL to a path inside the export
// directories. Relative paths are taken from the project root.
func (s *Server) export(ctx context.Context, dest string) (string, error) {
	confine := pathutil.ExportConfinement(s.root, s.exp.Config.DataPath(s.root))
	path, err := confine.Resolve(dest)
	if err != nil {
		return "", fmt.Errorf("export path rejected: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := s.store.ExportJSONL(ctx, f); err != nil {
		f.Close()
		return "", fmt.Errorf("export failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// experimentFor applies per-call timing overrides to the server experiment.
func (s *Server) experimentFor(interval float64, blanks *bool) (*experiment.Experiment, error) {
	if interval == 0 && blanks == nil {
		return s.exp, nil
	}
	cfg := *s.exp.Config
	if interval != 0 {
		cfg.Stimulus.PresentInterval = interval
	}
	if blanks != nil {
		cfg.Stimulus.PresentBlanks = *blanks
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return s.exp.WithConfig(&cfg), nil
}

func (s *Server) seedFor(exp *experiment.Experiment, seed *int64) uint64 {
	if seed != nil && *seed >= 0 {
		return uint64(*seed)
	}
	cfg := *exp.Config
	if seed != nil {
		cfg.Stimulus.Seed = *seed
	}
	return cfg.ResolveSeed(s.now())
}

func toListItem(sch store.Schedule) ScheduleListItem {
	return ScheduleListItem{
		ID:        sch.ID,
		Raw:       sch.Raw,
		Seed:      sch.Seed,
		Steps:     len(sch.Stream),
		Runtime:   sch.Runtime,
		CreatedAt: sch.CreatedAt,
	}
}

func derefInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}
