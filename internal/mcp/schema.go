// Package mcp provides an MCP (Model Context Protocol) server for stimseq.
package mcp

import (
	"time"
)

// ParseInput defines the input for the stimseq_parse tool.
type ParseInput struct {
	Sequence        string  `json:"sequence" jsonschema:"Task sequence text (e.g. 'A0[#1]?X')"`
	Seed            *int64  `json:"seed,omitempty" jsonschema:"Random seed; omitted or negative picks one"`
	PresentInterval float64 `json:"present_interval,omitempty" jsonschema:"Seconds each step is shown (default from config)"`
	PresentBlanks   *bool   `json:"present_blanks,omitempty" jsonschema:"Show a blank after every step (default from config)"`
	Save            bool    `json:"save,omitempty" jsonschema:"Store the schedule in history (default: false)"`
}

// ParseOutput defines the output for the stimseq_parse tool.
type ParseOutput struct {
	ScheduleID string   `json:"schedule_id,omitempty" jsonschema:"History ID when saved"`
	Expanded   string   `json:"expanded" jsonschema:"Sequence after multiplicative and custom task expansion"`
	Stream     []string `json:"stream" jsonschema:"Resolved steps in order ('_' blank, '.' separator)"`
	Steps      int      `json:"steps" jsonschema:"Number of steps"`
	Symbols    int      `json:"symbols" jsonschema:"Steps that show a stimulus"`
	Runtime    float64  `json:"runtime" jsonschema:"Estimated simulated runtime in seconds"`
	Seed       uint64   `json:"seed" jsonschema:"Seed used"`
	Warnings   []string `json:"warnings,omitempty" jsonschema:"Schedule warnings (list lengths, bracket mismatches)"`
}

// LookupInput defines the input for the stimseq_lookup tool.
type LookupInput struct {
	ScheduleID string    `json:"schedule_id,omitempty" jsonschema:"Stored schedule to query"`
	Sequence   string    `json:"sequence,omitempty" jsonschema:"Inline sequence to compile when no schedule_id is given"`
	Seed       *int64    `json:"seed,omitempty" jsonschema:"Seed for an inline sequence"`
	Times      []float64 `json:"times" jsonschema:"Simulated times in seconds"`
}

// LookupOutput defines the output for the stimseq_lookup tool.
type LookupOutput struct {
	ScheduleID string         `json:"schedule_id,omitempty"`
	Results    []LookupResult `json:"results"`
}

// LookupResult is what is shown at one time.
type LookupResult struct {
	Time    float64 `json:"time"`
	Step    int     `json:"step" jsonschema:"Step index, -1 before the start"`
	Visible bool    `json:"visible" jsonschema:"Whether a stimulus is shown (false for gaps, blanks and separators)"`
	Symbol  string  `json:"symbol,omitempty"`
}

// HistoryInput defines the input for the stimseq_history tool.
type HistoryInput struct {
	ScheduleID string `json:"schedule_id,omitempty" jsonschema:"Show one schedule and its runs"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum schedules to list (default: 20)"`
	ExportPath string `json:"export_path,omitempty" jsonschema:"Write all schedules as JSONL to this path (inside .stimseq/exports or the data directory)"`
}

// HistoryOutput defines the output for the stimseq_history tool.
type HistoryOutput struct {
	Schedules  []ScheduleListItem `json:"schedules"`
	Runs       []RunListItem      `json:"runs,omitempty"`
	Count      int                `json:"count"`
	ExportedTo string             `json:"exported_to,omitempty"`
}

// ScheduleListItem provides a list view of a stored schedule.
type ScheduleListItem struct {
	ID        string    `json:"id"`
	Raw       string    `json:"raw"`
	Seed      uint64    `json:"seed"`
	Steps     int       `json:"steps"`
	Runtime   float64   `json:"runtime"`
	CreatedAt time.Time `json:"created_at"`
}

// RunListItem provides a list view of a run.
type RunListItem struct {
	ID          int64     `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	Steps       int       `json:"steps"`
	Presented   int       `json:"presented"`
	MotorWrites int       `json:"motor_writes"`
}
