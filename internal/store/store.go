// Package store defines the ScheduleStore interface for keeping compiled
// schedules and the runs made from them.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/spaun-sim/stimseq/internal/sequence"
)

// Schedule is a compiled stimulus stream with everything needed to rebuild it.
type Schedule struct {
	ID              string          `json:"id"`
	Raw             string          `json:"raw"`
	Expanded        string          `json:"expanded"`
	Seed            uint64          `json:"seed"`
	Timing          sequence.Timing `json:"timing"`
	SeparateRepeats bool            `json:"separate_repeats"`
	Stream          sequence.Stream `json:"stream"`
	Symbols         int             `json:"symbols"` // stimulus steps, excluding blanks and separators
	Runtime         float64         `json:"runtime"` // seconds
	CreatedAt       time.Time       `json:"created_at"`
}

// Run records one pass of the stepping loop over a schedule.
type Run struct {
	ID          int64     `json:"id"`
	ScheduleID  string    `json:"schedule_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Steps       int       `json:"steps"`
	Presented   int       `json:"presented"`
	MotorWrites int       `json:"motor_writes"`
	LogPath     string    `json:"log_path,omitempty"`
}

// ScheduleStore defines storage for schedules and runs.
type ScheduleStore interface {
	// SaveSchedule stores s and returns its ID. Saving an identical schedule
	// again is a no-op that returns the existing ID.
	SaveSchedule(ctx context.Context, s *Schedule) (string, error)
	// GetSchedule returns the schedule with the given ID, or nil if there is none.
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	// ListSchedules returns schedules newest first. limit <= 0 means all.
	ListSchedules(ctx context.Context, limit int) ([]Schedule, error)
	// DeleteSchedule removes a schedule and its runs.
	DeleteSchedule(ctx context.Context, id string) error

	RecordRun(ctx context.Context, r Run) (int64, error)
	// ListRuns returns runs newest first; an empty scheduleID lists all.
	ListRuns(ctx context.Context, scheduleID string) ([]Run, error)

	// ExportJSONL writes every schedule as one JSON object per line.
	ExportJSONL(ctx context.Context, w io.Writer) error

	Close() error
}

// NewSchedule builds a storable schedule from a compilation result.
func NewSchedule(c *sequence.Compiled, timing sequence.Timing, separateRepeats bool, now time.Time) *Schedule {
	s := &Schedule{
		Raw:             c.Raw,
		Expanded:        c.Expanded,
		Seed:            c.Seed,
		Timing:          timing,
		SeparateRepeats: separateRepeats,
		Stream:          c.Stream,
		Symbols:         len(c.Stream) - c.Stream.Count(sequence.KindBlank) - c.Stream.Count(sequence.KindSeparator),
		Runtime:         float64(len(c.Stream)) * timing.StepDuration(),
		CreatedAt:       now.UTC(),
	}
	s.ID = ScheduleID(s)
	return s
}

// ScheduleID is the content hash identifying a schedule. Schedules compiled
// from the same input with the same seed and options share an ID.
func ScheduleID(s *Schedule) string {
	key := fmt.Sprintf("%s\x00%d\x00%g\x00%t\x00%g\x00%t",
		s.Raw, s.Seed, s.Timing.PresentInterval, s.Timing.PresentBlanks,
		s.Timing.MotorResponseTime, s.SeparateRepeats)
	return "sch-" + computeContentHash(key)[:16]
}

func computeContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}
