package store

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"
)

// InMemoryStore implements ScheduleStore for testing and one-off runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	schedules map[string]Schedule
	runs      []Run
	nextRunID int64
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		schedules: make(map[string]Schedule),
		nextRunID: 1,
	}
}

// SaveSchedule stores a schedule.
func (s *InMemoryStore) SaveSchedule(ctx context.Context, sch *Schedule) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sch.ID == "" {
		sch.ID = ScheduleID(sch)
	}
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.schedules[sch.ID]; !exists {
		s.schedules[sch.ID] = *sch
	}
	return sch.ID, nil
}

// GetSchedule retrieves a schedule by ID. Returns nil if not found.
func (s *InMemoryStore) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sch, exists := s.schedules[id]
	if !exists {
		return nil, nil
	}
	return &sch, nil
}

// ListSchedules returns stored schedules, newest first.
func (s *InMemoryStore) ListSchedules(ctx context.Context, limit int) ([]Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Schedule, 0, len(s.schedules))
	for _, sch := range s.schedules {
		out = append(out, sch)
	}
	slices.SortFunc(out, func(a, b Schedule) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteSchedule removes a schedule and its runs.
func (s *InMemoryStore) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[id]; !exists {
		return fmt.Errorf("schedule not found: %s", id)
	}
	delete(s.schedules, id)
	s.runs = slices.DeleteFunc(s.runs, func(r Run) bool { return r.ScheduleID == id })
	return nil
}

// RecordRun stores a run and returns its ID.
func (s *InMemoryStore) RecordRun(ctx context.Context, r Run) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[r.ScheduleID]; !exists {
		return 0, fmt.Errorf("schedule not found: %s", r.ScheduleID)
	}
	r.ID = s.nextRunID
	s.nextRunID++
	s.runs = append(s.runs, r)
	return r.ID, nil
}

// ListRuns returns runs, newest first.
func (s *InMemoryStore) ListRuns(ctx context.Context, scheduleID string) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Run
	for i := len(s.runs) - 1; i >= 0; i-- {
		if scheduleID == "" || s.runs[i].ScheduleID == scheduleID {
			out = append(out, s.runs[i])
		}
	}
	slices.SortStableFunc(out, func(a, b Run) int { return b.StartedAt.Compare(a.StartedAt) })
	return out, nil
}

// ExportJSONL writes every schedule, oldest first, as one JSON object per line.
func (s *InMemoryStore) ExportJSONL(ctx context.Context, w io.Writer) error {
	all, err := s.ListSchedules(ctx, 0)
	if err != nil {
		return err
	}
	return writeJSONL(w, all)
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
