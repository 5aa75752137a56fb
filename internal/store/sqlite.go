package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements ScheduleStore using SQLite for persistence.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens or creates the database at .stimseq/stimseq.db under projectRoot.
func NewSQLiteStore(ctx context.Context, projectRoot string) (*SQLiteStore, error) {
	if err := os.MkdirAll(StimseqDir(projectRoot), 0755); err != nil {
		return nil, fmt.Errorf("failed to create .stimseq directory: %w", err)
	}

	dbPath := DBPath(projectRoot)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// SaveSchedule stores a schedule.
func (s *SQLiteStore) SaveSchedule(ctx context.Context, sch *Schedule) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sch.ID == "" {
		sch.ID = ScheduleID(sch)
	}
	streamJSON, err := json.Marshal(sch.Stream)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream: %w", err)
	}
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedules (
			id, raw, expanded, seed,
			present_interval, present_blanks, motor_response_time, separate_repeats,
			stream, symbols, runtime, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sch.ID, sch.Raw, sch.Expanded, strconv.FormatUint(sch.Seed, 10),
		sch.Timing.PresentInterval, boolToInt(sch.Timing.PresentBlanks), sch.Timing.MotorResponseTime, boolToInt(sch.SeparateRepeats),
		string(streamJSON), sch.Symbols, sch.Runtime, sch.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert schedule: %w", err)
	}
	return sch.ID, nil
}

const scheduleColumns = `id, raw, expanded, seed,
	present_interval, present_blanks, motor_response_time, separate_repeats,
	stream, symbols, runtime, created_at`

// GetSchedule retrieves a schedule by ID. Returns nil if not found.
func (s *SQLiteStore) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	sch, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule %s: %w", id, err)
	}
	return sch, nil
}

// ListSchedules returns stored schedules, newest first.
func (s *SQLiteStore) ListSchedules(ctx context.Context, limit int) ([]Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		out = append(out, *sch)
	}
	return out, rows.Err()
}

// DeleteSchedule removes a schedule; its runs are removed by cascade.
func (s *SQLiteStore) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule not found: %s", id)
	}
	return nil
}

// RecordRun stores a run and returns its ID.
func (s *SQLiteStore) RecordRun(ctx context.Context, r Run) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (schedule_id, started_at, finished_at, steps, presented, motor_writes, log_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.ScheduleID, r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Steps, r.Presented, r.MotorWrites, nullString(r.LogPath),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, scheduleID string) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, schedule_id, started_at, finished_at, steps, presented, motor_writes, log_path FROM runs`
	args := []any{}
	if scheduleID != "" {
		query += ` WHERE schedule_id = ?`
		args = append(args, scheduleID)
	}
	query += ` ORDER BY started_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		var logPath sql.NullString
		if err := rows.Scan(&r.ID, &r.ScheduleID, &started, &finished, &r.Steps, &r.Presented, &r.MotorWrites, &logPath); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		r.LogPath = logPath.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*Schedule, error) {
	var sch Schedule
	var seed, streamJSON, createdAt string
	var blanks, separate int
	err := row.Scan(
		&sch.ID, &sch.Raw, &sch.Expanded, &seed,
		&sch.Timing.PresentInterval, &blanks, &sch.Timing.MotorResponseTime, &separate,
		&streamJSON, &sch.Symbols, &sch.Runtime, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	sch.Seed, err = strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid seed %q: %w", seed, err)
	}
	sch.Timing.PresentBlanks = blanks != 0
	sch.SeparateRepeats = separate != 0
	if err := json.Unmarshal([]byte(streamJSON), &sch.Stream); err != nil {
		return nil, fmt.Errorf("invalid stream JSON: %w", err)
	}
	sch.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &sch, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
