package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSONL writes every schedule, oldest first, as one JSON object per line.
func (s *SQLiteStore) ExportJSONL(ctx context.Context, w io.Writer) error {
	all, err := s.ListSchedules(ctx, 0)
	if err != nil {
		return err
	}
	return writeJSONL(w, all)
}

// ImportJSONL reads schedules written by ExportJSONL and saves them.
// Schedules already present are left as they are. Returns the number of
// lines read.
func ImportJSONL(ctx context.Context, st ScheduleStore, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	// Streams for long sequences make long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	n := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var sch Schedule
		if err := json.Unmarshal(line, &sch); err != nil {
			return n, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if _, err := st.SaveSchedule(ctx, &sch); err != nil {
			return n, fmt.Errorf("line %d: %w", lineNum, err)
		}
		n++
	}

	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("scanner error: %w", err)
	}
	return n, nil
}

// writeJSONL writes schedules in reverse, so the output is oldest first.
func writeJSONL(w io.Writer, newestFirst []Schedule) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := len(newestFirst) - 1; i >= 0; i-- {
		if err := enc.Encode(newestFirst[i]); err != nil {
			return fmt.Errorf("failed to encode schedule %s: %w", newestFirst[i].ID, err)
		}
	}
	return bw.Flush()
}
