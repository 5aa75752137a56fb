// Package monitor writes a human-readable trace of a run: what the
// experimenter presented and what the motor system wrote.
package monitor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spaun-sim/stimseq/internal/constants"
	"github.com/spaun-sim/stimseq/internal/schedule"
	"github.com/spaun-sim/stimseq/internal/sequence"
)

// MotorInput is the decoded motor state at one timestep.
type MotorInput struct {
	// Select holds one activation per entry of constants.MotorOutputs.
	Select []float64
	// Ramp is the motor ramp signal; a write completes when it crosses the write threshold.
	Ramp float64
	// Disable suppresses writes when at or above the disable threshold.
	Disable float64
}

// Monitor appends presented symbols and motor responses to a log file.
// It is safe for concurrent use.
type Monitor struct {
	mu       sync.Mutex
	file     *os.File
	w        *bufio.Writer
	sched    *schedule.Schedule
	prevInd  int
	written  bool
	path     string
	presents int
	writes   int
}

// Open opens path for append, creating its directory, and writes the run
// header with the given properties.
func Open(path string, sched *schedule.Schedule, props [][2]string, now time.Time) (*Monitor, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating monitor directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening monitor log: %w", err)
	}

	m := &Monitor{
		file:    f,
		w:       bufio.NewWriter(f),
		sched:   sched,
		prevInd: -1,
		path:    path,
	}
	if err := m.writeHeader(props, now); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

// Path returns the log file path.
func (m *Monitor) Path() string { return m.path }

func (m *Monitor) writeHeader(props [][2]string, now time.Time) error {
	fmt.Fprintf(m.w, "# Simulation Properties:\n")
	fmt.Fprintf(m.w, "# - Run datetime: %s\n", now.Format("2006-01-02 15:04:05.000000"))
	fmt.Fprintf(m.w, "# Configuration Options:\n")
	fmt.Fprintf(m.w, "# ----------------------------\n")
	for _, p := range props {
		fmt.Fprintf(m.w, "# - %s = %s\n", p[0], p[1])
	}
	fmt.Fprintf(m.w, "# ----------------------------\n")
	return m.w.Flush()
}

// Observe records the state at simulated time t. A newly reached schedule
// step is written once; a motor write is recorded when the ramp rises past
// the write threshold and re-armed once it falls below the reset threshold.
func (m *Monitor) Observe(t float64, mtr MotorInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.w == nil {
		return os.ErrClosed
	}

	ind := m.sched.Step(t)
	if ind != m.prevInd && ind >= 0 && ind < m.sched.Len() {
		sym := m.sched.Stream()[ind]
		m.w.WriteString(presented(sym, m.prevInd >= 0))
		if m.sched.Timing().PresentBlanks && sym.Kind != sequence.KindBlank {
			m.w.WriteByte('_')
		}
		m.prevInd = ind
		m.presents++
		if err := m.w.Flush(); err != nil {
			return err
		}
	}

	if mtr.Disable < constants.MotorDisableThreshold {
		switch {
		case mtr.Ramp > constants.MotorWriteMin && !m.written:
			m.w.WriteString(Decode(mtr.Select))
			m.written = true
			m.writes++
			if err := m.w.Flush(); err != nil {
				return err
			}
		case mtr.Ramp < constants.MotorResetMax:
			m.written = false
		}
	}
	return nil
}

// Counts returns how many steps and motor writes have been recorded.
func (m *Monitor) Counts() (presents, writes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presents, m.writes
}

// Close flushes and closes the log. Safe to call more than once.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.w == nil {
		return nil
	}
	ferr := m.w.Flush()
	m.w = nil
	if err := m.file.Close(); err != nil {
		return err
	}
	return ferr
}

// Decode maps motor selection activations to the written character. Exactly
// one entry must exceed the selection threshold; otherwise nothing
// recognizable was written and the null output is returned.
func Decode(sel []float64) string {
	idx := -1
	for i, v := range sel {
		if v > constants.MotorSelectThreshold {
			if idx >= 0 {
				return constants.NullOutput
			}
			idx = i
		}
	}
	if idx < 0 || idx >= len(constants.MotorOutputs) {
		return constants.NullOutput
	}
	return constants.MotorOutputs[idx]
}

// presented is the log text for one schedule step.
func presented(sym sequence.Symbol, started bool) string {
	switch sym.Kind {
	case sequence.KindBlank:
		return ""
	case sequence.KindSeparator:
		return "_"
	case sequence.KindHandWritten, sequence.KindFixedIndex:
		return "<" + strconv.Itoa(sym.Index) + ">"
	}

	if sym.Label == "A" && started {
		return "\nA"
	}
	if c, ok := constants.DigitChar(sym.Label); ok {
		return string(c)
	}
	if c, ok := constants.SymbolChar(sym.Label); ok {
		return string(c)
	}
	if sym.Label == constants.SpaceLabel {
		return " "
	}
	return sym.Label
}
