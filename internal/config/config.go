// Package config provides unified configuration loading for stimseq.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spaun-sim/stimseq/internal/constants"
	"github.com/spaun-sim/stimseq/internal/sequence"
	"gopkg.in/yaml.v3"
)

// Config contains all stimseq configuration settings.
type Config struct {
	// Stimulus contains the task sequence and presentation timing.
	Stimulus StimulusConfig `json:"stimulus" yaml:"stimulus"`

	// Vocab contains payload dimensions for the stimulus providers.
	Vocab VocabConfig `json:"vocab" yaml:"vocab"`

	// Data contains output locations and the image dataset.
	Data DataConfig `json:"data" yaml:"data"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// StimulusConfig configures sequence compilation and the schedule.
type StimulusConfig struct {
	// RawSeq is the task sequence text.
	RawSeq string `json:"raw_seq" yaml:"raw_seq"`

	// PresentInterval is how long each step is shown, in seconds.
	PresentInterval float64 `json:"present_interval" yaml:"present_interval"`

	// PresentBlanks shows a blank after every step, doubling each step's duration.
	PresentBlanks bool `json:"present_blanks" yaml:"present_blanks"`

	// SeparateRepeats inserts a space between identical adjacent stimuli.
	// When unset it is enabled exactly when PresentBlanks is off.
	SeparateRepeats *bool `json:"separate_repeats,omitempty" yaml:"separate_repeats,omitempty"`

	// MtrEstDigitResponseTime is the estimated time to write one digit, in seconds.
	MtrEstDigitResponseTime float64 `json:"mtr_est_digit_response_time" yaml:"mtr_est_digit_response_time"`

	// MaxEnumListPos is the longest list the model can enumerate.
	MaxEnumListPos int `json:"max_enum_list_pos" yaml:"max_enum_list_pos"`

	// Seed seeds all random choices. Negative means pick one at startup.
	Seed int64 `json:"seed" yaml:"seed"`

	// SimDt is the stepping loop timestep used by dry runs, in seconds.
	SimDt float64 `json:"sim_dt" yaml:"sim_dt"`
}

// VocabConfig configures stimulus payload sizes.
type VocabConfig struct {
	// SPDim is the vocabulary vector dimension.
	SPDim int `json:"sp_dim" yaml:"sp_dim"`

	// VisDim is the flattened image size.
	VisDim int `json:"vis_dim" yaml:"vis_dim"`
}

// DataConfig configures where outputs go.
type DataConfig struct {
	// DataDir holds monitor logs and the event log. Relative paths are
	// resolved against the project root.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// ProbeDataFilename names the run; the monitor log is <name>_log.txt.
	ProbeDataFilename string `json:"probe_data_filename" yaml:"probe_data_filename"`

	// ImageSet is an optional image set file. When empty a synthetic set is used.
	ImageSet string `json:"image_set,omitempty" yaml:"image_set,omitempty"`
}

// LoggingConfig configures stimseq's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug", or "trace".
	// "debug" enables event logging to <data_dir>/events.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Stimulus: StimulusConfig{
			RawSeq:                  "A0[#1]?X",
			PresentInterval:         constants.DefaultPresentInterval,
			PresentBlanks:           false,
			MtrEstDigitResponseTime: constants.DefaultMotorResponseTime,
			MaxEnumListPos:          constants.DefaultMaxEnumListPos,
			Seed:                    -1,
			SimDt:                   constants.DefaultSimDt,
		},
		Vocab: VocabConfig{
			SPDim:  constants.DefaultSPDim,
			VisDim: constants.DefaultVisDim,
		},
		Data: DataConfig{
			DataDir:           "data",
			ProbeDataFilename: "probe_data.npz",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.stimseq/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".stimseq", "config.yaml"), nil
}

// Load loads configuration from path, or from the default location when
// path is empty, then applies environment variable overrides.
// Order: defaults -> config file -> environment variables.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			fileConfig, err := LoadFromFile(path)
			if err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
			config = fileConfig
		case explicit:
			return nil, fmt.Errorf("config file: %w", statErr)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Data.ImageSet = expandEnvVars(config.Data.ImageSet)
	config.Data.DataDir = expandEnvVars(config.Data.DataDir)

	return config, nil
}

// Save writes the configuration as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	s := c.Stimulus
	if !(s.PresentInterval > 0) {
		return fmt.Errorf("present_interval must be positive, got %v", s.PresentInterval)
	}
	if s.MtrEstDigitResponseTime < 0 {
		return fmt.Errorf("mtr_est_digit_response_time must be non-negative, got %v", s.MtrEstDigitResponseTime)
	}
	if s.MaxEnumListPos < 1 {
		return fmt.Errorf("max_enum_list_pos must be at least 1, got %d", s.MaxEnumListPos)
	}
	if !(s.SimDt > 0) {
		return fmt.Errorf("sim_dt must be positive, got %v", s.SimDt)
	}
	if s.SimDt > s.PresentInterval {
		return fmt.Errorf("sim_dt (%v) must not exceed present_interval (%v)", s.SimDt, s.PresentInterval)
	}

	if c.Vocab.SPDim < 1 || c.Vocab.VisDim < 1 {
		return fmt.Errorf("vocab dimensions must be positive, got sp_dim=%d vis_dim=%d", c.Vocab.SPDim, c.Vocab.VisDim)
	}

	if c.Data.ProbeDataFilename == "" {
		return fmt.Errorf("probe_data_filename must not be empty")
	}

	validLevels := map[string]bool{"warn": true, "info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Timing returns the presentation timing for the compiler and schedule.
func (c *Config) Timing() sequence.Timing {
	return sequence.Timing{
		PresentInterval:   c.Stimulus.PresentInterval,
		PresentBlanks:     c.Stimulus.PresentBlanks,
		MotorResponseTime: c.Stimulus.MtrEstDigitResponseTime,
	}
}

// SeparateRepeats reports whether identical adjacent stimuli get a space.
func (c *Config) SeparateRepeats() bool {
	if c.Stimulus.SeparateRepeats != nil {
		return *c.Stimulus.SeparateRepeats
	}
	return !c.Stimulus.PresentBlanks
}

// ResolveSeed returns the configured seed, or one derived from now when the
// configured seed is negative.
func (c *Config) ResolveSeed(now time.Time) uint64 {
	if c.Stimulus.Seed >= 0 {
		return uint64(c.Stimulus.Seed)
	}
	return uint64(now.UnixNano())
}

// DataPath resolves the data directory against root.
func (c *Config) DataPath(root string) string {
	if filepath.IsAbs(c.Data.DataDir) {
		return c.Data.DataDir
	}
	return filepath.Join(root, c.Data.DataDir)
}

// MonitorLogPath is <data dir>/<probe name without extension>_log.txt.
func (c *Config) MonitorLogPath(root string) string {
	name := c.Data.ProbeDataFilename
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(c.DataPath(root), name+"_log.txt")
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("STIMSEQ_RAW_SEQ"); v != "" {
		config.Stimulus.RawSeq = v
	}

	if v := os.Getenv("STIMSEQ_PRESENT_INTERVAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Stimulus.PresentInterval = f
		}
	}

	if v := os.Getenv("STIMSEQ_PRESENT_BLANKS"); v != "" {
		config.Stimulus.PresentBlanks = v == "true" || v == "1"
	}

	if v := os.Getenv("STIMSEQ_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Stimulus.Seed = n
		}
	}

	if v := os.Getenv("STIMSEQ_DATA_DIR"); v != "" {
		config.Data.DataDir = v
	}

	if v := os.Getenv("STIMSEQ_IMAGE_SET"); v != "" {
		config.Data.ImageSet = v
	}

	if v := os.Getenv("STIMSEQ_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
