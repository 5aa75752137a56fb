package config

import (
	"fmt"
	"strconv"
)

// Keys lists every dot-notation configuration key in display order.
var Keys = []string{
	"stimulus.raw_seq",
	"stimulus.present_interval",
	"stimulus.present_blanks",
	"stimulus.separate_repeats",
	"stimulus.mtr_est_digit_response_time",
	"stimulus.max_enum_list_pos",
	"stimulus.seed",
	"stimulus.sim_dt",
	"vocab.sp_dim",
	"vocab.vis_dim",
	"data.data_dir",
	"data.probe_data_filename",
	"data.image_set",
	"logging.level",
}

// Get retrieves a configuration value by dot-notation key.
func (c *Config) Get(key string) (any, bool) {
	switch key {
	case "stimulus.raw_seq":
		return c.Stimulus.RawSeq, true
	case "stimulus.present_interval":
		return c.Stimulus.PresentInterval, true
	case "stimulus.present_blanks":
		return c.Stimulus.PresentBlanks, true
	case "stimulus.separate_repeats":
		return c.SeparateRepeats(), true
	case "stimulus.mtr_est_digit_response_time":
		return c.Stimulus.MtrEstDigitResponseTime, true
	case "stimulus.max_enum_list_pos":
		return c.Stimulus.MaxEnumListPos, true
	case "stimulus.seed":
		return c.Stimulus.Seed, true
	case "stimulus.sim_dt":
		return c.Stimulus.SimDt, true
	case "vocab.sp_dim":
		return c.Vocab.SPDim, true
	case "vocab.vis_dim":
		return c.Vocab.VisDim, true
	case "data.data_dir":
		return c.Data.DataDir, true
	case "data.probe_data_filename":
		return c.Data.ProbeDataFilename, true
	case "data.image_set":
		return c.Data.ImageSet, true
	case "logging.level":
		return c.Logging.Level, true
	default:
		return nil, false
	}
}

// Set sets a configuration value by dot-notation key. The result is
// validated; on error the config is left unchanged.
func (c *Config) Set(key, value string) error {
	next := *c
	if err := next.set(key, value); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "stimulus.raw_seq":
		c.Stimulus.RawSeq = value
	case "stimulus.present_interval":
		f, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		c.Stimulus.PresentInterval = f
	case "stimulus.present_blanks":
		c.Stimulus.PresentBlanks = value == "true" || value == "1"
	case "stimulus.separate_repeats":
		if value == "" || value == "auto" {
			c.Stimulus.SeparateRepeats = nil
			return nil
		}
		b := value == "true" || value == "1"
		c.Stimulus.SeparateRepeats = &b
	case "stimulus.mtr_est_digit_response_time":
		f, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		c.Stimulus.MtrEstDigitResponseTime = f
	case "stimulus.max_enum_list_pos":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.Stimulus.MaxEnumListPos = n
	case "stimulus.seed":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
		}
		c.Stimulus.Seed = n
	case "stimulus.sim_dt":
		f, err := parseFloat(key, value)
		if err != nil {
			return err
		}
		c.Stimulus.SimDt = f
	case "vocab.sp_dim":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.Vocab.SPDim = n
	case "vocab.vis_dim":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		c.Vocab.VisDim = n
	case "data.data_dir":
		c.Data.DataDir = value
	case "data.probe_data_filename":
		c.Data.ProbeDataFilename = value
	case "data.image_set":
		c.Data.ImageSet = value
	case "logging.level":
		c.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// Properties returns every key with its formatted value, in Keys order.
func (c *Config) Properties() [][2]string {
	props := make([][2]string, 0, len(Keys))
	for _, k := range Keys {
		v, _ := c.Get(k)
		props = append(props, [2]string{k, fmt.Sprint(v)})
	}
	return props
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be a number)", key, value)
	}
	return f, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s (must be an integer)", key, value)
	}
	return n, nil
}
