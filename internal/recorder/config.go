package recorder

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

var (
	ErrNoDir        = errors.New("recorder directory not set")
	ErrBadFlushSize = errors.New("flush trigger must be positive")
)

const fileTimeFormat = "20060102_150405"

// Config describes where and how often arbitrage snapshots are written.
type Config struct {
	// Dir is the data directory for snapshot files.
	Dir string
	// ThresholdBp tags the output filename with the strategy threshold the
	// run was started with.
	ThresholdBp float64
	// FlushEvery flushes the buffer to disk after this many lines.
	FlushEvery int
	// StartTime names the output file. Zero means time.Now.
	StartTime time.Time
	// Sandbox marks files produced against a sandbox venue.
	Sandbox bool
}

func (cfg Config) withDefaults() Config {
	if cfg.FlushEvery == 0 {
		cfg.FlushEvery = 5
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now().UTC()
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.Dir == "" {
		return ErrNoDir
	}
	if cfg.FlushEvery < 0 {
		return ErrBadFlushSize
	}
	return nil
}

func (cfg Config) filename() string {
	suffix := ""
	if cfg.Sandbox {
		suffix = "_sandbox"
	}
	name := fmt.Sprintf("%s_th%g%s.csv", cfg.StartTime.Format(fileTimeFormat), cfg.ThresholdBp, suffix)
	return filepath.Join(cfg.Dir, name)
}
