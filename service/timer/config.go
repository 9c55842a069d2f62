package timer

import (
	"fmt"
	"time"
)

// Mode selects what drives the timer interrupt
type Mode string

const (
	// ModeCycle raises a timer interrupt every CyclesPerTick cycles of a CPU
	ModeCycle Mode = "cycle"
	// ModeWall raises a timer interrupt on every CPU each Interval
	ModeWall Mode = "wall"
)

// Config represents timer configuration
type Config struct {
	Mode          Mode          `json:"mode" yaml:"mode"`
	CyclesPerTick int           `json:"cyclesPerTick" yaml:"cyclesPerTick"`
	Interval      time.Duration `json:"interval" yaml:"interval"`
	// IdleBackoff pauses an idle CPU between scheduling rounds in wall mode
	IdleBackoff time.Duration `json:"idleBackoff" yaml:"idleBackoff"`
}

// DefaultConfig returns the default timer configuration
func DefaultConfig() Config {
	return Config{
		Mode:          ModeCycle,
		CyclesPerTick: 100,
		Interval:      10 * time.Millisecond,
		IdleBackoff:   100 * time.Microsecond,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch c.Mode {
	case ModeCycle:
		if c.CyclesPerTick <= 0 {
			return fmt.Errorf("timer.cyclesPerTick must be > 0")
		}
	case ModeWall:
		if c.Interval <= 0 {
			return fmt.Errorf("timer.interval must be > 0")
		}
	default:
		return fmt.Errorf("unsupported timer.mode: %q", c.Mode)
	}
	return nil
}
