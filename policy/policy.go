package policy

import (
	"fmt"
	"strings"
)

// Scheduling policies recognised by the kernel.
const (
	KindRoundRobin = "rr"   // table scan, yield on every tick (default)
	KindFCFS       = "fcfs" // earliest creation tick first, no preemption
	KindPBS        = "pbs"  // dynamic priority with recent behaviour index
	KindMLFQ       = "mlfq" // multi-level feedback queue with aging
)

// Levels is the number of MLFQ priority levels
const Levels = 4

// Config represents the scheduling policy and its tunables
type Config struct {
	Kind string `json:"kind" yaml:"kind"`
	// Quanta holds the MLFQ time slice of every level, in ticks
	Quanta []int `json:"quanta,omitempty" yaml:"quanta,omitempty"`
	// AgingThreshold is the number of ticks a queued MLFQ process may wait
	// before it is promoted
	AgingThreshold int `json:"agingThreshold,omitempty" yaml:"agingThreshold,omitempty"`
}

// DefaultConfig returns round robin with the MLFQ defaults filled in
func DefaultConfig() Config {
	return Config{
		Kind:           KindRoundRobin,
		Quanta:         []int{1, 3, 9, 15},
		AgingThreshold: 30,
	}
}

// Normalize lower-cases the kind and fills missing tunables with defaults
func (c *Config) Normalize() {
	defaults := DefaultConfig()
	c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
	if c.Kind == "" || c.Kind == "default" {
		c.Kind = KindRoundRobin
	}
	if len(c.Quanta) == 0 {
		c.Quanta = defaults.Quanta
	}
	if c.AgingThreshold == 0 {
		c.AgingThreshold = defaults.AgingThreshold
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	switch c.Kind {
	case KindRoundRobin, KindFCFS, KindPBS:
	case KindMLFQ:
		if len(c.Quanta) != Levels {
			return fmt.Errorf("scheduler.quanta: expected %d levels, got %d", Levels, len(c.Quanta))
		}
		for i, q := range c.Quanta {
			if q <= 0 {
				return fmt.Errorf("scheduler.quanta[%d] must be > 0", i)
			}
		}
		if c.AgingThreshold <= 0 {
			return fmt.Errorf("scheduler.agingThreshold must be > 0")
		}
	default:
		return fmt.Errorf("unsupported scheduler.kind: %q", c.Kind)
	}
	return nil
}

// Preemptive reports whether a timer tick can take the CPU away from a
// running process under kind
func Preemptive(kind string) bool {
	return kind != KindFCFS
}
