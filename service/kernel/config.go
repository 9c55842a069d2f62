package kernel

import "fmt"

// Config represents kernel configuration
type Config struct {
	// CPUs is the number of scheduler threads
	CPUs int `json:"cpus" yaml:"cpus"`
	// Procs is the capacity of the process table
	Procs int `json:"procs" yaml:"procs"`
	// COW enables copy-on-write fork
	COW bool `json:"cow" yaml:"cow"`
	// MaxVA is one beyond the highest user virtual address
	MaxVA uint64 `json:"maxVA" yaml:"maxVA"`
}

// DefaultConfig returns the default kernel configuration
func DefaultConfig() Config {
	return Config{
		CPUs:  1,
		Procs: 64,
		COW:   true,
		MaxVA: 1 << 38,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.CPUs <= 0 {
		return fmt.Errorf("kernel.cpus must be > 0")
	}
	if c.Procs <= 1 {
		return fmt.Errorf("kernel.procs must be > 1")
	}
	if c.MaxVA == 0 {
		return fmt.Errorf("kernel.maxVA must be > 0")
	}
	return nil
}
