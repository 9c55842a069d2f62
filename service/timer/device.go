package timer

import (
	"context"
	"time"
)

// Device owns the interrupt lines of all CPUs
type Device struct {
	config Config
	lines  []*Line
}

// NewDevice creates one interrupt line per CPU
func NewDevice(config Config, cpus int) (*Device, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	d := &Device{config: config}
	for i := 0; i < cpus; i++ {
		d.lines = append(d.lines, &Line{mode: config.Mode, cyclesPerTick: config.CyclesPerTick})
	}
	return d, nil
}

// Config returns device configuration
func (d *Device) Config() Config {
	return d.config
}

// CPUs returns the number of interrupt lines
func (d *Device) CPUs() int {
	return len(d.lines)
}

// Line returns the interrupt line of cpu
func (d *Device) Line(cpu int) *Line {
	return d.lines[cpu]
}

// Start drives the lines from a wall-clock ticker until ctx is done. It is a
// no-op in cycle mode.
func (d *Device) Start(ctx context.Context) {
	if d.config.Mode != ModeWall {
		return
	}
	ticker := time.NewTicker(d.config.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, line := range d.lines {
					line.RaiseTimer()
				}
			}
		}
	}()
}
