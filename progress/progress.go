package progress

import (
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the kernel
type Delta struct {
	Forks     int
	Exits     int
	Reaps     int
	Kills     int
	Faults    int
	CowFaults int
	Switches  int
	Ticks     int
}

// Stats is a read-only copy of the counters
type Stats struct {
	BootID    string    `json:"bootId"`
	StartedAt time.Time `json:"startedAt"`
	Forks     int       `json:"forks"`
	Exits     int       `json:"exits"`
	Reaps     int       `json:"reaps"`
	Kills     int       `json:"kills"`
	Faults    int       `json:"faults"`
	CowFaults int       `json:"cowFaults"`
	Switches  int       `json:"switches"`
	Ticks     int       `json:"ticks"`
}

// Live returns the number of processes forked but not yet reaped
func (s Stats) Live() int {
	return s.Forks - s.Reaps
}

// Progress keeps aggregated counters. It is safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	stats    Stats
	onChange func(Stats)
}

// New creates a tracker for the boot identified by bootID
func New(bootID string, startedAt time.Time) *Progress {
	return &Progress{stats: Stats{BootID: bootID, StartedAt: startedAt}}
}

// Update applies the supplied delta. The onChange callback, if any, is
// invoked with a copy of the counters outside the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.stats.Forks += d.Forks
	p.stats.Exits += d.Exits
	p.stats.Reaps += d.Reaps
	p.stats.Kills += d.Kills
	p.stats.Faults += d.Faults
	p.stats.CowFaults += d.CowFaults
	p.stats.Switches += d.Switches
	p.stats.Ticks += d.Ticks
	snapshot := p.stats
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters
func (p *Progress) Snapshot() Stats {
	if p == nil {
		return Stats{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// OnChange registers a callback invoked after every Update. Passing nil
// disables it; a later call replaces the earlier callback.
func (p *Progress) OnChange(cb func(Stats)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}
