package kernel

import (
	"fmt"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/policy"
)

// Scheduler selects the next process a CPU runs
type Scheduler interface {
	// Kind returns the policy name
	Kind() string
	// Pick returns a RUNNABLE process with its lock held, or nil
	Pick(cpu int, now uint64) *Proc
	// Preempt is called by the running process on every timer interrupt and
	// reports whether it should yield the CPU
	Preempt(p *Proc, now uint64) bool
	// Retire withdraws p from any queue the policy keeps
	Retire(p *Proc)
}

func newScheduler(config policy.Config, procs []*Proc, cpus int) (Scheduler, error) {
	switch config.Kind {
	case policy.KindRoundRobin:
		return newRoundRobin(procs, cpus), nil
	case policy.KindFCFS:
		return newFCFS(procs), nil
	case policy.KindPBS:
		return newPBS(procs), nil
	case policy.KindMLFQ:
		return newMLFQ(config, procs), nil
	}
	return nil, fmt.Errorf("unsupported scheduler: %q", config.Kind)
}

// relock re-acquires a candidate chosen during an unlocked scan and checks
// it is still runnable
func relock(p *Proc) *Proc {
	if p == nil {
		return nil
	}
	p.lock.acquire()
	if p.State() != model.StateRunnable {
		p.lock.release()
		return nil
	}
	return p
}
