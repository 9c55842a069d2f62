package kernel

import (
	"sync"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/policy"
)

// mlfq is a four level feedback queue with aging. Lock order is the MLFQ
// lock, then PCB locks.
type mlfq struct {
	mu     sync.Mutex
	procs  []*Proc
	queues *mlfqQueues
	quanta []int
	aging  uint64
}

func newMLFQ(config policy.Config, procs []*Proc) *mlfq {
	return &mlfq{
		procs:  procs,
		queues: newMLFQQueues(len(procs)),
		quanta: append([]int(nil), config.Quanta...),
		aging:  uint64(config.AgingThreshold),
	}
}

func (m *mlfq) Kind() string {
	return "mlfq"
}

func (m *mlfq) Pick(_ int, now uint64) *Proc {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.procs {
		p.lock.acquire()
		if p.State() == model.StateRunnable && !p.sched.Queued {
			m.queues.enqueue(p, p.sched.Level)
		}
		p.lock.release()
	}
	m.age(now)
	for level := 0; level < policy.Levels; level++ {
		for m.queues.size(level) > 0 {
			p := m.queues.head(level)
			m.queues.dequeue(p, level)
			p.lock.acquire()
			if p.State() == model.StateRunnable {
				p.sched.LastScheduled = now
				return p
			}
			p.lock.release()
		}
	}
	return nil
}

// age promotes queued processes that have not been scheduled for the aging
// threshold
func (m *mlfq) age(now uint64) {
	for level := 1; level < policy.Levels; level++ {
		for _, p := range m.queues.snapshot(level) {
			if p.sched.LastScheduled > now || now-p.sched.LastScheduled < m.aging {
				continue
			}
			m.queues.dequeue(p, level)
			p.sched.LastScheduled = now
			m.queues.enqueue(p, level-1)
		}
	}
}

func (m *mlfq) Preempt(p *Proc, _ uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.sched.QuantumTicks++
	if p.sched.QuantumTicks >= m.quanta[p.sched.Level] {
		if p.sched.Level < policy.Levels-1 {
			p.sched.Level++
		}
		p.sched.QuantumTicks = 0
		return true
	}
	return m.runnableAbove(p.sched.Level)
}

// runnableAbove reports whether a runnable process waits at a level
// strictly higher than level
func (m *mlfq) runnableAbove(level int) bool {
	for l := 0; l < level; l++ {
		if m.queues.size(l) > 0 {
			return true
		}
	}
	for _, p := range m.procs {
		if p.State() == model.StateRunnable && !p.sched.Queued && p.sched.Level < level {
			return true
		}
	}
	return false
}

func (m *mlfq) Retire(p *Proc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.sched.Queued {
		m.queues.dequeue(p, p.sched.Level)
	}
}
