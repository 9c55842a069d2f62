package kernel

import (
	"fmt"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/policy"
)

// mlfqQueues is the per-level FIFO index of queued processes. The Queued
// flag of a process is authoritative; every method is called with the MLFQ
// lock held.
type mlfqQueues struct {
	levels   [policy.Levels][]*Proc
	capacity int
}

func newMLFQQueues(capacity int) *mlfqQueues {
	q := &mlfqQueues{capacity: capacity}
	for i := range q.levels {
		q.levels[i] = make([]*Proc, 0, capacity)
	}
	return q
}

// enqueue appends p to level; it is a no-op for a process that is not
// runnable or already queued
func (q *mlfqQueues) enqueue(p *Proc, level int) bool {
	if p.State() != model.StateRunnable || p.sched.Queued {
		return false
	}
	if len(q.levels[level]) >= q.capacity {
		panic(fmt.Sprintf("mlfq: level %d full", level))
	}
	p.sched.QuantumTicks = 0
	p.sched.Level = level
	p.sched.Queued = true
	q.levels[level] = append(q.levels[level], p)
	return true
}

// dequeue removes p from level preserving the order of the rest
func (q *mlfqQueues) dequeue(p *Proc, level int) bool {
	queue := q.levels[level]
	for i, candidate := range queue {
		if candidate != p {
			continue
		}
		copy(queue[i:], queue[i+1:])
		queue[len(queue)-1] = nil
		q.levels[level] = queue[:len(queue)-1]
		p.sched.Queued = false
		return true
	}
	return false
}

func (q *mlfqQueues) head(level int) *Proc {
	if len(q.levels[level]) == 0 {
		return nil
	}
	return q.levels[level][0]
}

func (q *mlfqQueues) size(level int) int {
	return len(q.levels[level])
}

func (q *mlfqQueues) snapshot(level int) []*Proc {
	return append([]*Proc(nil), q.levels[level]...)
}
