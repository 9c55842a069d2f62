package kernel

import "github.com/viant/kproc/model"

// roundRobin scans the table from where the CPU left off and preempts on
// every tick
type roundRobin struct {
	procs []*Proc
	// next is the per-CPU scan cursor, only touched by that CPU's thread
	next []int
}

func newRoundRobin(procs []*Proc, cpus int) *roundRobin {
	return &roundRobin{procs: procs, next: make([]int, cpus)}
}

func (r *roundRobin) Kind() string {
	return "rr"
}

func (r *roundRobin) Pick(cpu int, _ uint64) *Proc {
	n := len(r.procs)
	start := r.next[cpu]
	for i := 0; i < n; i++ {
		index := (start + i) % n
		p := r.procs[index]
		p.lock.acquire()
		if p.State() == model.StateRunnable {
			r.next[cpu] = (index + 1) % n
			return p
		}
		p.lock.release()
	}
	return nil
}

func (r *roundRobin) Preempt(*Proc, uint64) bool {
	return true
}

func (r *roundRobin) Retire(*Proc) {}
