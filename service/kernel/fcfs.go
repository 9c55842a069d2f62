package kernel

import "github.com/viant/kproc/model"

// fcfs runs the runnable process created earliest until it blocks or exits
type fcfs struct {
	procs []*Proc
}

func newFCFS(procs []*Proc) *fcfs {
	return &fcfs{procs: procs}
}

func (f *fcfs) Kind() string {
	return "fcfs"
}

func (f *fcfs) Pick(int, uint64) *Proc {
	var best *Proc
	var created uint64
	for _, p := range f.procs {
		p.lock.acquire()
		if p.State() == model.StateRunnable && (best == nil || p.times.Created < created) {
			best = p
			created = p.times.Created
		}
		p.lock.release()
	}
	return relock(best)
}

func (f *fcfs) Preempt(*Proc, uint64) bool {
	return false
}

func (f *fcfs) Retire(*Proc) {}
