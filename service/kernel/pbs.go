package kernel

import "github.com/viant/kproc/model"

// RecentBehavior returns the recent behaviour index of a process that ran,
// slept and waited for the given number of ticks
func RecentBehavior(running, sleeping, waiting uint64) int {
	num := (3*int64(running) - int64(sleeping) - int64(waiting)) * 50
	den := int64(running) + int64(sleeping) + int64(waiting) + 1
	rbi := num / den
	if rbi < 0 {
		return 0
	}
	return int(rbi)
}

// DynamicPriority combines a static priority with the recent behaviour index
func DynamicPriority(static, rbi int) int {
	if dp := static + rbi; dp < MaxPriority {
		return dp
	}
	return MaxPriority
}

type pbsCandidate struct {
	proc      *Proc
	dynamic   int
	scheduled int
	created   uint64
}

// before reports whether c should run ahead of other
func (c *pbsCandidate) before(other *pbsCandidate) bool {
	if c.dynamic != other.dynamic {
		return c.dynamic < other.dynamic
	}
	if c.scheduled != other.scheduled {
		return c.scheduled < other.scheduled
	}
	return c.created < other.created
}

// pbs picks the lowest dynamic priority, recomputed for every runnable
// process each round
type pbs struct {
	procs []*Proc
}

func newPBS(procs []*Proc) *pbs {
	return &pbs{procs: procs}
}

func (s *pbs) Kind() string {
	return "pbs"
}

func (s *pbs) Pick(int, uint64) *Proc {
	var best *pbsCandidate
	for _, p := range s.procs {
		p.lock.acquire()
		if p.State() == model.StateRunnable {
			p.sched.RBI = RecentBehavior(p.times.Running, p.times.Sleeping, p.times.Waiting)
			p.sched.Dynamic = DynamicPriority(p.sched.Static, p.sched.RBI)
			candidate := &pbsCandidate{proc: p, dynamic: p.sched.Dynamic, scheduled: p.sched.Scheduled, created: p.times.Created}
			if best == nil || candidate.before(best) {
				best = candidate
			}
		}
		p.lock.release()
	}
	if best == nil {
		return nil
	}
	p := relock(best.proc)
	if p == nil {
		return nil
	}
	p.times.Running = 0
	p.times.Sleeping = 0
	return p
}

func (s *pbs) Preempt(*Proc, uint64) bool {
	return true
}

func (s *pbs) Retire(*Proc) {}
