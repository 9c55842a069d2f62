package kernel

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/timer"
	"go.uber.org/zap"
)

// kcontext is the saved execution context of a kernel thread. A thread
// blocked in swtch waits on resume.
type kcontext struct {
	resume  chan struct{}
	started bool
}

func newContext() *kcontext {
	return &kcontext{resume: make(chan struct{})}
}

// CPU is the per-core scheduler state
type CPU struct {
	id   int
	ctx  *kcontext
	proc atomic.Pointer[Proc]
}

// ID returns the cpu number
func (c *CPU) ID() int {
	return c.id
}

// Proc returns the process running on c, or nil
func (c *CPU) Proc() *Proc {
	return c.proc.Load()
}

// swtch hands the CPU to the thread waiting on to and suspends the caller
// until someone switches back to from
func (k *Kernel) swtch(from, to *kcontext) {
	select {
	case to.resume <- struct{}{}:
	case <-k.halted:
		runtime.Goexit()
	}
	select {
	case <-from.resume:
	case <-k.halted:
		runtime.Goexit()
	}
}

// schedule is the per-CPU scheduler loop. It never returns while the
// machine runs.
func (k *Kernel) schedule(c *CPU) {
	defer k.wg.Done()
	defer k.recoverPanic()
	line := k.device.Line(c.id)
	for {
		select {
		case <-k.halted:
			return
		default:
		}
		k.kerneltrap(c, line)
		p := k.scheduler.Pick(c.id, k.clock.Now())
		if p == nil {
			k.idle(line)
			continue
		}
		if p.State() != model.StateRunnable {
			panic("scheduler: picked " + p.State().String() + " process")
		}
		p.setState(model.StateRunning)
		p.sched.Scheduled++
		p.cpu = c.id
		c.proc.Store(p)
		if !p.ctx.started {
			p.ctx.started = true
			k.wg.Add(1)
			go k.forkret(p)
		}
		k.stats.Update(progress.Delta{Switches: 1})
		k.swtch(c.ctx, p.ctx)
		c.proc.Store(nil)
		p.lock.release()
	}
}

func (k *Kernel) idle(line *timer.Line) {
	config := k.device.Config()
	if config.Mode == timer.ModeCycle {
		line.Cycle()
		runtime.Gosched()
		return
	}
	time.Sleep(config.IdleBackoff)
}

// forkret is the body of a process kernel thread. The first switch into it
// arrives with the PCB lock held by the scheduler.
func (k *Kernel) forkret(p *Proc) {
	defer k.wg.Done()
	defer k.recoverPanic()
	select {
	case <-p.ctx.resume:
	case <-k.halted:
		return
	}
	p.lock.release()
	u := &User{k: k, p: p}
	if p.isKilled() {
		k.exit(p, -1)
	}
	p.program(u)
	k.exit(p, 0)
}

// sched switches back to the CPU's scheduler. The caller holds p.lock and
// has already changed p's state.
func (k *Kernel) sched(p *Proc) {
	if !p.lock.holding() {
		panic("sched p->lock")
	}
	if p.State() == model.StateRunning {
		panic("sched running")
	}
	k.swtch(p.ctx, k.cpus[p.cpu].ctx)
}

// schedExit makes the final switch of an exiting process and ends its
// thread
func (k *Kernel) schedExit(p *Proc) {
	if p.State() != model.StateZombie {
		panic("sched zombie")
	}
	select {
	case k.cpus[p.cpu].ctx.resume <- struct{}{}:
	case <-k.halted:
	}
	runtime.Goexit()
}

// yield gives up the CPU for one scheduling round
func (k *Kernel) yield(p *Proc) {
	p.lock.acquire()
	p.setState(model.StateRunnable)
	k.logger.Debug("yield", zap.Int("pid", p.PID()))
	k.sched(p)
	p.lock.release()
}
