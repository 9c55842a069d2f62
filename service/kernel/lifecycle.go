package kernel

import (
	"context"
	"fmt"

	"github.com/viant/kproc/internal/clock"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/vm"
	"github.com/viant/kproc/tracing"
	"go.uber.org/zap"
)

// initcode is the bootstrap image placed in page 0 of the first process
var initcode = []byte{
	0x17, 0x05, 0x00, 0x00, 0x13, 0x05, 0x45, 0x02,
	0x97, 0x05, 0x00, 0x00, 0x93, 0x85, 0x35, 0x02,
	0x93, 0x08, 0x70, 0x00, 0x73, 0x00, 0x00, 0x00,
	0x93, 0x08, 0x20, 0x00, 0x73, 0x00, 0x00, 0x00,
	0xef, 0xf0, 0x9f, 0xff, 0x2f, 0x69, 0x6e, 0x69,
	0x74, 0x00, 0x00, 0x24, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

func (k *Kernel) allocpid() int {
	k.pidLock.acquire()
	pid := k.nextPID
	k.nextPID++
	k.pidLock.release()
	return pid
}

// trapframeVA is where every address space maps its trapframe page
func (k *Kernel) trapframeVA() uint64 {
	return k.config.MaxVA - 2*uint64(k.frames.PageSize())
}

// allocproc claims an unused slot and gives it a trapframe and an empty
// address space. It returns with the PCB lock held.
func (k *Kernel) allocproc() (*Proc, error) {
	var p *Proc
	for _, candidate := range k.procs {
		candidate.lock.acquire()
		if candidate.State() == model.StateUnused {
			p = candidate
			break
		}
		candidate.lock.release()
	}
	if p == nil {
		return nil, ErrNoProc
	}
	pid := k.allocpid()
	p.pid.Store(int64(pid))
	p.setState(model.StateUsed)
	now := k.clock.Now()
	p.times = Times{Created: now}
	p.sched = Sched{
		Static:        DefaultStaticPriority,
		RBI:           DefaultRBI,
		Dynamic:       DefaultDynamicPriority,
		LastScheduled: now,
	}
	p.ctx = newContext()
	frame, err := k.frames.Alloc(pid)
	if err != nil {
		k.freeproc(p)
		p.lock.release()
		return nil, fmt.Errorf("%w: trapframe: %v", ErrNoMemory, err)
	}
	p.frame = frame
	if err = k.pagetable(p); err != nil {
		k.freeproc(p)
		p.lock.release()
		return nil, err
	}
	return p, nil
}

// pagetable creates the address space of p with its trapframe mapped
func (k *Kernel) pagetable(p *Proc) error {
	space, err := vm.Create(k.frames, p.PID(), k.config.MaxVA)
	if err != nil {
		return fmt.Errorf("%w: page table: %v", ErrNoMemory, err)
	}
	if err = space.Map(k.trapframeVA(), vm.PTE{Frame: p.frame, Perm: vm.PermR | vm.PermW}); err != nil {
		space.Destroy(0)
		return fmt.Errorf("%w: trapframe mapping: %v", ErrNoMemory, err)
	}
	p.space = space
	return nil
}

// freeproc releases everything p owns and returns the slot to UNUSED. The
// caller holds p.lock.
func (k *Kernel) freeproc(p *Proc) {
	if p.space != nil {
		p.space.Unmap(k.trapframeVA(), 1, false)
		p.space.Destroy(p.sz)
	}
	if p.frame >= 0 {
		k.frames.Free(p.frame)
	}
	p.space = nil
	p.frame = -1
	p.sz = 0
	p.pid.Store(0)
	p.setName("")
	p.channel = nil
	p.killed = false
	p.xstate = 0
	p.program = nil
	p.setState(model.StateUnused)
}

// userinit creates the first process
func (k *Kernel) userinit(program Program) error {
	p, err := k.allocproc()
	if err != nil {
		return err
	}
	pageSize := uint64(k.frames.PageSize())
	if _, err = p.space.Grow(0, pageSize, vm.PermW|vm.PermX); err != nil {
		k.freeproc(p)
		p.lock.release()
		return fmt.Errorf("%w: initcode: %v", ErrNoMemory, err)
	}
	pte, _ := p.space.Translate(0)
	copy(k.frames.Bytes(pte.Frame), initcode)
	p.sz = pageSize
	p.setName("initcode")
	p.program = program
	p.setState(model.StateRunnable)
	k.initProc = p
	p.lock.release()
	k.publish(model.ProcEvent{Type: model.EventBoot, PID: p.PID(), Name: p.Name()})
	return nil
}

// fork creates a child of p running program. An empty name keeps the
// parent's name.
func (k *Kernel) fork(p *Proc, program Program, name string) (pid int, err error) {
	_, span := tracing.StartSpan(context.Background(), "kernel.fork", tracing.KindInternal)
	span.WithInt("parent", p.PID())
	defer func() { tracing.EndSpan(span.WithInt("pid", pid), err) }()

	np, err := k.allocproc()
	if err != nil {
		return -1, err
	}
	if k.config.COW {
		err = k.share(p.space, np.space, p.sz, np.PID())
	} else {
		err = p.space.Duplicate(np.space, p.sz)
	}
	if err != nil {
		k.freeproc(np)
		np.lock.release()
		return -1, fmt.Errorf("%w: fork: %v", ErrNoMemory, err)
	}
	np.sz = p.sz
	if name == "" {
		name = p.Name()
	}
	np.setName(name)
	np.program = program
	pid = np.PID()
	k.resources.Duplicate(p.PID(), pid)
	np.lock.release()

	k.waitLock.acquire()
	np.parent = p.index
	k.waitLock.release()

	np.lock.acquire()
	np.setState(model.StateRunnable)
	np.lock.release()

	k.stats.Update(progress.Delta{Forks: 1})
	k.logger.Info("fork", zap.Int("pid", pid), zap.Int("parent", p.PID()), zap.String("name", name))
	k.publish(model.ProcEvent{Type: model.EventFork, PID: p.PID(), Target: pid, Name: name})
	return pid, nil
}

// reparent passes the children of p to init. The caller holds the wait lock.
func (k *Kernel) reparent(p *Proc) {
	for _, pp := range k.procs {
		if pp.parent == p.index {
			pp.parent = k.initProc.index
			k.wakeup(k.initProc, p)
		}
	}
}

// exit terminates p. It does not return.
func (k *Kernel) exit(p *Proc, status int) {
	if p == k.initProc {
		panic("init exiting")
	}
	_, span := tracing.StartSpan(context.Background(), "kernel.exit", tracing.KindInternal)
	tracing.EndSpan(span.WithInt("pid", p.PID()).WithInt("status", status), nil)
	k.resources.Release(p.PID())
	k.stats.Update(progress.Delta{Exits: 1})
	k.logger.Info("exit", zap.Int("pid", p.PID()), zap.Int("status", status))
	k.publish(model.ProcEvent{Type: model.EventExit, PID: p.PID(), Name: p.Name(), Status: status})

	k.waitLock.acquire()
	k.reparent(p)
	if p.parent >= 0 {
		k.wakeup(k.procs[p.parent], p)
	}
	p.lock.acquire()
	p.xstate = status
	p.times.Exited = k.clock.Now()
	p.setState(model.StateZombie)
	k.waitLock.release()
	k.schedExit(p)
}

// waitResult is what wait copies out for a reaped child
type waitResult struct {
	pid    int
	status int
	wtime  uint64
	rtime  uint64
}

// wait blocks until a child of p exits, then reaps it
func (k *Kernel) wait(p *Proc) (result waitResult, err error) {
	_, span := tracing.StartSpan(context.Background(), "kernel.wait", tracing.KindInternal)
	defer func() { tracing.EndSpan(span.WithInt("pid", result.pid), err) }()

	k.scheduler.Retire(p)
	k.waitLock.acquire()
	for {
		haveKids := false
		for _, pp := range k.procs {
			if pp.parent != p.index {
				continue
			}
			pp.lock.acquire()
			haveKids = true
			if pp.State() == model.StateZombie {
				record := k.exitRecord(pp, p.PID())
				result = waitResult{
					pid:    record.PID,
					status: record.Status,
					wtime:  record.WaitTicks,
					rtime:  record.RunTicks,
				}
				k.freeproc(pp)
				pp.parent = -1
				pp.lock.release()
				k.waitLock.release()
				k.reaped(record)
				return result, nil
			}
			pp.lock.release()
		}
		if !haveKids || p.isKilled() {
			k.waitLock.release()
			return waitResult{pid: -1}, ErrNoChildren
		}
		k.sleep(p, p, &k.waitLock)
	}
}

// exitRecord captures the accounting of zombie pp; the caller holds its lock
func (k *Kernel) exitRecord(pp *Proc, parent int) model.ExitRecord {
	t := pp.times
	var waiting uint64
	if elapsed := t.Exited - t.Created; elapsed > t.Run {
		waiting = elapsed - t.Run
	}
	return model.ExitRecord{
		PID:       pp.PID(),
		ParentPID: parent,
		Name:      pp.Name(),
		Status:    pp.xstate,
		Killed:    pp.killed,
		Created:   t.Created,
		Exited:    t.Exited,
		RunTicks:  t.Run,
		WaitTicks: waiting,
		Scheduled: pp.sched.Scheduled,
		ReapedAt:  clock.Now(),
	}
}

func (k *Kernel) reaped(record model.ExitRecord) {
	k.stats.Update(progress.Delta{Reaps: 1})
	k.logger.Info("reap", zap.Int("pid", record.PID), zap.Int("parent", record.ParentPID), zap.Int("status", record.Status))
	k.publish(model.ProcEvent{Type: model.EventReap, PID: record.ParentPID, Target: record.PID, Name: record.Name, Status: record.Status})
	if k.onReap != nil {
		k.onReap(record)
	}
}

// kill marks pid killed and wakes it if it sleeps
func (k *Kernel) kill(pid int) (err error) {
	_, span := tracing.StartSpan(context.Background(), "kernel.kill", tracing.KindInternal)
	defer func() { tracing.EndSpan(span.WithInt("pid", pid), err) }()
	for _, p := range k.procs {
		p.lock.acquire()
		if p.State() != model.StateUnused && p.PID() == pid {
			p.killed = true
			if p.State() == model.StateSleeping {
				p.setState(model.StateRunnable)
			}
			p.lock.release()
			k.stats.Update(progress.Delta{Kills: 1})
			k.logger.Info("kill", zap.Int("pid", pid))
			k.publish(model.ProcEvent{Type: model.EventKill, PID: pid})
			return nil
		}
		p.lock.release()
	}
	return fmt.Errorf("%w: %d", ErrNotFound, pid)
}

// setPriority sets the static priority of pid and returns the previous one.
// The caller yields when the priority improved.
func (k *Kernel) setPriority(caller *Proc, pid, value int) (old int, err error) {
	_, span := tracing.StartSpan(context.Background(), "kernel.set_priority", tracing.KindInternal)
	defer func() { tracing.EndSpan(span.WithInt("pid", pid).WithInt("priority", value), err) }()
	if value < 0 || value > MaxPriority {
		return -1, fmt.Errorf("%w: %d", ErrInvalidPriority, value)
	}
	for _, p := range k.procs {
		p.lock.acquire()
		if p.State() == model.StateUnused || p.PID() != pid {
			p.lock.release()
			continue
		}
		old = p.sched.Static
		p.sched.Static = value
		p.sched.RBI = DefaultRBI
		p.sched.Dynamic = DynamicPriority(value, p.sched.RBI)
		p.lock.release()
		k.logger.Info("priority", zap.Int("pid", pid), zap.Int("old", old), zap.Int("new", value))
		k.publish(model.ProcEvent{Type: model.EventPriority, PID: caller.PID(), Target: pid, Status: value})
		if value < old {
			k.yield(caller)
		}
		return old, nil
	}
	return -1, fmt.Errorf("%w: %d", ErrNotFound, pid)
}

// growproc grows or shrinks the user memory of p by n bytes
func (k *Kernel) growproc(p *Proc, n int) error {
	sz := p.sz
	switch {
	case n > 0:
		newsz := sz + uint64(n)
		if newsz > k.trapframeVA() {
			return fmt.Errorf("%w: sbrk %d", ErrNoMemory, n)
		}
		grown, err := p.space.Grow(sz, newsz, vm.PermW)
		if err != nil {
			return fmt.Errorf("%w: sbrk %d: %v", ErrNoMemory, n, err)
		}
		sz = grown
	case n < 0:
		shrink := uint64(-n)
		if shrink > sz {
			return fmt.Errorf("%w: sbrk %d", ErrBadAddress, n)
		}
		sz = p.space.Shrink(sz, sz-shrink)
	}
	p.sz = sz
	return nil
}
