package kernel

import (
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/timer"
	"github.com/viant/kproc/service/vm"
	"go.uber.org/zap"
)

// Reason is the cause of a trap into the kernel
type Reason int

const (
	ReasonSyscall Reason = iota
	ReasonTimer
	ReasonDevice
	ReasonPageFault
	ReasonOther
)

func (r Reason) String() string {
	switch r {
	case ReasonSyscall:
		return "syscall"
	case ReasonTimer:
		return "timer"
	case ReasonDevice:
		return "device"
	case ReasonPageFault:
		return "pagefault"
	}
	return "other"
}

// Trap describes one entry into the kernel from user mode
type Trap struct {
	Reason Reason
	// Addr is the faulting address of a page fault
	Addr uint64
	// Write is set for a store page fault
	Write bool
	// IRQ is the claimed device interrupt
	IRQ   int
	Cause string
}

// usertrap handles a trap taken by the running process p. It returns only
// if p may continue.
func (k *Kernel) usertrap(p *Proc, trap Trap) {
	switch trap.Reason {
	case ReasonSyscall:
	case ReasonTimer:
		if p.cpu == 0 {
			k.clockintr()
		}
	case ReasonDevice:
		k.devintr(p.cpu, trap.IRQ)
	case ReasonPageFault:
		k.pagefault(p, trap.Addr, trap.Write)
	default:
		k.logger.Warn("usertrap: unexpected trap",
			zap.Int("pid", p.PID()), zap.String("cause", trap.Cause), zap.Uint64("addr", trap.Addr))
		p.setKilled()
	}
	if p.isKilled() {
		k.exit(p, -1)
	}
	if trap.Reason == ReasonTimer && k.scheduler.Preempt(p, k.clock.Now()) {
		k.yield(p)
	}
}

// interrupts takes the interrupts pending on the CPU running p
func (k *Kernel) interrupts(p *Proc) {
	line := k.device.Line(p.cpu)
	for {
		irq, ok := line.Claim()
		if !ok {
			break
		}
		k.usertrap(p, Trap{Reason: ReasonDevice, IRQ: irq})
	}
	if line.TakeTimer() {
		k.usertrap(p, Trap{Reason: ReasonTimer})
	}
}

// kerneltrap takes interrupts pending while the CPU runs its scheduler
func (k *Kernel) kerneltrap(c *CPU, line *timer.Line) {
	for {
		irq, ok := line.Claim()
		if !ok {
			break
		}
		k.devintr(c.id, irq)
	}
	if line.TakeTimer() && c.id == 0 {
		k.clockintr()
	}
}

func (k *Kernel) devintr(cpu, irq int) {
	k.irqMu.RLock()
	handler, ok := k.irqs[irq]
	k.irqMu.RUnlock()
	if !ok {
		k.logger.Warn("unexpected interrupt", zap.Int("irq", irq), zap.Int("cpu", cpu))
		return
	}
	handler(cpu)
}

// pagefault resolves a COW fault or kills p
func (k *Kernel) pagefault(p *Proc, va uint64, write bool) {
	k.stats.Update(progress.Delta{Faults: 1})
	if va == 0 || va >= k.config.MaxVA {
		k.killFault(p, va, "address out of range")
		return
	}
	pte, ok := p.space.Translate(va)
	switch {
	case !ok:
		k.killFault(p, va, "page not mapped")
	case !pte.Perm.Has(vm.PermU):
		k.killFault(p, va, "kernel page")
	case !write:
		k.killFault(p, va, "read fault")
	case !pte.COW:
		k.killFault(p, va, "write to read-only page")
	default:
		if err := k.resolveCOW(p, va); err != nil {
			k.killFault(p, va, err.Error())
		}
	}
}

func (k *Kernel) killFault(p *Proc, va uint64, detail string) {
	k.logger.Warn("usertrap: killed by fault",
		zap.Int("pid", p.PID()), zap.Uint64("addr", va), zap.String("reason", detail))
	p.setKilled()
	k.publish(model.ProcEvent{Type: model.EventFault, PID: p.PID(), Addr: va, Detail: detail})
}
