package kernel

import (
	"github.com/viant/kproc/service/vm"
)

// User is the view a Program has of the machine. Its methods run on the
// process's own kernel thread; system calls return -1 on failure.
type User struct {
	k *Kernel
	p *Proc
}

// PID returns the caller's process id
func (u *User) PID() int {
	return u.p.PID()
}

// Name returns the caller's process name
func (u *User) Name() string {
	return u.p.Name()
}

// syscall enters the kernel, runs fn and checks for a pending kill on the
// way in and out
func (u *User) syscall(fn func() int) int {
	u.k.usertrap(u.p, Trap{Reason: ReasonSyscall})
	ret := fn()
	if u.p.isKilled() {
		u.k.exit(u.p, -1)
	}
	return ret
}

// Fork creates a child process running child and returns its pid
func (u *User) Fork(child Program) int {
	return u.Spawn("", child)
}

// Spawn forks a child running child under name
func (u *User) Spawn(name string, child Program) int {
	return u.syscall(func() int {
		pid, err := u.k.fork(u.p, child, name)
		if err != nil {
			return -1
		}
		return pid
	})
}

// Exit terminates the caller
func (u *User) Exit(status int) {
	u.k.usertrap(u.p, Trap{Reason: ReasonSyscall})
	u.k.exit(u.p, status)
}

// Wait reaps a child and stores its exit status in status when not nil
func (u *User) Wait(status *int) int {
	return u.syscall(func() int {
		result, err := u.k.wait(u.p)
		if err != nil {
			return -1
		}
		if status != nil {
			*status = result.status
		}
		return result.pid
	})
}

// WaitX is Wait that also reports the child's waiting and running ticks
func (u *User) WaitX(status *int, wtime, rtime *uint64) int {
	return u.syscall(func() int {
		result, err := u.k.wait(u.p)
		if err != nil {
			return -1
		}
		if status != nil {
			*status = result.status
		}
		if wtime != nil {
			*wtime = result.wtime
		}
		if rtime != nil {
			*rtime = result.rtime
		}
		return result.pid
	})
}

// Kill marks pid killed
func (u *User) Kill(pid int) int {
	return u.syscall(func() int {
		if err := u.k.kill(pid); err != nil {
			return -1
		}
		return 0
	})
}

// SetPriority sets the static priority of pid and returns the old value
func (u *User) SetPriority(pid, value int) int {
	return u.syscall(func() int {
		old, err := u.k.setPriority(u.p, pid, value)
		if err != nil {
			return -1
		}
		return old
	})
}

// Sleep blocks for n clock ticks
func (u *User) Sleep(n int) int {
	return u.syscall(func() int {
		if n < 0 {
			n = 0
		}
		if err := u.k.sleepTicks(u.p, uint64(n)); err != nil {
			return -1
		}
		return 0
	})
}

// Sbrk grows user memory by n bytes and returns the previous size
func (u *User) Sbrk(n int) int {
	return u.syscall(func() int {
		old := u.p.sz
		if err := u.k.growproc(u.p, n); err != nil {
			return -1
		}
		return int(old)
	})
}

// Uptime returns the number of clock ticks since boot
func (u *User) Uptime() int {
	return u.syscall(func() int {
		return int(u.k.clock.Now())
	})
}

// Spin executes n user cycles, taking interrupts between them
func (u *User) Spin(n int) {
	for i := 0; i < n; i++ {
		u.k.device.Line(u.p.cpu).Cycle()
		u.k.interrupts(u.p)
	}
}

// Load reads the byte at va
func (u *User) Load(va uint64) byte {
	for {
		pte, ok := u.p.space.Translate(va)
		if ok && pte.Perm.Has(vm.PermU|vm.PermR) {
			return u.k.frames.Bytes(pte.Frame)[va-u.p.space.RoundDown(va)]
		}
		u.k.usertrap(u.p, Trap{Reason: ReasonPageFault, Addr: va})
	}
}

// Store writes b at va, faulting in a private copy of a shared page
func (u *User) Store(va uint64, b byte) {
	for {
		pte, ok := u.p.space.Translate(va)
		if ok && pte.Perm.Has(vm.PermU|vm.PermW) {
			u.k.frames.Bytes(pte.Frame)[va-u.p.space.RoundDown(va)] = b
			return
		}
		u.k.usertrap(u.p, Trap{Reason: ReasonPageFault, Addr: va, Write: true})
	}
}

// Trap raises a synchronous trap from user mode
func (u *User) Trap(trap Trap) {
	u.k.usertrap(u.p, trap)
}

// Size returns the size of user memory in bytes
func (u *User) Size() uint64 {
	return u.p.sz
}
