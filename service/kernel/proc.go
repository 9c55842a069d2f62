package kernel

import (
	"sync/atomic"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/vm"
)

// Default scheduling parameters of a fresh process
const (
	DefaultStaticPriority  = 50
	DefaultRBI             = 25
	DefaultDynamicPriority = 75
	MaxPriority            = 100
)

// Program is the user code a process executes
type Program func(u *User)

// Times holds the tick accounting of a process
type Times struct {
	Created uint64
	Exited  uint64
	// Run is the total number of ticks spent running
	Run uint64
	// Running, Sleeping and Waiting are the counters of the current PBS
	// window; Running and Sleeping restart whenever PBS selects the process
	Running  uint64
	Sleeping uint64
	Waiting  uint64
}

// Sched holds the per-process scheduling policy state
type Sched struct {
	Static    int
	Dynamic   int
	RBI       int
	Scheduled int
	// MLFQ state, guarded by the MLFQ queue lock
	Level         int
	QuantumTicks  int
	LastScheduled uint64
	Queued        bool
}

// Proc is a process control block. Fields are guarded by lock unless noted.
type Proc struct {
	index int
	lock  spinlock

	// state, pid and name are written under lock and stored atomically so
	// that the diagnostic dump can read them without locking
	state atomic.Int32
	pid   atomic.Int64
	name  atomic.Pointer[string]

	channel any
	killed  bool
	xstate  int

	// parent is a process table index guarded by the kernel wait lock
	parent int

	// private to the process thread once it is running
	space   *vm.Space
	frame   int
	sz      uint64
	program Program
	ctx     *kcontext
	cpu     int

	times Times
	sched Sched
}

func newProc(index int, halted <-chan struct{}) *Proc {
	p := &Proc{index: index, parent: -1, frame: -1}
	p.lock = spinlock{name: "proc", halted: halted}
	p.setName("")
	return p
}

// Index returns the process table slot
func (p *Proc) Index() int {
	return p.index
}

// PID returns the process id
func (p *Proc) PID() int {
	return int(p.pid.Load())
}

// Name returns the process name
func (p *Proc) Name() string {
	return *p.name.Load()
}

// State returns the lifecycle state
func (p *Proc) State() model.State {
	return model.State(p.state.Load())
}

func (p *Proc) setState(state model.State) {
	p.state.Store(int32(state))
}

func (p *Proc) setName(name string) {
	p.name.Store(&name)
}

func (p *Proc) setKilled() {
	p.lock.acquire()
	p.killed = true
	p.lock.release()
}

func (p *Proc) isKilled() bool {
	p.lock.acquire()
	defer p.lock.release()
	return p.killed
}

func (p *Proc) info() model.ProcInfo {
	return model.ProcInfo{PID: p.PID(), State: p.State(), Name: p.Name()}
}
