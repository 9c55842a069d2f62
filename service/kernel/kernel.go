package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/viant/kproc/model"
	"github.com/viant/kproc/policy"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/allocator"
	"github.com/viant/kproc/service/pageref"
	"github.com/viant/kproc/service/timer"
	"go.uber.org/zap"
)

// IRQHandler services a device interrupt on cpu
type IRQHandler func(cpu int)

// Kernel is the process table together with the CPUs that run it
type Kernel struct {
	config    Config
	policy    policy.Config
	logger    *zap.Logger
	frames    *pageref.Pool
	device    *timer.Device
	resources Resources
	onEvent   func(model.ProcEvent)
	onReap    func(model.ExitRecord)
	stats     *progress.Progress

	clock     timer.Clock
	procs     []*Proc
	cpus      []*CPU
	scheduler Scheduler
	initProc  *Proc

	pidLock  spinlock
	nextPID  int
	waitLock spinlock
	tickLock spinlock

	irqMu sync.RWMutex
	irqs  map[int]IRQHandler

	booted   atomic.Bool
	halted   chan struct{}
	haltOnce sync.Once
	errMu    sync.Mutex
	err      error
	wg       sync.WaitGroup
}

// New creates a kernel with an empty process table
func New(config Config, options ...Option) (*Kernel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	k := &Kernel{
		config:    config,
		policy:    policy.DefaultConfig(),
		logger:    zap.NewNop(),
		resources: noResources{},
		nextPID:   1,
		irqs:      map[int]IRQHandler{},
		halted:    make(chan struct{}),
	}
	for _, opt := range options {
		opt(k)
	}
	k.logger = k.logger.Named("kernel")
	k.policy.Normalize()
	if err := k.policy.Validate(); err != nil {
		return nil, err
	}
	if k.frames == nil {
		frames, err := allocator.New(allocator.DefaultConfig())
		if err != nil {
			return nil, err
		}
		k.frames = pageref.NewPool(frames, pageref.NewTable(frames.Frames()))
	}
	if k.config.MaxVA < 3*uint64(k.frames.PageSize()) {
		return nil, fmt.Errorf("kernel.maxVA %#x is too small", k.config.MaxVA)
	}
	if k.device == nil {
		device, err := timer.NewDevice(timer.DefaultConfig(), config.CPUs)
		if err != nil {
			return nil, err
		}
		k.device = device
	}
	if k.device.CPUs() < config.CPUs {
		return nil, fmt.Errorf("timer device has %d lines, want %d", k.device.CPUs(), config.CPUs)
	}
	k.pidLock = spinlock{name: "nextpid", halted: k.halted}
	k.waitLock = spinlock{name: "wait_lock", halted: k.halted}
	k.tickLock = spinlock{name: "time", halted: k.halted}
	for i := 0; i < config.Procs; i++ {
		k.procs = append(k.procs, newProc(i, k.halted))
	}
	for i := 0; i < config.CPUs; i++ {
		k.cpus = append(k.cpus, &CPU{id: i, ctx: newContext()})
	}
	scheduler, err := newScheduler(k.policy, k.procs, config.CPUs)
	if err != nil {
		return nil, err
	}
	k.scheduler = scheduler
	return k, nil
}

// Boot creates the first process running init and starts every CPU
func (k *Kernel) Boot(ctx context.Context, init Program) error {
	if init == nil {
		return fmt.Errorf("init program was nil")
	}
	if !k.booted.CompareAndSwap(false, true) {
		return fmt.Errorf("kernel already booted")
	}
	if err := k.userinit(init); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-k.halted
		cancel()
	}()
	k.device.Start(ctx)
	for _, c := range k.cpus {
		k.wg.Add(1)
		go k.schedule(c)
	}
	k.logger.Info("boot",
		zap.Int("cpus", len(k.cpus)),
		zap.Int("procs", len(k.procs)),
		zap.String("scheduler", k.scheduler.Kind()),
		zap.Bool("cow", k.config.COW))
	return nil
}

// Halt stops the machine. A nil err is an orderly stop.
func (k *Kernel) Halt(err error) {
	k.haltOnce.Do(func() {
		k.errMu.Lock()
		k.err = err
		k.errMu.Unlock()
		close(k.halted)
		if err != nil {
			k.logger.Error("panic", zap.Error(err))
		}
		k.publish(model.ProcEvent{Type: model.EventHalt, Detail: errorText(err)})
	})
}

// Halted returns a channel closed once the machine stops
func (k *Kernel) Halted() <-chan struct{} {
	return k.halted
}

// Err returns the error that halted the machine
func (k *Kernel) Err() error {
	k.errMu.Lock()
	defer k.errMu.Unlock()
	return k.err
}

// Wait blocks until the machine halts and returns the halt error
func (k *Kernel) Wait(ctx context.Context) error {
	select {
	case <-k.halted:
		return k.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown halts the machine and waits for every kernel thread to exit
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.Halt(nil)
	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return k.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recoverPanic turns a panic on a kernel thread into a machine halt
func (k *Kernel) recoverPanic() {
	if r := recover(); r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		k.Halt(fmt.Errorf("kernel panic: %w", err))
	}
}

// Uptime returns the number of clock ticks since boot
func (k *Kernel) Uptime() uint64 {
	return k.clock.Now()
}

// Config returns the kernel configuration
func (k *Kernel) Config() Config {
	return k.config
}

// Policy returns the scheduling policy in use
func (k *Kernel) Policy() policy.Config {
	return k.policy
}

// Frames returns the refcounted frame pool
func (k *Kernel) Frames() *pageref.Pool {
	return k.frames
}

// Device returns the interrupt device
func (k *Kernel) Device() *timer.Device {
	return k.device
}

// Stats returns a copy of the kernel counters
func (k *Kernel) Stats() progress.Stats {
	return k.stats.Snapshot()
}

// RegisterIRQ installs the handler of a device interrupt
func (k *Kernel) RegisterIRQ(irq int, handler IRQHandler) {
	k.irqMu.Lock()
	defer k.irqMu.Unlock()
	k.irqs[irq] = handler
}

// Raise posts a device interrupt to cpu
func (k *Kernel) Raise(cpu, irq int) {
	k.device.Line(cpu).Raise(irq)
}

// Dump lists every process in use. It takes no locks and may observe a
// process mid-transition.
func (k *Kernel) Dump() []model.ProcInfo {
	var ret []model.ProcInfo
	for _, p := range k.procs {
		if p.State() == model.StateUnused {
			continue
		}
		ret = append(ret, p.info())
	}
	return ret
}

func (k *Kernel) publish(event model.ProcEvent) {
	if k.onEvent == nil {
		return
	}
	event.Tick = k.clock.Now()
	k.onEvent(event)
}

func errorText(err error) string {
	if err == nil || errors.Is(err, ErrHalted) {
		return ""
	}
	return err.Error()
}
