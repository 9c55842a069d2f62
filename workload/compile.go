package workload

import (
	"sync"

	"github.com/viant/kproc/service/kernel"
	"go.uber.org/zap"
)

// Result is reported for every child reaped by waitx
type Result struct {
	Parent int
	PID    int
	Status int
	WTime  uint64
	RTime  uint64
}

type compiler struct {
	workload *Workload
	logger   *zap.Logger
	onResult func(Result)
}

// CompileOption customises compiled programs
type CompileOption func(c *compiler)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) CompileOption {
	return func(c *compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithResults registers a callback for waitx results
func WithResults(fn func(Result)) CompileOption {
	return func(c *compiler) {
		c.onResult = fn
	}
}

// Compile returns the init program. done, when not nil, is called once
// init has run all its ops; init then reaps orphans until the machine stops.
func (w *Workload) Compile(done func(), options ...CompileOption) (kernel.Program, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	c := &compiler{workload: w, logger: zap.NewNop()}
	for _, opt := range options {
		opt(c)
	}
	c.logger = c.logger.Named("workload")
	var once sync.Once
	ops := w.Programs[w.Init].Ops
	return func(u *kernel.User) {
		c.run(u, ops)
		if done != nil {
			once.Do(done)
		}
		for {
			if u.Wait(nil) < 0 {
				u.Sleep(1)
			}
		}
	}, nil
}

func (c *compiler) program(name string) kernel.Program {
	ops := c.workload.Programs[name].Ops
	return func(u *kernel.User) {
		c.run(u, ops)
	}
}

func (c *compiler) run(u *kernel.User, ops []*Op) {
	for _, op := range ops {
		switch op.Kind {
		case KindSpin:
			u.Spin(op.N)
		case KindSleep:
			u.Sleep(op.N)
		case KindFork:
			for i := 0; i < op.Count; i++ {
				if pid := u.Spawn(op.Name, c.program(op.Name)); pid < 0 {
					c.logger.Warn("fork failed", zap.Int("pid", u.PID()), zap.String("program", op.Name), zap.Int("line", op.Line))
				}
			}
		case KindWait:
			if !op.All {
				u.Wait(nil)
				continue
			}
			for u.Wait(nil) >= 0 {
			}
		case KindWaitX:
			result := Result{Parent: u.PID()}
			if result.PID = u.WaitX(&result.Status, &result.WTime, &result.RTime); result.PID < 0 {
				continue
			}
			c.logger.Info("waitx", zap.Int("pid", result.PID), zap.Int("status", result.Status),
				zap.Uint64("wtime", result.WTime), zap.Uint64("rtime", result.RTime))
			if c.onResult != nil {
				c.onResult(result)
			}
		case KindExit:
			u.Exit(op.N)
		case KindKill:
			u.Kill(op.N)
		case KindPriority:
			pid := op.Target
			if op.Self {
				pid = u.PID()
			}
			if u.SetPriority(pid, op.N) < 0 {
				c.logger.Warn("set priority failed", zap.Int("pid", pid), zap.Int("priority", op.N), zap.Int("line", op.Line))
			}
		case KindSbrk:
			u.Sbrk(op.N)
		case KindStore:
			u.Store(op.Addr, byte(op.N))
		case KindLoad:
			u.Load(op.Addr)
		case KindLoop:
			for i := 0; i < op.N; i++ {
				c.run(u, op.Body)
			}
		}
	}
}
