package kproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/allocator"
	"github.com/viant/kproc/service/dao"
	"github.com/viant/kproc/service/dao/history"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/kernel"
	"github.com/viant/kproc/service/messaging"
	"go.uber.org/zap"
)

// Runtime is a booted (or bootable) machine
type Runtime struct {
	kernel    *kernel.Kernel
	allocator *allocator.Service
	history   history.Service
	events    *event.Service
	publisher *event.Publisher[model.ProcEvent]
	stats     *progress.Progress
	logger    *zap.Logger
	bootID    string
	init      kernel.Program
	initDone  chan struct{}
	doneOnce  sync.Once
}

// Start boots the first process and starts the CPU threads
func (r *Runtime) Start(ctx context.Context) error {
	return r.kernel.Boot(ctx, r.init)
}

// Shutdown halts the machine, waits for its threads bounded by ctx and
// stops event listeners
func (r *Runtime) Shutdown(ctx context.Context) error {
	err := r.kernel.Shutdown(ctx)
	if r.events != nil {
		r.events.Close()
	}
	return err
}

// Wait blocks until the machine halts and returns the error that halted it
func (r *Runtime) Wait(ctx context.Context) error {
	return r.kernel.Wait(ctx)
}

// Halted returns a channel closed once the machine stops
func (r *Runtime) Halted() <-chan struct{} {
	return r.kernel.Halted()
}

// InitDone returns a channel closed once the init program ran all its ops
func (r *Runtime) InitDone() <-chan struct{} {
	return r.initDone
}

func (r *Runtime) markInitDone() {
	r.doneOnce.Do(func() { close(r.initDone) })
}

// Dump lists every process in use
func (r *Runtime) Dump() []model.ProcInfo {
	return r.kernel.Dump()
}

// WriteDump writes the process dump, one process per line
func (r *Runtime) WriteDump(w io.Writer) error {
	for _, info := range r.Dump() {
		if _, err := fmt.Fprintln(w, info.String()); err != nil {
			return err
		}
	}
	return nil
}

// DumpTo uploads the process dump to URL
func (r *Runtime) DumpTo(ctx context.Context, URL string) error {
	buffer := &bytes.Buffer{}
	if err := r.WriteDump(buffer); err != nil {
		return err
	}
	if err := afs.New().Upload(ctx, URL, file.DefaultFileOsMode, buffer); err != nil {
		return fmt.Errorf("failed to write process dump to %s: %w", URL, err)
	}
	return nil
}

// History lists reaped processes ordered by pid
func (r *Runtime) History(ctx context.Context, parameters ...*dao.Parameter) ([]*model.ExitRecord, error) {
	return r.history.List(ctx, parameters...)
}

// Stats returns a snapshot of the kernel counters
func (r *Runtime) Stats() progress.Stats {
	return r.stats.Snapshot()
}

// OnStats registers fn to receive the counters after every change. fn runs
// on kernel threads and must not block.
func (r *Runtime) OnStats(fn func(stats progress.Stats)) {
	r.stats.OnChange(fn)
}

// BootID returns the identifier of this boot
func (r *Runtime) BootID() string {
	return r.bootID
}

// Uptime returns the number of clock ticks since boot
func (r *Runtime) Uptime() uint64 {
	return r.kernel.Uptime()
}

// Kernel returns the underlying kernel
func (r *Runtime) Kernel() *kernel.Kernel {
	return r.kernel
}

// Available returns the number of free physical frames
func (r *Runtime) Available() int {
	return r.allocator.Available()
}

// Events registers handler as the listener of lifecycle events, replacing
// the previous one
func (r *Runtime) Events(handler func(*event.Event[model.ProcEvent])) error {
	if r.events == nil {
		return fmt.Errorf("events are disabled")
	}
	return event.SetListenerOf[model.ProcEvent](r.events, handler)
}

func (r *Runtime) publishEvent(e model.ProcEvent) {
	err := r.publisher.PublishData(context.Background(), e)
	switch {
	case err == nil:
	case errors.Is(err, messaging.ErrQueueFull):
		r.logger.Debug("event dropped", zap.String("type", string(e.Type)), zap.Int("pid", e.PID))
	default:
		r.logger.Warn("publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

func (r *Runtime) saveRecord(record model.ExitRecord) {
	if err := r.history.Save(context.Background(), &record); err != nil {
		r.logger.Warn("save exit record", zap.Int("pid", record.PID), zap.Error(err))
	}
}
