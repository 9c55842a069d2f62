package kernel

import (
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/policy"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/pageref"
	"github.com/viant/kproc/service/timer"
	"go.uber.org/zap"
)

// Option represents a kernel option
type Option func(k *Kernel)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(k *Kernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithPolicy sets the scheduling policy
func WithPolicy(config policy.Config) Option {
	return func(k *Kernel) {
		k.policy = config
	}
}

// WithFrames sets the refcounted physical frame pool
func WithFrames(frames *pageref.Pool) Option {
	return func(k *Kernel) {
		k.frames = frames
	}
}

// WithDevice sets the interrupt device
func WithDevice(device *timer.Device) Option {
	return func(k *Kernel) {
		k.device = device
	}
}

// WithResources sets the open-resource collaborator
func WithResources(resources Resources) Option {
	return func(k *Kernel) {
		if resources != nil {
			k.resources = resources
		}
	}
}

// WithEvents registers a lifecycle event callback. It runs on kernel
// threads with no lock held and must not block.
func WithEvents(fn func(event model.ProcEvent)) Option {
	return func(k *Kernel) {
		k.onEvent = fn
	}
}

// WithReaper registers a callback invoked for every reaped process
func WithReaper(fn func(record model.ExitRecord)) Option {
	return func(k *Kernel) {
		k.onReap = fn
	}
}

// WithProgress sets the counter tracker
func WithProgress(tracker *progress.Progress) Option {
	return func(k *Kernel) {
		k.stats = tracker
	}
}
