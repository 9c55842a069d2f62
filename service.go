package kproc

import (
	"fmt"

	"github.com/viant/afs/url"
	"github.com/viant/kproc/internal/clock"
	"github.com/viant/kproc/internal/idgen"
	"github.com/viant/kproc/internal/logging"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/allocator"
	"github.com/viant/kproc/service/dao/history"
	hfs "github.com/viant/kproc/service/dao/history/fs"
	hmemory "github.com/viant/kproc/service/dao/history/memory"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/kernel"
	mfs "github.com/viant/kproc/service/messaging/fs"
	mmemory "github.com/viant/kproc/service/messaging/memory"
	"github.com/viant/kproc/service/pageref"
	"github.com/viant/kproc/service/timer"
	"github.com/viant/kproc/tracing"
	"github.com/viant/kproc/workload"
	"go.uber.org/zap"
)

// Service assembles a machine from its configuration and collaborators
type Service struct {
	config    *Config
	logger    *zap.Logger
	init      kernel.Program
	workload  *workload.Workload
	history   history.Service
	events    *event.Service
	device    *timer.Device
	resources kernel.Resources
	tracing   *tracing.Config
	runtime   *Runtime
}

// New validates the configuration and wires a runtime ready to Start
func New(options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(ret)
	}
	if err := ret.wire(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Runtime returns the machine runtime
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) wire() error {
	if s.tracing != nil {
		s.config.Tracing = *s.tracing
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	var err error
	if s.logger == nil {
		if s.logger, err = logging.New(s.config.Logging); err != nil {
			return err
		}
	}
	if s.config.Tracing.Enabled {
		if err = tracing.Init(s.config.Tracing.Service, s.config.Tracing.Version, s.config.Tracing.OutputFile); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	bootID := idgen.NewBootID()
	r := &Runtime{
		bootID:   bootID,
		logger:   s.logger.With(zap.String("boot", bootID)),
		stats:    progress.New(bootID, clock.Now()),
		initDone: make(chan struct{}),
	}
	if err = s.ensureHistory(); err != nil {
		return err
	}
	r.history = s.history
	if err = s.ensureEvents(bootID); err != nil {
		return err
	}
	r.events = s.events
	if r.events != nil {
		if r.publisher, err = event.PublisherOf[model.ProcEvent](r.events); err != nil {
			return err
		}
	}
	if r.init, err = s.initProgram(r); err != nil {
		return err
	}

	if r.allocator, err = allocator.New(s.config.Memory); err != nil {
		return err
	}
	frames := pageref.NewPool(r.allocator, pageref.NewTable(r.allocator.Frames()))
	if s.device == nil {
		if s.device, err = timer.NewDevice(s.config.Timer, s.config.Kernel.CPUs); err != nil {
			return err
		}
	}
	options := []kernel.Option{
		kernel.WithLogger(r.logger),
		kernel.WithPolicy(s.config.Scheduler),
		kernel.WithFrames(frames),
		kernel.WithDevice(s.device),
		kernel.WithResources(s.resources),
		kernel.WithProgress(r.stats),
		kernel.WithReaper(r.saveRecord),
	}
	if r.publisher != nil {
		options = append(options, kernel.WithEvents(r.publishEvent))
	}
	if r.kernel, err = kernel.New(s.config.Kernel, options...); err != nil {
		return err
	}
	s.runtime = r
	return nil
}

func (s *Service) initProgram(r *Runtime) (kernel.Program, error) {
	if s.init != nil {
		program := s.init
		return func(u *kernel.User) {
			program(u)
			r.markInitDone()
			for {
				if u.Wait(nil) < 0 {
					u.Sleep(1)
				}
			}
		}, nil
	}
	if s.workload == nil {
		return nil, fmt.Errorf("init program was not defined, use WithInit or WithWorkload")
	}
	return s.workload.Compile(r.markInitDone, workload.WithLogger(r.logger))
}

func (s *Service) ensureHistory() error {
	if s.history != nil {
		return nil
	}
	switch s.config.History.Vendor {
	case "fs":
		srv, err := hfs.New(s.config.History.BasePath)
		if err != nil {
			return err
		}
		s.history = srv
	default:
		s.history = hmemory.New()
	}
	return nil
}

func (s *Service) ensureEvents(bootID string) error {
	if s.events != nil || !s.config.Events.Enabled {
		return nil
	}
	config := s.config.Events
	srv, err := event.New(config.Vendor,
		event.WithBootID(bootID),
		event.WithLogger(s.logger),
		event.WithNewMemoryQueueConfig(func(string) mmemory.Config {
			ret := mmemory.DefaultConfig()
			ret.QueueBuffer = config.Buffer
			ret.DropWhenFull = true
			return ret
		}),
		event.WithNewFsQueueConfig(func(name string) mfs.Config {
			ret := mfs.DefaultConfig()
			ret.BasePath = url.Join(config.BasePath, bootID, name)
			return ret
		}),
	)
	if err != nil {
		return err
	}
	s.events = srv
	return nil
}
