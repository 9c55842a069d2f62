package kproc

import (
	"github.com/viant/kproc/service/dao/history"
	"github.com/viant/kproc/service/event"
	"github.com/viant/kproc/service/kernel"
	"github.com/viant/kproc/service/timer"
	"github.com/viant/kproc/tracing"
	"github.com/viant/kproc/workload"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the Service
type Option func(s *Service)

// WithConfig sets the machine configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithInit sets the program run by the first process
func WithInit(program kernel.Program) Option {
	return func(s *Service) {
		s.init = program
	}
}

// WithWorkload runs w's init program as the first process
func WithWorkload(w *workload.Workload) Option {
	return func(s *Service) {
		s.workload = w
	}
}

// WithLogger sets the logger; it overrides the logging config
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithHistory sets the store of reaped exit records
func WithHistory(srv history.Service) Option {
	return func(s *Service) {
		s.history = srv
	}
}

// WithEvents sets the lifecycle event service
func WithEvents(srv *event.Service) Option {
	return func(s *Service) {
		s.events = srv
	}
}

// WithDevice sets the interrupt device
func WithDevice(device *timer.Device) Option {
	return func(s *Service) {
		s.device = device
	}
}

// WithResources sets the collaborator duplicating and releasing per-process
// resources on fork and exit
func WithResources(resources kernel.Resources) Option {
	return func(s *Service) {
		s.resources = resources
	}
}

// WithTracing configures OpenTelemetry tracing with the stdout exporter. If
// outputFile is empty spans go to stdout. The first successful initialisation
// wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		s.tracing = &tracing.Config{Enabled: true, Service: serviceName, Version: serviceVersion, OutputFile: outputFile}
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
