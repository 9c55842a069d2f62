package kproc

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/kproc/internal/logging"
	"github.com/viant/kproc/policy"
	"github.com/viant/kproc/service/allocator"
	"github.com/viant/kproc/service/kernel"
	"github.com/viant/kproc/service/messaging"
	"github.com/viant/kproc/service/meta"
	"github.com/viant/kproc/service/timer"
	"github.com/viant/kproc/tracing"
)

// Config is a serialisable representation of the machine configuration. A
// document only needs the settings it changes; everything else keeps its
// package default.
type Config struct {
	Kernel    kernel.Config    `json:"kernel" yaml:"kernel"`
	Memory    allocator.Config `json:"memory" yaml:"memory"`
	Timer     timer.Config     `json:"timer" yaml:"timer"`
	Scheduler policy.Config    `json:"scheduler" yaml:"scheduler"`
	Events    EventsConfig     `json:"events" yaml:"events"`
	History   HistoryConfig    `json:"history" yaml:"history"`
	Logging   logging.Config   `json:"logging" yaml:"logging"`
	Tracing   tracing.Config   `json:"tracing" yaml:"tracing"`
}

// EventsConfig controls the lifecycle event stream
type EventsConfig struct {
	Enabled bool             `json:"enabled" yaml:"enabled"`
	Vendor  messaging.Vendor `json:"vendor" yaml:"vendor"`
	// BasePath roots the fs journal
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	// Buffer bounds the memory queue; events beyond it are dropped
	Buffer int `json:"buffer" yaml:"buffer"`
}

// HistoryConfig selects where reaped exit records are kept
type HistoryConfig struct {
	// Vendor is memory or fs
	Vendor   string `json:"vendor" yaml:"vendor"`
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`
}

// DefaultConfig returns a Config populated with package defaults
func DefaultConfig() *Config {
	return &Config{
		Kernel:    kernel.DefaultConfig(),
		Memory:    allocator.DefaultConfig(),
		Timer:     timer.DefaultConfig(),
		Scheduler: policy.DefaultConfig(),
		Events: EventsConfig{
			Enabled: true,
			Vendor:  messaging.VendorMemory,
			Buffer:  4096,
		},
		History: HistoryConfig{Vendor: "memory"},
		Logging: logging.DefaultConfig(),
		Tracing: tracing.Config{Service: "kproc", Version: "dev"},
	}
}

// LoadConfig decodes the YAML (or JSON) document at URL over DefaultConfig.
// ${env.KEY} references are replaced with environment values.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	ret := DefaultConfig()
	if err := meta.New(afs.New()).Load(ctx, URL, ret); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", URL, err)
	}
	return ret, nil
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	errs = append(errs, c.Kernel.Validate(), c.Memory.Validate(), c.Timer.Validate(), c.Logging.Validate())
	scheduler := c.Scheduler
	scheduler.Normalize()
	errs = append(errs, scheduler.Validate())
	if c.Events.Enabled {
		switch c.Events.Vendor {
		case messaging.VendorMemory:
		case messaging.VendorFS:
			if c.Events.BasePath == "" {
				errs = append(errs, fmt.Errorf("events.basePath is required for the fs vendor"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported events.vendor: %q", c.Events.Vendor))
		}
	}
	switch c.History.Vendor {
	case "", "memory":
	case "fs":
		if c.History.BasePath == "" {
			errs = append(errs, fmt.Errorf("history.basePath is required for the fs vendor"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported history.vendor: %q", c.History.Vendor))
	}
	return errors.Join(errs...)
}
