package event

import (
	"github.com/viant/kproc/service/messaging/fs"
	"github.com/viant/kproc/service/messaging/memory"
	"go.uber.org/zap"
)

type Option func(s *Service)

// WithNewFsQueueConfig sets the file journal configuration per queue name
func WithNewFsQueueConfig(newConfig func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsNewQueueConfig = newConfig
	}
}

// WithNewMemoryQueueConfig sets the memory queue configuration per queue name
func WithNewMemoryQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memNewQueueConfig = newConfig
	}
}

// WithBootID stamps every published event with bootID
func WithBootID(bootID string) Option {
	return func(s *Service) {
		s.bootID = bootID
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
