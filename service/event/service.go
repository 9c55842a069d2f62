package event

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/kproc/service/messaging"
	"github.com/viant/kproc/service/messaging/fs"
	"github.com/viant/kproc/service/messaging/memory"
	"go.uber.org/zap"
)

type stopper interface{ Stop() }

// Service keeps one queue, publisher and listener per event payload type
type Service struct {
	typedPublishers   map[reflect.Type]any
	typedListeners    map[reflect.Type]stopper
	mux               sync.RWMutex
	queueVendor       messaging.Vendor
	bootID            string
	logger            *zap.Logger
	fsNewQueueConfig  func(name string) fs.Config
	memNewQueueConfig func(name string) memory.Config
}

func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:     queueVendor,
		typedPublishers: make(map[reflect.Type]any),
		typedListeners:  make(map[reflect.Type]stopper),
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	switch queueVendor {
	case messaging.VendorFS:
		if ret.fsNewQueueConfig == nil {
			ret.fsNewQueueConfig = func(name string) fs.Config {
				config := fs.DefaultConfig()
				config.BasePath = url.Join(config.BasePath, name)
				return config
			}
		}
	case messaging.VendorMemory:
		if ret.memNewQueueConfig == nil {
			ret.memNewQueueConfig = func(string) memory.Config { return memory.DefaultConfig() }
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}
	return ret, nil
}

// BootID returns the id stamped on published events
func (s *Service) BootID() string {
	return s.bootID
}

// QueueOf creates a queue of T named name on the configured vendor
func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.VendorFS:
		return fs.NewQueue[T](afs.New(), s.fsNewQueueConfig(name))
	case messaging.VendorMemory:
		return memory.NewQueue[T](s.memNewQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

func keyOf[T any]() reflect.Type {
	rType := reflect.TypeOf((*T)(nil)).Elem()
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// SetListenerOf replaces the listener of T events
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	key := keyOf[T]()
	listener := NewListener[T](publisher, handler, s.logger)
	s.mux.Lock()
	previous := s.typedListeners[key]
	s.typedListeners[key] = listener
	s.mux.Unlock()
	if previous != nil {
		previous.Stop()
	}
	listener.Start()
	return nil
}

// PublisherOf returns the publisher of T events, creating its queue on first use
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok := s.typedPublishers[key]; ok {
		return ret.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, key.String())
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue, s.bootID)
	s.typedPublishers[key] = publisher
	return publisher, nil
}

// Close stops every listener
func (s *Service) Close() {
	s.mux.Lock()
	listeners := s.typedListeners
	s.typedListeners = make(map[reflect.Type]stopper)
	s.mux.Unlock()
	for _, listener := range listeners {
		listener.Stop()
	}
}
