package allocator

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfMemory is returned when no free frame is left.
var ErrOutOfMemory = errors.New("allocator: out of memory")

const (
	junkOnFree  = 1
	junkOnAlloc = 5
)

// Config represents allocator configuration
type Config struct {
	// Frames is the number of physical frames
	Frames int `json:"frames" yaml:"frames"`
	// PageSize is the frame size in bytes
	PageSize int `json:"pageSize" yaml:"pageSize"`
}

// DefaultConfig returns the default allocator configuration
func DefaultConfig() Config {
	return Config{
		Frames:   4096,
		PageSize: 4096,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Frames <= 0 {
		return fmt.Errorf("memory.frames must be > 0")
	}
	if c.PageSize <= 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("memory.pageSize must be a power of two, got %d", c.PageSize)
	}
	return nil
}

// Service allocates frames of simulated physical memory
type Service struct {
	config    Config
	mu        sync.Mutex
	free      []int
	allocated []bool
	memory    []byte
}

// New creates a frame allocator with every frame on the free list
func New(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		config:    config,
		free:      make([]int, 0, config.Frames),
		allocated: make([]bool, config.Frames),
		memory:    make([]byte, config.Frames*config.PageSize),
	}
	// pushed in reverse so that frames are handed out in ascending order
	for f := config.Frames - 1; f >= 0; f-- {
		s.fill(f, junkOnFree)
		s.free = append(s.free, f)
	}
	return s, nil
}

// Allocate removes a frame from the free list
func (s *Service) Allocate() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.free)
	if n == 0 {
		return -1, ErrOutOfMemory
	}
	f := s.free[n-1]
	s.free = s.free[:n-1]
	s.allocated[f] = true
	s.fill(f, junkOnAlloc)
	return f, nil
}

// Free returns a frame to the free list. Freeing a frame that is not
// allocated is a broken invariant.
func (s *Service) Free(frame int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame < 0 || frame >= s.config.Frames {
		panic(fmt.Sprintf("kfree: frame %d out of range", frame))
	}
	if !s.allocated[frame] {
		panic(fmt.Sprintf("kfree: frame %d is not allocated", frame))
	}
	s.allocated[frame] = false
	s.fill(frame, junkOnFree)
	s.free = append(s.free, frame)
}

// Bytes returns the frame contents
func (s *Service) Bytes(frame int) []byte {
	offset := frame * s.config.PageSize
	return s.memory[offset : offset+s.config.PageSize : offset+s.config.PageSize]
}

// PageSize returns frame size in bytes
func (s *Service) PageSize() int {
	return s.config.PageSize
}

// Frames returns the total number of frames
func (s *Service) Frames() int {
	return s.config.Frames
}

// Available returns the number of free frames
func (s *Service) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.free)
}

func (s *Service) fill(frame int, junk byte) {
	data := s.Bytes(frame)
	for i := range data {
		data[i] = junk
	}
}
