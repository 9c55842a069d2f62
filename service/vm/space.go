package vm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// EntriesPerTable is the number of leaf entries one page-table frame holds
const EntriesPerTable = 512

var (
	// ErrRemap is returned when mapping an address that is already mapped
	ErrRemap = errors.New("vm: remap")
	// ErrOutOfRange is returned for addresses at or above the space limit
	ErrOutOfRange = errors.New("vm: address out of range")
	// ErrUnaligned is returned for addresses that are not page aligned
	ErrUnaligned = errors.New("vm: unaligned address")
)

// Frames supplies refcounted physical frames
type Frames interface {
	Alloc(owner int) (int, error)
	Free(frame int)
	Bytes(frame int) []byte
	PageSize() int
}

// Space is one virtual address space
type Space struct {
	mu       sync.RWMutex
	frames   Frames
	owner    int
	pageSize uint64
	maxVA    uint64
	root     int
	tables   map[uint64]int
	entries  map[uint64]*PTE
}

// Create allocates the root page-table frame of a new, empty address space
func Create(frames Frames, owner int, maxVA uint64) (*Space, error) {
	root, err := frames.Alloc(owner)
	if err != nil {
		return nil, err
	}
	clear(frames.Bytes(root))
	return &Space{
		frames:   frames,
		owner:    owner,
		pageSize: uint64(frames.PageSize()),
		maxVA:    maxVA,
		root:     root,
		tables:   map[uint64]int{},
		entries:  map[uint64]*PTE{},
	}, nil
}

// PageSize returns the page size in bytes
func (s *Space) PageSize() uint64 {
	return s.pageSize
}

// MaxVA returns one beyond the highest mappable address
func (s *Space) MaxVA() uint64 {
	return s.maxVA
}

// RoundDown aligns va down to a page boundary
func (s *Space) RoundDown(va uint64) uint64 {
	return va &^ (s.pageSize - 1)
}

// RoundUp aligns n up to a page boundary
func (s *Space) RoundUp(n uint64) uint64 {
	return (n + s.pageSize - 1) &^ (s.pageSize - 1)
}

// Map installs pte at the page-aligned address va
func (s *Space) Map(va uint64, pte PTE) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapLocked(va, pte)
}

func (s *Space) mapLocked(va uint64, pte PTE) error {
	if va%s.pageSize != 0 {
		return fmt.Errorf("%w: %#x", ErrUnaligned, va)
	}
	if va >= s.maxVA {
		return fmt.Errorf("%w: %#x", ErrOutOfRange, va)
	}
	if _, ok := s.entries[va]; ok {
		return fmt.Errorf("%w: %#x", ErrRemap, va)
	}
	dir := va / (s.pageSize * EntriesPerTable)
	if _, ok := s.tables[dir]; !ok {
		frame, err := s.frames.Alloc(s.owner)
		if err != nil {
			return err
		}
		clear(s.frames.Bytes(frame))
		s.tables[dir] = frame
	}
	entry := pte
	s.entries[va] = &entry
	return nil
}

// Unmap removes npages mappings starting at va, optionally dropping the
// frame references. Every page in the range must be mapped.
func (s *Space) Unmap(va uint64, npages int, free bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmapLocked(va, npages, free)
}

func (s *Space) unmapLocked(va uint64, npages int, free bool) {
	if va%s.pageSize != 0 {
		panic(fmt.Sprintf("uvmunmap: not aligned %#x", va))
	}
	for a := va; a < va+uint64(npages)*s.pageSize; a += s.pageSize {
		pte, ok := s.entries[a]
		if !ok {
			panic(fmt.Sprintf("uvmunmap: not mapped %#x", a))
		}
		delete(s.entries, a)
		if free {
			s.frames.Free(pte.Frame)
		}
	}
}

// Translate returns the entry mapping va
func (s *Space) Translate(va uint64) (PTE, bool) {
	if va >= s.maxVA {
		return PTE{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pte, ok := s.entries[s.RoundDown(va)]
	if !ok {
		return PTE{}, false
	}
	return *pte, true
}

// Update rewrites the entry mapping va in place
func (s *Space) Update(va uint64, fn func(pte *PTE)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pte, ok := s.entries[s.RoundDown(va)]
	if !ok {
		return false
	}
	fn(pte)
	return true
}

// Grow maps zeroed user pages to extend the space from oldsz to newsz and
// returns the new size. On failure the pages added so far are released.
func (s *Space) Grow(oldsz, newsz uint64, perm Perm) (uint64, error) {
	if newsz < oldsz {
		return oldsz, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.RoundUp(oldsz)
	for a := start; a < newsz; a += s.pageSize {
		frame, err := s.frames.Alloc(s.owner)
		if err == nil {
			clear(s.frames.Bytes(frame))
			if err = s.mapLocked(a, PTE{Frame: frame, Perm: perm | PermR | PermU}); err != nil {
				s.frames.Free(frame)
			}
		}
		if err != nil {
			s.unmapLocked(start, int((a-start)/s.pageSize), true)
			return oldsz, err
		}
	}
	return newsz, nil
}

// Shrink releases user pages to bring the space from oldsz down to newsz
func (s *Space) Shrink(oldsz, newsz uint64) uint64 {
	if newsz >= oldsz {
		return oldsz
	}
	if s.RoundUp(newsz) < s.RoundUp(oldsz) {
		npages := int((s.RoundUp(oldsz) - s.RoundUp(newsz)) / s.pageSize)
		s.Unmap(s.RoundUp(newsz), npages, true)
	}
	return newsz
}

// Duplicate copies the first sz bytes of s into dst with fresh frames. On
// failure every page already copied into dst is released.
func (s *Space) Duplicate(dst *Space, sz uint64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()
	for a := uint64(0); a < sz; a += s.pageSize {
		pte, ok := s.entries[a]
		if !ok {
			panic(fmt.Sprintf("uvmcopy: page not present %#x", a))
		}
		frame, err := dst.frames.Alloc(dst.owner)
		if err == nil {
			copy(dst.frames.Bytes(frame), s.frames.Bytes(pte.Frame))
			if err = dst.mapLocked(a, PTE{Frame: frame, Perm: pte.Perm}); err != nil {
				dst.frames.Free(frame)
			}
		}
		if err != nil {
			dst.unmapLocked(0, int(a/s.pageSize), true)
			return err
		}
	}
	return nil
}

// Destroy releases the user pages below sz, then every page-table frame.
// All other mappings must have been removed beforehand.
func (s *Space) Destroy(sz uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sz > 0 {
		s.unmapLocked(0, int(s.RoundUp(sz)/s.pageSize), true)
	}
	if len(s.entries) > 0 {
		panic(fmt.Sprintf("freewalk: %d leaf mappings left", len(s.entries)))
	}
	for dir, frame := range s.tables {
		s.frames.Free(frame)
		delete(s.tables, dir)
	}
	s.frames.Free(s.root)
	s.root = -1
}

// Addresses returns the mapped page addresses in ascending order
func (s *Space) Addresses() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]uint64, 0, len(s.entries))
	for va := range s.entries {
		ret = append(ret, va)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}
