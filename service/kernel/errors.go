package kernel

import "errors"

var (
	// ErrNoProc is returned when the process table is full
	ErrNoProc = errors.New("kernel: no free process slot")
	// ErrNoMemory is returned when a frame or page table cannot be allocated
	ErrNoMemory = errors.New("kernel: out of memory")
	// ErrNoChildren is returned by wait when the caller has no children or was killed
	ErrNoChildren = errors.New("kernel: no children")
	// ErrNotFound is returned for an unknown pid
	ErrNotFound = errors.New("kernel: no such process")
	// ErrBadAddress is returned for an invalid user address
	ErrBadAddress = errors.New("kernel: bad address")
	// ErrInvalidPriority is returned for a priority outside [0,100]
	ErrInvalidPriority = errors.New("kernel: invalid priority")
	// ErrKilled is returned by sleep when the caller was killed
	ErrKilled = errors.New("kernel: killed")
	// ErrHalted is reported when the machine is stopped by Shutdown
	ErrHalted = errors.New("kernel: halted")
)
