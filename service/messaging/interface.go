// Package messaging defines the queue abstraction used to move kernel
// lifecycle events off the kernel threads.
package messaging

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by a non-blocking publish on a full queue
var ErrQueueFull = errors.New("messaging: queue full")

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	// VendorMemory is a buffered in-process queue
	VendorMemory Vendor = "memory"
	// VendorFS is a journal of JSON files on any afs supported storage
	VendorFS Vendor = "fs"
)

// Queue represents an abstract message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue, blocking until one
	// is available or ctx is done
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// ID returns the message identifier
	ID() string

	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}
