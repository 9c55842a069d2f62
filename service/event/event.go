// Package event carries typed lifecycle events from the kernel to listeners
// through a messaging queue.
package event

import (
	"time"

	"github.com/viant/kproc/internal/clock"
	"github.com/viant/kproc/internal/idgen"
)

// Event wraps a payload with the boot it belongs to
type Event[T any] struct {
	ID        string    `json:"id"`
	BootID    string    `json:"bootId"`
	CreatedAt time.Time `json:"createdAt"`
	Data      T         `json:"data"`
}

func NewEvent[T any](bootID string, data T) *Event[T] {
	return &Event[T]{
		ID:        idgen.New(),
		BootID:    bootID,
		CreatedAt: clock.Now(),
		Data:      data,
	}
}
