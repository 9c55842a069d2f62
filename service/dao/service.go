// Package dao defines the storage contract for records the kernel leaves
// behind, such as the exit record of every reaped process.
package dao

import (
	"context"
)

// Service stores records of type T keyed by K. Implementations must be safe
// for concurrent use: the reaper saves while callers list.
type Service[K comparable, T any] interface {
	// Save inserts or replaces the record
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	// List returns records matching every parameter
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
