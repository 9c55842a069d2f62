package dao

import "errors"

var (
	// ErrNotFound reports a key with no stored record
	ErrNotFound = errors.New("dao: not found")
	// ErrInvalidID reports a key that can never identify a record, such as pid 0
	ErrInvalidID = errors.New("dao: invalid id")
	ErrNilEntity = errors.New("dao: nil entity")
)
