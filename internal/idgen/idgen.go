package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// NewFunc returns a new globally unique identifier. Override in tests.
var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }

// NewBootID returns the identifier stamped on everything one machine boot
// produces: the first group of a fresh id
func NewBootID() string {
	id := New()
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
