// Package memory keeps the exit history in process memory.
package memory

import (
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/dao/history"
	"github.com/viant/kproc/service/dao/store"
)

// New returns an in-memory history listing records by pid
func New() history.Service {
	return store.NewMemoryStore[int, model.ExitRecord](func(r *model.ExitRecord) int { return r.PID }).
		WithOrder(history.ByPID).
		WithMatcher(history.Match)
}
