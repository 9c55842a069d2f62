// Package history stores the exit records of reaped processes keyed by pid.
package history

import (
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/dao"
	"github.com/viant/kproc/service/dao/criteria"
)

// Service persists model.ExitRecord by pid
type Service = dao.Service[int, model.ExitRecord]

// ByPID orders records by ascending pid
func ByPID(a, b *model.ExitRecord) bool {
	return a.PID < b.PID
}

// Match applies list parameters to the ParentPID, Name, Status and Killed
// fields of record
func Match(record *model.ExitRecord, parameters []*dao.Parameter) bool {
	return criteria.Match(map[string]interface{}{
		"ParentPID": record.ParentPID,
		"Name":      record.Name,
		"Status":    record.Status,
		"Killed":    record.Killed,
	}, parameters)
}
