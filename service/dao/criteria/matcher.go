// Package criteria evaluates dao list parameters against record fields.
package criteria

import (
	"github.com/viant/kproc/service/dao"
)

// Match reports whether fields satisfy every parameter. Parameters naming
// unknown fields are ignored. A parameter value may be a single value or a
// slice of accepted values.
func Match(fields map[string]interface{}, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		actual, ok := fields[parameter.Name]
		if !ok {
			continue
		}
		if !matchValue(actual, parameter.Value) {
			return false
		}
	}
	return true
}

func matchValue(actual, expected interface{}) bool {
	switch values := expected.(type) {
	case []int:
		for _, v := range values {
			if actual == v {
				return true
			}
		}
		return false
	case []string:
		for _, v := range values {
			if actual == v {
				return true
			}
		}
		return false
	}
	return actual == expected
}
