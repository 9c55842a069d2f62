package dao

// Parameter narrows a List call to records whose named field equals Value
type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, value interface{}) *Parameter {
	return &Parameter{Name: name, Value: value}
}
