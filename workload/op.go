package workload

// Kind names an op
type Kind string

const (
	KindSpin     Kind = "spin"
	KindSleep    Kind = "sleep"
	KindFork     Kind = "fork"
	KindWait     Kind = "wait"
	KindWaitX    Kind = "waitx"
	KindExit     Kind = "exit"
	KindKill     Kind = "kill"
	KindPriority Kind = "priority"
	KindSbrk     Kind = "sbrk"
	KindStore    Kind = "store"
	KindLoad     Kind = "load"
	KindLoop     Kind = "loop"
	KindEnd      Kind = "end"
)

// Op is one parsed line of a program
type Op struct {
	Kind Kind
	Line int
	// N is the count, status, pid, size or value operand
	N int
	// Name is the forked program
	Name string
	// Count is the number of children a fork creates
	Count int
	// All makes wait reap every child
	All bool
	// Self makes priority target the caller
	Self bool
	// Target is the pid priority applies to
	Target int
	Addr   uint64
	Body   []*Op
}
