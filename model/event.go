package model

// EventType names a process lifecycle event
type EventType string

const (
	EventBoot     EventType = "boot"
	EventFork     EventType = "fork"
	EventExit     EventType = "exit"
	EventReap     EventType = "reap"
	EventKill     EventType = "kill"
	EventFault    EventType = "fault"
	EventPriority EventType = "priority"
	EventHalt     EventType = "halt"
)

// ProcEvent is published by the kernel for every lifecycle change
type ProcEvent struct {
	Type   EventType `json:"type"`
	PID    int       `json:"pid"`
	Target int       `json:"target,omitempty"`
	Name   string    `json:"name,omitempty"`
	Status int       `json:"status,omitempty"`
	Tick   uint64    `json:"tick"`
	Addr   uint64    `json:"addr,omitempty"`
	Detail string    `json:"detail,omitempty"`
}
