package model

import (
	"fmt"
	"time"
)

// State is a process lifecycle state
type State int32

const (
	StateUnused State = iota
	StateUsed
	StateSleeping
	StateRunnable
	StateRunning
	StateZombie
)

var stateNames = [...]string{
	StateUnused:   "unused",
	StateUsed:     "used",
	StateSleeping: "sleep",
	StateRunnable: "runble",
	StateRunning:  "run",
	StateZombie:   "zombie",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "???"
}

// ProcInfo is one line of the diagnostic process dump
type ProcInfo struct {
	PID   int    `json:"pid"`
	State State  `json:"state"`
	Name  string `json:"name"`
}

func (p ProcInfo) String() string {
	return fmt.Sprintf("%d %s %s", p.PID, p.State, p.Name)
}

// ExitRecord describes a process reaped by its parent
type ExitRecord struct {
	PID       int       `json:"pid"`
	ParentPID int       `json:"parentPid"`
	Name      string    `json:"name"`
	Status    int       `json:"status"`
	Killed    bool      `json:"killed,omitempty"`
	Created   uint64    `json:"created"`
	Exited    uint64    `json:"exited"`
	RunTicks  uint64    `json:"runTicks"`
	WaitTicks uint64    `json:"waitTicks"`
	Scheduled int       `json:"scheduled"`
	ReapedAt  time.Time `json:"reapedAt"`
}
