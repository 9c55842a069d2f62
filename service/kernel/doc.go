// Package kernel implements the process-management core of a small
// teaching kernel: the process table and its lifecycle, the per-CPU
// scheduler loop with pluggable policies (round robin, FCFS, PBS and MLFQ),
// clock accounting, trap-driven preemption and copy-on-write fork.
//
// Every CPU is a goroutine running the scheduler loop and every process owns
// a kernel-thread goroutine that executes a user Program. A context switch
// hands control between the two over channels, so exactly one thread of a
// CPU runs at a time.
package kernel
