// Package timer provides the kernel tick counter and the per-CPU interrupt
// lines that deliver timer and device interrupts at instruction boundaries.
package timer
