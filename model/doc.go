// Package model contains the data types shared between the kernel core and
// the services observing it: process states, diagnostic dump entries,
// lifecycle events and the records kept for reaped processes.
package model
