// Package progress keeps aggregated kernel counters (forks, exits, context
// switches, clock ticks, ...) for one boot of the machine.  Kernel
// components update the tracker through Delta values; readers take a
// Snapshot.
package progress
