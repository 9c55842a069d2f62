// Package allocator owns simulated physical memory and hands it out one
// fixed-size frame at a time from a free list.  It knows nothing about
// sharing: callers that share frames wrap it with a reference table (see
// package pageref) and only release a frame once nothing maps it.
package allocator
