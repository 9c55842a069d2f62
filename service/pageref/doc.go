// Package pageref tracks how many address-space mappings point at every
// physical frame.  Pool combines the table with a frame allocator so that a
// frame is only physically released when its last mapping goes away.
package pageref
