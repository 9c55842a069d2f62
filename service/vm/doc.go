// Package vm implements the address-space collaborator: per-process page
// tables mapping page-aligned virtual addresses to physical frames with
// permission bits and a copy-on-write marker.
package vm
