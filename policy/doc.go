// Package policy names the CPU scheduling policies the kernel can be built
// with and carries their tunables.  Exactly one policy is active for the
// lifetime of a kernel.
package policy
