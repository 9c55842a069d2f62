package vm

import "strings"

// Perm is a set of page permission bits
type Perm uint8

const (
	PermR Perm = 1 << iota
	PermW
	PermX
	PermU
)

// Has reports whether all bits of q are set
func (p Perm) Has(q Perm) bool {
	return p&q == q
}

func (p Perm) String() string {
	var b strings.Builder
	for _, flag := range []struct {
		bit  Perm
		char byte
	}{{PermR, 'r'}, {PermW, 'w'}, {PermX, 'x'}, {PermU, 'u'}} {
		if p.Has(flag.bit) {
			b.WriteByte(flag.char)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// PTE is a leaf page-table entry
type PTE struct {
	Frame int  `json:"frame"`
	Perm  Perm `json:"perm"`
	// COW marks a read-only mapping of a frame shared after fork
	COW bool `json:"cow,omitempty"`
}
