package kernel

import (
	"context"
	"fmt"

	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/service/vm"
	"github.com/viant/kproc/tracing"
)

// share maps the first sz bytes of parent into child without copying. Pages
// that were writable become read-only and COW in both spaces. On failure the
// child mappings are dropped and the parent entries restored.
func (k *Kernel) share(parent, child *vm.Space, sz uint64, childPID int) error {
	type shared struct {
		va       uint64
		original vm.PTE
	}
	var done []shared
	rollback := func() {
		for _, entry := range done {
			child.Unmap(entry.va, 1, true)
			original := entry.original
			parent.Update(entry.va, func(pte *vm.PTE) { *pte = original })
		}
	}
	pageSize := parent.PageSize()
	for va := uint64(0); va < sz; va += pageSize {
		pte, ok := parent.Translate(va)
		if !ok {
			panic(fmt.Sprintf("uvmcopy: page not present %#x", va))
		}
		entry := pte
		if pte.Perm.Has(vm.PermW) {
			entry.Perm &^= vm.PermW
			entry.COW = true
		}
		if err := child.Map(va, entry); err != nil {
			rollback()
			return err
		}
		k.frames.Share(pte.Frame, childPID)
		done = append(done, shared{va: va, original: pte})
		if entry != pte {
			parent.Update(va, func(parentPTE *vm.PTE) {
				parentPTE.Perm = entry.Perm
				parentPTE.COW = true
			})
		}
	}
	return nil
}

// resolveCOW gives p a private writable copy of the shared page at va
func (k *Kernel) resolveCOW(p *Proc, va uint64) (err error) {
	_, span := tracing.StartSpan(context.Background(), "kernel.cow", tracing.KindInternal)
	defer func() { tracing.EndSpan(span.WithInt("pid", p.PID()), err) }()
	if va >= k.config.MaxVA {
		panic(fmt.Sprintf("cow: va %#x out of range", va))
	}
	page := p.space.RoundDown(va)
	pte, ok := p.space.Translate(page)
	if !ok || !pte.COW {
		return fmt.Errorf("%w: %#x", ErrBadAddress, va)
	}
	frame, err := k.frames.Alloc(p.PID())
	if err != nil {
		return fmt.Errorf("%w: cow %#x: %v", ErrNoMemory, va, err)
	}
	copy(k.frames.Bytes(frame), k.frames.Bytes(pte.Frame))
	p.space.Update(page, func(entry *vm.PTE) {
		entry.Frame = frame
		entry.Perm |= vm.PermW
		entry.COW = false
	})
	k.frames.Free(pte.Frame)
	k.stats.Update(progress.Delta{CowFaults: 1})
	return nil
}
