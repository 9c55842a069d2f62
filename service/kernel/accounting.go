package kernel

import (
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/progress"
)

// clockintr advances the global tick and charges it to every process. Only
// cpu 0 calls it.
func (k *Kernel) clockintr() {
	k.tickLock.acquire()
	k.clock.Advance()
	for _, p := range k.procs {
		p.lock.acquire()
		switch p.State() {
		case model.StateRunning:
			p.times.Run++
			p.times.Running++
		case model.StateSleeping:
			p.times.Sleeping++
		case model.StateRunnable:
			p.times.Waiting++
		}
		p.lock.release()
	}
	k.wakeup(k.tickChannel(), nil)
	k.tickLock.release()
	k.stats.Update(progress.Delta{Ticks: 1})
}
