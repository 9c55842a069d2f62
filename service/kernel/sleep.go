package kernel

import "github.com/viant/kproc/model"

// sleep atomically releases lk and blocks p on channel, re-acquiring lk
// when woken
func (k *Kernel) sleep(p *Proc, channel any, lk *spinlock) {
	p.lock.acquire()
	lk.release()
	p.channel = channel
	p.setState(model.StateSleeping)
	k.sched(p)
	p.channel = nil
	p.lock.release()
	lk.acquire()
}

// wakeup makes every process sleeping on channel runnable, except skip
func (k *Kernel) wakeup(channel any, skip *Proc) {
	for _, p := range k.procs {
		if p == skip {
			continue
		}
		p.lock.acquire()
		if p.State() == model.StateSleeping && p.channel == channel {
			p.setState(model.StateRunnable)
		}
		p.lock.release()
	}
}

// tickChannel is the channel processes sleep on to wait for clock ticks
func (k *Kernel) tickChannel() any {
	return &k.clock
}

// sleepTicks blocks p for n clock ticks; it fails once p is killed
func (k *Kernel) sleepTicks(p *Proc, n uint64) error {
	k.tickLock.acquire()
	start := k.clock.Now()
	for k.clock.Now()-start < n {
		if p.isKilled() {
			k.tickLock.release()
			return ErrKilled
		}
		k.sleep(p, k.tickChannel(), &k.tickLock)
	}
	k.tickLock.release()
	return nil
}
