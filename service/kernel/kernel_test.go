package kernel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/policy"
	"github.com/viant/kproc/service/allocator"
	"github.com/viant/kproc/service/pageref"
	"github.com/viant/kproc/service/timer"
	"github.com/viant/kproc/service/vm"
)

const pageSize = 4096

type testMachine struct {
	kernel    *Kernel
	allocator *allocator.Service
	mu        sync.Mutex
	events    []model.ProcEvent
	records   []model.ExitRecord
}

type machineOptions struct {
	cpus          int
	frames        int
	cow           bool
	scheduler     string
	cyclesPerTick int
}

func newTestMachine(t *testing.T, options machineOptions) *testMachine {
	if options.cpus == 0 {
		options.cpus = 1
	}
	if options.frames == 0 {
		options.frames = 256
	}
	if options.scheduler == "" {
		options.scheduler = policy.KindRoundRobin
	}
	if options.cyclesPerTick == 0 {
		options.cyclesPerTick = 10
	}
	frames, err := allocator.New(allocator.Config{Frames: options.frames, PageSize: pageSize})
	require.NoError(t, err)
	device, err := timer.NewDevice(timer.Config{Mode: timer.ModeCycle, CyclesPerTick: options.cyclesPerTick}, options.cpus)
	require.NoError(t, err)
	m := &testMachine{allocator: frames}
	config := DefaultConfig()
	config.CPUs = options.cpus
	config.Procs = 16
	config.COW = options.cow
	m.kernel, err = New(config,
		WithPolicy(policy.Config{Kind: options.scheduler}),
		WithFrames(pageref.NewPool(frames, pageref.NewTable(options.frames))),
		WithDevice(device),
		WithEvents(func(event model.ProcEvent) {
			m.mu.Lock()
			m.events = append(m.events, event)
			m.mu.Unlock()
		}),
		WithReaper(func(record model.ExitRecord) {
			m.mu.Lock()
			m.records = append(m.records, record)
			m.mu.Unlock()
		}),
	)
	require.NoError(t, err)
	return m
}

// run boots the machine with an init process executing scenario, then
// keeps reaping orphans until the test shuts the machine down
func (m *testMachine) run(t *testing.T, scenario Program) {
	done := make(chan struct{})
	init := func(u *User) {
		scenario(u)
		close(done)
		for {
			if u.Wait(nil) < 0 {
				u.Sleep(1)
			}
		}
	}
	require.NoError(t, m.kernel.Boot(context.Background(), init))
	select {
	case <-done:
	case <-m.kernel.Halted():
		t.Fatalf("machine halted: %v", m.kernel.Err())
	case <-time.After(20 * time.Second):
		t.Fatalf("scenario timed out: %v", m.kernel.Dump())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.kernel.Shutdown(ctx))
}

func (m *testMachine) eventTypes() []model.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ret []model.EventType
	for _, event := range m.events {
		ret = append(ret, event.Type)
	}
	return ret
}

func TestKernel_WaitIsIdempotent(t *testing.T) {
	m := newTestMachine(t, machineOptions{})
	var before, after []int
	var pid, reaped, status, again, available, availableAfter int
	var live int
	m.run(t, func(u *User) {
		before = []int{u.Wait(nil), u.Wait(nil)}
		available = m.allocator.Available()
		pid = u.Fork(func(u *User) { u.Exit(3) })
		reaped = u.Wait(&status)
		again = u.Wait(nil)
		availableAfter = m.allocator.Available()
		live = len(m.kernel.Dump())
		second := u.Fork(func(u *User) {})
		after = []int{second, u.Wait(nil), u.Wait(nil)}
	})
	assert.Equal(t, []int{-1, -1}, before)
	assert.Equal(t, 2, pid)
	assert.Equal(t, pid, reaped)
	assert.Equal(t, 3, status)
	assert.Equal(t, -1, again)
	assert.Equal(t, available, availableAfter)
	assert.Equal(t, 1, live)
	assert.Equal(t, []int{3, 3, -1}, after)
	assert.Contains(t, m.eventTypes(), model.EventReap)
}

func TestKernel_ForkWaitStatuses(t *testing.T) {
	m := newTestMachine(t, machineOptions{cow: true})
	statuses := map[int]int{}
	expected := map[int]int{}
	m.run(t, func(u *User) {
		for i := 0; i < 5; i++ {
			code := i * 10
			pid := u.Fork(func(u *User) {
				u.Spin(15)
				u.Exit(code)
			})
			expected[pid] = code
		}
		for i := 0; i < 5; i++ {
			var status int
			pid := u.Wait(&status)
			statuses[pid] = status
		}
	})
	assert.Equal(t, expected, statuses)
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.records, 5)
	for _, record := range m.records {
		assert.Equal(t, 1, record.ParentPID)
	}
}

func TestKernel_WaitX(t *testing.T) {
	testCases := []struct {
		name     string
		children int
	}{
		{name: "single child runs alone", children: 1},
		{name: "two children share the cpu", children: 2},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			m := newTestMachine(t, machineOptions{cyclesPerTick: 10})
			var rtimes, wtimes []uint64
			m.run(t, func(u *User) {
				for i := 0; i < testCase.children; i++ {
					u.Fork(func(u *User) { u.Spin(50) })
				}
				for i := 0; i < testCase.children; i++ {
					var status int
					var wtime, rtime uint64
					assert.Greater(t, u.WaitX(&status, &wtime, &rtime), 0)
					rtimes = append(rtimes, rtime)
					wtimes = append(wtimes, wtime)
				}
			})
			for i := range rtimes {
				assert.Equal(t, uint64(5), rtimes[i])
				if testCase.children == 1 {
					assert.Equal(t, uint64(0), wtimes[i])
				} else {
					assert.Greater(t, wtimes[i], uint64(0))
				}
			}
		})
	}
}

func TestKernel_KillSleeping(t *testing.T) {
	m := newTestMachine(t, machineOptions{})
	var killed, unknown, reaped, status int
	var pid int
	m.run(t, func(u *User) {
		pid = u.Fork(func(u *User) {
			u.Sleep(1000000)
			u.Exit(0)
		})
		u.Sleep(2)
		killed = u.Kill(pid)
		unknown = u.Kill(999)
		reaped = u.Wait(&status)
	})
	assert.Equal(t, 0, killed)
	assert.Equal(t, -1, unknown)
	assert.Equal(t, pid, reaped)
	assert.Equal(t, -1, status)
}

func TestKernel_CopyOnWriteFork(t *testing.T) {
	m := newTestMachine(t, machineOptions{cow: true})
	refs := func(frames []int) []int {
		var ret []int
		for _, frame := range frames {
			ret = append(ret, m.kernel.frames.Refs().Count(frame))
		}
		return ret
	}
	type observation struct {
		frames        []int
		parentRefs    []int
		parentCOW     []bool
		childBefore   []int
		childFrame    int
		childFrameRef int
		oldFrameRef   int
		othersRef     []int
		childOthers   []bool
		parentValue   byte
		childValue    byte
		available     int
		availableDone int
		oldFrameFinal int
	}
	var o observation
	m.run(t, func(u *User) {
		assert.Equal(t, pageSize, u.Sbrk(3*pageSize))
		space := u.p.space
		for i := uint64(0); i < 4; i++ {
			u.Store(i*pageSize+100, byte(i+1))
			pte, ok := space.Translate(i * pageSize)
			assert.True(t, ok)
			o.frames = append(o.frames, pte.Frame)
		}
		o.available = m.allocator.Available()
		child := u.Fork(func(u *User) {
			o.childBefore = refs(o.frames)
			u.Store(2*pageSize+100, 0xAA)
			pte, _ := u.p.space.Translate(2 * pageSize)
			o.childFrame = pte.Frame
			o.childFrameRef = m.kernel.frames.Refs().Count(pte.Frame)
			o.oldFrameRef = m.kernel.frames.Refs().Count(o.frames[2])
			o.othersRef = refs([]int{o.frames[0], o.frames[1], o.frames[3]})
			for _, va := range []uint64{0, pageSize, 3 * pageSize} {
				pte, _ := u.p.space.Translate(va)
				o.childOthers = append(o.childOthers, pte.COW)
			}
			o.childValue = u.Load(2*pageSize + 100)
		})
		o.parentRefs = refs(o.frames)
		for i := uint64(0); i < 4; i++ {
			pte, _ := space.Translate(i * pageSize)
			o.parentCOW = append(o.parentCOW, pte.COW && !pte.Perm.Has(vm.PermW))
		}
		assert.Equal(t, child, u.Wait(nil))
		o.parentValue = u.Load(2*pageSize + 100)
		u.Store(2*pageSize+100, 0x55)
		o.oldFrameFinal = m.kernel.frames.Refs().Count(o.frames[2])
		o.availableDone = m.allocator.Available()
	})
	assert.Equal(t, []int{2, 2, 2, 2}, o.parentRefs)
	assert.Equal(t, []bool{true, true, true, true}, o.parentCOW)
	assert.Equal(t, []int{2, 2, 2, 2}, o.childBefore)
	assert.NotContains(t, o.frames, o.childFrame)
	assert.Equal(t, 1, o.childFrameRef)
	assert.Equal(t, 1, o.oldFrameRef)
	assert.Equal(t, []int{2, 2, 2}, o.othersRef)
	assert.Equal(t, []bool{true, true, true}, o.childOthers)
	assert.Equal(t, byte(0xAA), o.childValue)
	assert.Equal(t, byte(3), o.parentValue)
	assert.Equal(t, 0, o.oldFrameFinal)
	assert.Equal(t, o.available, o.availableDone)
}

func TestKernel_ForkOutOfMemory(t *testing.T) {
	m := newTestMachine(t, machineOptions{cow: true, frames: 8})
	var pid, availableBefore, availableAfter int
	var pte vm.PTE
	var refs int
	m.run(t, func(u *User) {
		availableBefore = m.allocator.Available()
		pid = u.Fork(func(u *User) {})
		availableAfter = m.allocator.Available()
		pte, _ = u.p.space.Translate(0)
		refs = m.kernel.frames.Refs().Count(pte.Frame)
	})
	assert.Equal(t, 3, availableBefore)
	assert.Equal(t, -1, pid)
	assert.Equal(t, availableBefore, availableAfter)
	assert.True(t, pte.Perm.Has(vm.PermW))
	assert.False(t, pte.COW)
	assert.Equal(t, 1, refs)
}

func TestKernel_EagerFork(t *testing.T) {
	m := newTestMachine(t, machineOptions{cow: false})
	var parentFrame, childFrame int
	var childValue, parentValue byte
	m.run(t, func(u *User) {
		u.Store(200, 7)
		pte, _ := u.p.space.Translate(0)
		parentFrame = pte.Frame
		u.Fork(func(u *User) {
			pte, _ := u.p.space.Translate(0)
			childFrame = pte.Frame
			childValue = u.Load(200)
			u.Store(200, 9)
		})
		u.Wait(nil)
		parentValue = u.Load(200)
	})
	assert.NotEqual(t, parentFrame, childFrame)
	assert.Equal(t, byte(7), childValue)
	assert.Equal(t, byte(7), parentValue)
}

func TestKernel_FaultsKillOnlyTheProcess(t *testing.T) {
	testCases := []struct {
		name    string
		program Program
	}{
		{name: "unmapped load", program: func(u *User) { u.Load(64 * pageSize) }},
		{name: "null store", program: func(u *User) { u.Store(0, 1) }},
		{name: "out of range", program: func(u *User) { u.Load(1 << 40) }},
		{name: "trapframe", program: func(u *User) { u.Store(u.k.trapframeVA(), 1) }},
		{name: "other trap", program: func(u *User) { u.Trap(Trap{Reason: ReasonOther, Cause: "illegal instruction"}) }},
		{name: "shrunk memory", program: func(u *User) {
			u.Sbrk(pageSize)
			u.Sbrk(-pageSize)
			u.Store(pageSize+8, 1)
		}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			m := newTestMachine(t, machineOptions{cow: true})
			var status int
			var reached bool
			m.run(t, func(u *User) {
				u.Fork(func(u *User) {
					testCase.program(u)
					reached = true
				})
				u.Wait(&status)
			})
			assert.Equal(t, -1, status)
			assert.False(t, reached)
		})
	}
}

func TestKernel_SetPriorityYields(t *testing.T) {
	m := newTestMachine(t, machineOptions{scheduler: policy.KindPBS, cyclesPerTick: 1000000})
	var order []string
	var first, second, invalid, missing int
	m.run(t, func(u *User) {
		pid := u.Fork(func(u *User) {
			order = append(order, "child")
		})
		first = u.SetPriority(pid, 80)
		order = append(order, "raised")
		second = u.SetPriority(pid, 10)
		order = append(order, "init")
		invalid = u.SetPriority(pid, 101)
		missing = u.SetPriority(4242, 10)
		u.Wait(nil)
	})
	assert.Equal(t, DefaultStaticPriority, first)
	assert.Equal(t, 80, second)
	assert.Equal(t, []string{"raised", "child", "init"}, order)
	assert.Equal(t, -1, invalid)
	assert.Equal(t, -1, missing)
}

func TestKernel_MLFQDemotesCPUBound(t *testing.T) {
	m := newTestMachine(t, machineOptions{scheduler: policy.KindMLFQ, cyclesPerTick: 10})
	var level int
	m.run(t, func(u *User) {
		u.Fork(func(u *User) {
			u.Spin(20 * 10)
			level = u.p.sched.Level
		})
		u.Wait(nil)
	})
	assert.Equal(t, 3, level)
}

func TestKernel_NoLostWakeup(t *testing.T) {
	for _, kind := range []string{policy.KindRoundRobin, policy.KindFCFS, policy.KindPBS, policy.KindMLFQ} {
		t.Run(kind, func(t *testing.T) {
			m := newTestMachine(t, machineOptions{cpus: 4, scheduler: kind, cyclesPerTick: 5})
			reaped := 0
			m.run(t, func(u *User) {
				for i := 0; i < 8; i++ {
					u.Fork(func(u *User) {
						for j := 0; j < 5; j++ {
							u.Sleep(1)
							u.Spin(3)
						}
					})
				}
				for u.Wait(nil) > 0 {
					reaped++
				}
			})
			assert.Equal(t, 8, reaped)
		})
	}
}

func TestKernel_DeviceInterrupts(t *testing.T) {
	m := newTestMachine(t, machineOptions{})
	var mu sync.Mutex
	var handled []int
	m.kernel.RegisterIRQ(10, func(cpu int) {
		mu.Lock()
		handled = append(handled, cpu)
		mu.Unlock()
	})
	m.run(t, func(u *User) {
		m.kernel.Raise(0, 10)
		m.kernel.Raise(0, 99)
		u.Spin(1)
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0}, handled)
}

func TestKernel_InitExitHalts(t *testing.T) {
	m := newTestMachine(t, machineOptions{})
	require.NoError(t, m.kernel.Boot(context.Background(), func(u *User) {}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := m.kernel.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init exiting")
	assert.Error(t, m.kernel.Shutdown(ctx))
	assert.Contains(t, m.eventTypes(), model.EventHalt)
}

func TestKernel_ReleaseUnheldLockHalts(t *testing.T) {
	m := newTestMachine(t, machineOptions{})
	require.NoError(t, m.kernel.Boot(context.Background(), func(u *User) {
		u.p.lock.release()
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := m.kernel.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release proc")
	assert.Error(t, m.kernel.Shutdown(ctx))
}

func TestKernel_Dump(t *testing.T) {
	m := newTestMachine(t, machineOptions{})
	var dump []model.ProcInfo
	m.run(t, func(u *User) {
		// ticks wake tick sleepers; a parent blocked in wait stays asleep
		u.Spawn("waiter", func(u *User) {
			u.Spawn("napper", func(u *User) { u.Sleep(1000000) })
			u.Wait(nil)
		})
		for i := 0; i < 1000; i++ {
			u.Sleep(1)
			dump = m.kernel.Dump()
			if len(dump) == 3 && dump[1].State == model.StateSleeping {
				break
			}
		}
	})
	require.Len(t, dump, 3)
	assert.Equal(t, "1 run initcode", dump[0].String())
	assert.Equal(t, "2 sleep waiter", dump[1].String())
	assert.Equal(t, 3, dump[2].PID)
	assert.Equal(t, "napper", dump[2].Name)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{CPUs: 0, Procs: 8, MaxVA: 1 << 38})
	assert.Error(t, err)
	_, err = New(DefaultConfig(), WithPolicy(policy.Config{Kind: "lottery"}))
	assert.Error(t, err)
	device, err := timer.NewDevice(timer.DefaultConfig(), 1)
	require.NoError(t, err)
	config := DefaultConfig()
	config.CPUs = 2
	_, err = New(config, WithDevice(device))
	assert.Error(t, err)
	k, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, policy.KindRoundRobin, k.Policy().Kind)
	assert.Error(t, k.Boot(context.Background(), nil))
}
