package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/policy"
)

func newTestProcs(n int) []*Proc {
	var procs []*Proc
	for i := 0; i < n; i++ {
		p := newProc(i, nil)
		p.pid.Store(int64(i + 1))
		procs = append(procs, p)
	}
	return procs
}

// dispatch mimics the scheduler loop around a policy pick
func dispatch(t *testing.T, s Scheduler, now uint64) *Proc {
	p := s.Pick(0, now)
	if p == nil {
		return nil
	}
	require.Equal(t, model.StateRunnable, p.State())
	p.sched.Scheduled++
	p.lock.release()
	return p
}

func TestRecentBehavior_PriorityBounds(t *testing.T) {
	testCases := []struct {
		name     string
		running  uint64
		sleeping uint64
		waiting  uint64
		expect   int
	}{
		{name: "idle", expect: 0},
		{name: "sleeper", sleeping: 10, expect: 0},
		{name: "waiter", waiting: 10, expect: 0},
		{name: "cpu bound", running: 10, expect: 136},
		{name: "mixed", running: 10, sleeping: 5, waiting: 5, expect: 47},
		{name: "one tick", running: 1, expect: 75},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expect, RecentBehavior(testCase.running, testCase.sleeping, testCase.waiting))
		})
	}
	for static := 0; static <= MaxPriority; static += 5 {
		for running := uint64(0); running < 40; running += 3 {
			for other := uint64(0); other < 40; other += 7 {
				dp := DynamicPriority(static, RecentBehavior(running, other, other/2))
				assert.GreaterOrEqual(t, dp, 0)
				assert.LessOrEqual(t, dp, MaxPriority)
			}
		}
	}
}

func TestPBS_PicksLowestDynamicPriority(t *testing.T) {
	procs := newTestProcs(3)
	s := newPBS(procs)
	procs[0].setState(model.StateRunnable)
	procs[0].sched.Static = 60
	procs[0].times.Running = 2
	procs[0].times.Sleeping = 6
	procs[1].setState(model.StateRunnable)
	procs[1].sched.Static = 40
	procs[1].times.Running = 4
	procs[1].times.Sleeping = 2
	procs[2].setState(model.StateSleeping)
	procs[2].sched.Static = 0

	p := dispatch(t, s, 0)
	require.NotNil(t, p)
	assert.Same(t, procs[0], p)
	assert.Equal(t, 60, procs[0].sched.Dynamic)
	assert.Equal(t, MaxPriority, procs[1].sched.Dynamic)
	assert.Zero(t, procs[0].times.Running)
	assert.Zero(t, procs[0].times.Sleeping)
	assert.Equal(t, uint64(4), procs[1].times.Running)
}

func TestPBS_EarlierProcessWinsTies(t *testing.T) {
	procs := newTestProcs(2)
	a, b := procs[0], procs[1]
	s := newPBS(procs)
	for i, p := range procs {
		p.setState(model.StateRunnable)
		p.sched.Static = 60
		p.times.Created = uint64(i + 1)
	}
	var picked []*Proc
	for round := 0; round < 6; round++ {
		for _, p := range procs {
			p.times.Running = 10
			p.times.Waiting = 10
		}
		picked = append(picked, dispatch(t, s, uint64(round)))
	}
	assert.Equal(t, []*Proc{a, b, a, b, a, b}, picked)
}

func TestFCFS_Pick(t *testing.T) {
	procs := newTestProcs(4)
	s := newFCFS(procs)
	assert.Nil(t, s.Pick(0, 0))
	procs[0].setState(model.StateSleeping)
	procs[0].times.Created = 0
	procs[1].setState(model.StateRunnable)
	procs[1].times.Created = 7
	procs[2].setState(model.StateRunnable)
	procs[2].times.Created = 3
	procs[3].setState(model.StateRunnable)
	procs[3].times.Created = 3

	p := dispatch(t, s, 10)
	assert.Same(t, procs[2], p)
	assert.False(t, s.Preempt(p, 10))

	procs[2].setState(model.StateZombie)
	assert.Same(t, procs[3], dispatch(t, s, 10))
}

func TestRoundRobin_Pick(t *testing.T) {
	procs := newTestProcs(3)
	s := newRoundRobin(procs, 2)
	for _, p := range procs {
		p.setState(model.StateRunnable)
	}
	var pids []int
	for i := 0; i < 4; i++ {
		pids = append(pids, dispatch(t, s, 0).PID())
	}
	assert.Equal(t, []int{1, 2, 3, 1}, pids)
	other := s.Pick(1, 0)
	require.NotNil(t, other)
	other.lock.release()
	assert.Equal(t, 1, other.PID(), "cursors are per cpu")
}

func TestMLFQQueues(t *testing.T) {
	procs := newTestProcs(3)
	q := newMLFQQueues(len(procs))
	procs[0].setState(model.StateRunnable)
	procs[1].setState(model.StateRunnable)
	procs[2].setState(model.StateSleeping)

	assert.True(t, q.enqueue(procs[0], 1))
	assert.False(t, q.enqueue(procs[0], 1), "duplicate")
	assert.False(t, q.enqueue(procs[0], 2), "queued elsewhere")
	assert.False(t, q.enqueue(procs[2], 1), "not runnable")
	assert.True(t, q.enqueue(procs[1], 1))

	assert.Equal(t, 2, q.size(1))
	assert.Same(t, procs[0], q.head(1))
	assert.True(t, procs[0].sched.Queued)
	assert.Equal(t, 1, procs[0].sched.Level)

	assert.True(t, q.dequeue(procs[0], 1))
	assert.False(t, q.dequeue(procs[0], 1))
	assert.False(t, procs[0].sched.Queued)
	assert.Same(t, procs[1], q.head(1))

	for _, p := range procs {
		members := 0
		for level := 0; level < policy.Levels; level++ {
			for _, candidate := range q.snapshot(level) {
				if candidate == p {
					members++
					assert.Equal(t, level, p.sched.Level)
				}
			}
		}
		assert.Equal(t, p.sched.Queued, members == 1)
		assert.LessOrEqual(t, members, 1)
	}
}

func TestMLFQ_Demotion(t *testing.T) {
	procs := newTestProcs(1)
	config := policy.DefaultConfig()
	m := newMLFQ(config, procs)
	p := procs[0]
	var levels []int
	for tick := 1; tick <= 28; tick++ {
		m.Preempt(p, uint64(tick))
		levels = append(levels, p.sched.Level)
	}
	assert.Equal(t, 1, levels[0])
	assert.Equal(t, 1, levels[2])
	assert.Equal(t, 2, levels[3])
	assert.Equal(t, 2, levels[11])
	assert.Equal(t, 3, levels[12])
	for _, level := range levels[12:] {
		assert.Equal(t, 3, level)
	}
}

func TestMLFQ_PreemptsForHigherLevel(t *testing.T) {
	procs := newTestProcs(2)
	m := newMLFQ(policy.DefaultConfig(), procs)
	running := procs[0]
	running.setState(model.StateRunning)
	running.sched.Level = 2
	assert.False(t, m.Preempt(running, 1))

	procs[1].setState(model.StateRunnable)
	procs[1].sched.Level = 0
	assert.True(t, m.Preempt(running, 2))
	assert.Equal(t, 2, running.sched.Level)
}

func TestMLFQ_PickAndAging(t *testing.T) {
	procs := newTestProcs(3)
	m := newMLFQ(policy.DefaultConfig(), procs)
	for _, p := range procs {
		p.setState(model.StateRunnable)
	}
	procs[0].sched.Level = 2
	procs[0].sched.LastScheduled = 0
	procs[1].sched.Level = 2
	procs[1].sched.LastScheduled = 20
	procs[2].sched.Level = 3
	procs[2].sched.LastScheduled = 5

	p := dispatch(t, m, 30)
	assert.Same(t, procs[0], p, "promoted to level 1")
	assert.Equal(t, 1, p.sched.Level)
	assert.Equal(t, uint64(30), p.sched.LastScheduled)

	assert.True(t, procs[1].sched.Queued)
	assert.Equal(t, 2, procs[1].sched.Level)
	assert.Equal(t, uint64(20), procs[1].sched.LastScheduled)
	assert.Equal(t, 3, procs[2].sched.Level)

	procs[0].setState(model.StateSleeping)
	assert.Same(t, procs[1], dispatch(t, m, 31))
	m.Retire(procs[2])
	assert.False(t, procs[2].sched.Queued)
}
