package event

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/model"
	"github.com/viant/kproc/service/messaging"
)

type flakyQueue struct {
	failures int32
	calls    atomic.Int32
}

func (q *flakyQueue) Publish(context.Context, *Event[model.ProcEvent]) error { return nil }

func (q *flakyQueue) Consume(ctx context.Context) (messaging.Message[Event[model.ProcEvent]], error) {
	call := q.calls.Add(1)
	if q.failures < 0 || call <= q.failures {
		return nil, errors.New("storage unavailable")
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type ackedMessage struct {
	event *Event[model.ProcEvent]
}

func (m *ackedMessage) ID() string { return m.event.ID }

func (m *ackedMessage) T() *Event[model.ProcEvent] { return m.event }

func (m *ackedMessage) Ack() error { return nil }

func (m *ackedMessage) Nack(error) error { return nil }

type recoveringQueue struct {
	flakyQueue
	delivered atomic.Bool
}

func (q *recoveringQueue) Consume(ctx context.Context) (messaging.Message[Event[model.ProcEvent]], error) {
	if q.calls.Add(1) <= q.failures {
		return nil, errors.New("storage unavailable")
	}
	if q.delivered.CompareAndSwap(false, true) {
		return &ackedMessage{event: NewEvent("boot-1", model.ProcEvent{Type: model.EventReap, PID: 4})}, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestListener_BacksOffOnErrors(t *testing.T) {
	queue := &flakyQueue{failures: -1}
	listener := NewListener[model.ProcEvent](NewPublisher[model.ProcEvent](queue, "boot-1"), func(*Event[model.ProcEvent]) {}, nil)
	listener.minBackoff = 20 * time.Millisecond
	listener.maxBackoff = 40 * time.Millisecond
	listener.Start()
	time.Sleep(200 * time.Millisecond)
	listener.Stop()
	calls := queue.calls.Load()
	assert.GreaterOrEqual(t, calls, int32(2))
	assert.LessOrEqual(t, calls, int32(12))
}

func TestListener_RecoversAfterErrors(t *testing.T) {
	queue := &recoveringQueue{flakyQueue: flakyQueue{failures: 3}}
	received := make(chan *Event[model.ProcEvent], 1)
	listener := NewListener[model.ProcEvent](NewPublisher[model.ProcEvent](queue, "boot-1"), func(e *Event[model.ProcEvent]) {
		received <- e
	}, nil)
	listener.minBackoff = time.Millisecond
	listener.maxBackoff = 2 * time.Millisecond
	listener.Start()
	defer listener.Stop()
	select {
	case e := <-received:
		require.NotNil(t, e)
		assert.Equal(t, 4, e.Data.PID)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not recover")
	}
	assert.GreaterOrEqual(t, queue.calls.Load(), int32(4))
}

func TestListener_NextBackoff(t *testing.T) {
	listener := NewListener[model.ProcEvent](nil, nil, nil)
	testCases := []struct {
		name    string
		current time.Duration
		expect  time.Duration
	}{
		{name: "first error", current: 0, expect: minConsumeBackoff},
		{name: "doubles", current: 40 * time.Millisecond, expect: 80 * time.Millisecond},
		{name: "capped", current: 800 * time.Millisecond, expect: maxConsumeBackoff},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expect, listener.nextBackoff(testCase.current))
		})
	}
}
