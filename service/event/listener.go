package event

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	minConsumeBackoff = 10 * time.Millisecond
	maxConsumeBackoff = time.Second
)

// Listener drains a publisher's queue into a handler on its own goroutine
type Listener[T any] struct {
	publisher  *Publisher[T]
	handler    func(*Event[T])
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewListener creates a stopped listener; a nil logger discards consume errors
func NewListener[T any](publisher *Publisher[T], handler func(*Event[T]), logger *zap.Logger) *Listener[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher:  publisher,
		handler:    handler,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		minBackoff: minConsumeBackoff,
		maxBackoff: maxConsumeBackoff,
	}
}

// Stop cancels the listener and waits for the handler to return
func (l *Listener[T]) Stop() {
	l.cancel()
	<-l.done
}

// Start consumes events until Stop. Consecutive consume errors back off
// exponentially up to maxBackoff; a delivered event resets the delay.
func (l *Listener[T]) Start() {
	go func() {
		defer close(l.done)
		backoff := time.Duration(0)
		for {
			event, err := l.publisher.Consume(l.ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || l.ctx.Err() != nil {
					return
				}
				backoff = l.nextBackoff(backoff)
				l.logger.Warn("consume event", zap.Error(err), zap.Duration("retryIn", backoff))
				select {
				case <-l.ctx.Done():
					return
				case <-time.After(backoff):
				}
				continue
			}
			backoff = 0
			if event != nil {
				l.handler(event)
			}
		}
	}()
}

func (l *Listener[T]) nextBackoff(current time.Duration) time.Duration {
	if current < l.minBackoff {
		return l.minBackoff
	}
	if current *= 2; current > l.maxBackoff {
		return l.maxBackoff
	}
	return current
}
