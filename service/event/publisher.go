package event

import (
	"context"

	"github.com/viant/kproc/internal/clock"
	"github.com/viant/kproc/internal/idgen"
	"github.com/viant/kproc/service/messaging"
)

type Publisher[T any] struct {
	queue  messaging.Queue[Event[T]]
	bootID string
}

func NewPublisher[T any](queue messaging.Queue[Event[T]], bootID string) *Publisher[T] {
	return &Publisher[T]{queue: queue, bootID: bootID}
}

// Publish stamps and enqueues event
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	if event.ID == "" {
		event.ID = idgen.New()
	}
	if event.BootID == "" {
		event.BootID = p.bootID
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = clock.Now()
	}
	return p.queue.Publish(ctx, event)
}

// PublishData wraps data into a new event and publishes it
func (p *Publisher[T]) PublishData(ctx context.Context, data T) error {
	return p.Publish(ctx, NewEvent(p.bootID, data))
}

// Consume takes and acknowledges the next event
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
