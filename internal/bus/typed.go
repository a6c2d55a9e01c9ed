package bus

import (
	"context"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/yanun0323/errors"
)

// On subscribes fn to the event type carried by T.
func On[T schema.Payload](b *Bus, name string, fn func(ctx context.Context, p T) error) SubscriptionID {
	var zero T
	return b.Subscribe(zero.EventType(), name, func(ctx context.Context, ev schema.Event) error {
		p, ok := ev.Payload.(T)
		if !ok {
			return errors.Wrapf(exception.ErrPayloadType, "handler: %s, type: %s", name, ev.Type)
		}
		return fn(ctx, p)
	})
}

// EventTypeOf returns the discriminant that On subscribes T to.
func EventTypeOf[T schema.Payload]() schema.EventType {
	var zero T
	return zero.EventType()
}
