package eventbus

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("eventbus: closed")

// Bus delivers messages published on a topic to every receiver subscribed
// to that topic.
type Bus interface {
	Publish(topic string, msg any) error
	Subscribe(topic string, handler MessageReceiver) error
	Close() error
}

type MessageReceiver interface {
	Receive(ctx context.Context, msg any)
}

// ReceiverFunc adapts a plain function to MessageReceiver
type ReceiverFunc func(ctx context.Context, msg any)

func (f ReceiverFunc) Receive(ctx context.Context, msg any) {
	f(ctx, msg)
}
