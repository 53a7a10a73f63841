package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var _ Bus = (*NatsBus[any])(nil)

// NatsBus publishes JSON encoded messages on NATS subjects. Received
// messages are decoded into T before they reach the receiver.
type NatsBus[T any] struct {
	nc  *nats.Conn
	log *zap.Logger
}

func NewNatsBus[T any](url string, log *zap.Logger, opts ...nats.Option) (*NatsBus[T], error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewNatsBusConn[T](nc, log), nil
}

func NewNatsBusConn[T any](nc *nats.Conn, log *zap.Logger) *NatsBus[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &NatsBus[T]{nc: nc, log: log.Named("eventbus")}
}

func (eb *NatsBus[T]) Publish(topic string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", topic, err)
	}
	return eb.nc.Publish(topic, data)
}

func (eb *NatsBus[T]) Subscribe(topic string, handler MessageReceiver) error {
	_, err := eb.nc.Subscribe(topic, eb.consumedMessages(context.Background(), topic, handler.Receive))
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return nil
}

// Close drains pending messages before closing the connection
func (eb *NatsBus[T]) Close() error {
	return eb.nc.Drain()
}

func (eb *NatsBus[T]) consumedMessages(ctx context.Context, topic string, receiver func(ctx context.Context, msg any)) func(*nats.Msg) {
	return func(msg *nats.Msg) {
		decoded, err := deserialize[T](msg)
		if err != nil {
			eb.log.Warn("dropping undecodable message", zap.String("topic", topic), zap.Error(err))
			return
		}
		receiver(ctx, decoded)
	}
}

func deserialize[T any](message *nats.Msg) (T, error) {
	var msg T
	err := json.Unmarshal(message.Data, &msg)
	return msg, err
}
