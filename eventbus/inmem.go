package eventbus

import (
	"context"
	"sync"
)

var _ Bus = (*InMem)(nil)

const defaultBuffer = 100

// InMem is a process-local Bus. Each subscriber owns a buffered queue and a
// goroutine, so a slow receiver only delays publishers once its buffer is
// full.
type InMem struct {
	mu     sync.RWMutex
	subs   map[string][]chan any
	buffer int
	closed bool
	wg     sync.WaitGroup
}

func NewInMemBus() *InMem {
	return NewInMemBusSize(defaultBuffer)
}

func NewInMemBusSize(buffer int) *InMem {
	if buffer < 1 {
		buffer = 1
	}
	return &InMem{
		subs:   make(map[string][]chan any),
		buffer: buffer,
	}
}

func (b *InMem) Publish(topic string, msg any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, ch := range b.subs[topic] {
		ch <- msg
	}
	return nil
}

func (b *InMem) Subscribe(topic string, handler MessageReceiver) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	ch := make(chan any, b.buffer)
	b.subs[topic] = append(b.subs[topic], ch)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for m := range ch {
			handler.Receive(context.Background(), m)
		}
	}()
	return nil
}

// Close stops accepting messages and waits until every queued message has
// been handed to its receiver.
func (b *InMem) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for _, chans := range b.subs {
			for _, ch := range chans {
				close(ch)
			}
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
