package hub

import (
	"context"
	"sync/atomic"
)

// sendChannel is the buffered outbound queue between the hub core and one
// connection's writer goroutine. Sends respect both the caller's context and
// the channel's own lifetime context.
type sendChannel[T any] struct {
	channel    chan T
	context    context.Context
	bufferSize int
	closed     atomic.Int32
}

func newSendChannel[T any](ctx context.Context, bufferSize int) *sendChannel[T] {
	return &sendChannel[T]{
		channel:    make(chan T, bufferSize),
		context:    ctx,
		bufferSize: bufferSize,
	}
}

func (sc *sendChannel[T]) Send(ctx context.Context, message T) error {
	select {
	case sc.channel <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-sc.context.Done():
		return sc.context.Err()
	}
}

// TrySend enqueues without blocking. A full buffer drops the message and
// returns false; the connection is considered too slow to keep up.
func (sc *sendChannel[T]) TrySend(message T) bool {
	select {
	case sc.channel <- message:
		return true
	default:
		return false
	}
}

func (sc *sendChannel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case message := <-sc.channel:
		return message, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-sc.context.Done():
		var zero T
		return zero, sc.context.Err()
	}
}

func (sc *sendChannel[T]) Close() {
	if sc.closed.CompareAndSwap(0, 1) {
		close(sc.channel)
	}
}

func (sc *sendChannel[T]) IsClosed() bool {
	return sc.closed.Load() == 1
}

func (sc *sendChannel[T]) QueueLength() int {
	return len(sc.channel)
}
