// Package queue implements bounded single-producer queues with explicit
// disconnection. Besides the usual blocking send, a Sender supports a lossy
// send that never blocks and instead evicts the oldest unread item when the
// queue is full.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrFull         = errors.New("queue full")
	ErrEmpty        = errors.New("queue empty")
	ErrDisconnected = errors.New("queue disconnected")
)

type pipe[T any] struct {
	ch chan T

	senderGone   chan struct{}
	receiverGone chan struct{}
	closeSender  sync.Once
	closeRecv    sync.Once
}

// Sender is the producing end of a queue.
type Sender[T any] struct {
	p       *pipe[T]
	evicted atomic.Uint64
}

// Receiver is the consuming end of a queue.
type Receiver[T any] struct {
	p *pipe[T]
}

// New creates a queue holding at most capacity unread items.
func New[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		capacity = 1
	}
	p := &pipe[T]{
		ch:           make(chan T, capacity),
		senderGone:   make(chan struct{}),
		receiverGone: make(chan struct{}),
	}
	return &Sender[T]{p: p}, &Receiver[T]{p: p}
}

func (s *Sender[T]) disconnected() bool {
	select {
	case <-s.p.receiverGone:
		return true
	default:
		return false
	}
}

// Send blocks until v was enqueued, the receiver was closed or ctx is done.
func (s *Sender[T]) Send(ctx context.Context, v T) error {
	if s.disconnected() {
		return ErrDisconnected
	}
	select {
	case s.p.ch <- v:
		return nil
	case <-s.p.receiverGone:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues v if there is room. It returns ErrFull if the queue is at
// capacity and ErrDisconnected if the receiver was closed.
func (s *Sender[T]) TrySend(v T) error {
	if s.disconnected() {
		return ErrDisconnected
	}
	select {
	case s.p.ch <- v:
		return nil
	default:
		return ErrFull
	}
}

// LooselySend tries to enqueue v without blocking. If the queue is full, it
// removes the oldest unread item and tries once more. The retry can still
// fail with ErrFull if a concurrent consumer and producer race for the slot.
func (s *Sender[T]) LooselySend(v T) error {
	err := s.TrySend(v)
	if !errors.Is(err, ErrFull) {
		return err
	}
	select {
	case <-s.p.ch:
		s.evicted.Add(1)
	default:
	}
	return s.TrySend(v)
}

// Evicted returns the number of items LooselySend discarded.
func (s *Sender[T]) Evicted() uint64 {
	return s.evicted.Load()
}

// Close marks the sender as dropped. The receiver can still drain queued
// items before it observes ErrDisconnected.
func (s *Sender[T]) Close() {
	s.p.closeSender.Do(func() {
		close(s.p.senderGone)
	})
}

// Recv blocks until an item is available, the sender was closed and all items
// were drained, or ctx is done.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	select {
	case v := <-r.p.ch:
		return v, nil
	case <-r.p.senderGone:
		return r.drain()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryRecv returns the next item if one is available. It returns ErrEmpty if
// the queue is empty and ErrDisconnected if it is empty and the sender was
// closed.
func (r *Receiver[T]) TryRecv() (T, error) {
	select {
	case v := <-r.p.ch:
		return v, nil
	default:
	}
	select {
	case <-r.p.senderGone:
		return r.drain()
	default:
		var zero T
		return zero, ErrEmpty
	}
}

func (r *Receiver[T]) drain() (T, error) {
	select {
	case v := <-r.p.ch:
		return v, nil
	default:
		var zero T
		return zero, ErrDisconnected
	}
}

// Len returns the number of unread items.
func (r *Receiver[T]) Len() int {
	return len(r.p.ch)
}

func (r *Receiver[T]) Cap() int {
	return cap(r.p.ch)
}

// Close marks the receiver as dropped. Subsequent and blocked sends fail
// with ErrDisconnected.
func (r *Receiver[T]) Close() {
	r.p.closeRecv.Do(func() {
		close(r.p.receiverGone)
	})
}
