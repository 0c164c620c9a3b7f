package intent

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Submit after Close, and by Next once a
// closed queue is drained.
var ErrQueueClosed = errors.New("intent queue closed")

// Submitter accepts intents. UI handlers, timers and notification pumps
// hold a Submitter rather than the queue itself.
type Submitter interface {
	Submit(it Intent) error
}

// Queue is an unbounded multi-producer single-consumer FIFO. Submit never
// blocks; intents from one producer are delivered in submission order.
type Queue struct {
	mu     sync.Mutex
	items  []Intent
	head   int
	ready  chan struct{}
	closed bool
}

var _ Submitter = (*Queue)(nil)

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Submit appends it to the queue.
func (q *Queue) Submit(it Intent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, it)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Next blocks until an intent is available, ctx is done or the queue is
// closed and empty. Only one goroutine may call Next.
func (q *Queue) Next(ctx context.Context) (Intent, error) {
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			it := q.items[q.head]
			q.items[q.head] = nil
			q.head++
			if q.head == len(q.items) {
				q.items = q.items[:0]
				q.head = 0
			} else if q.head > 1024 && q.head*2 > len(q.items) {
				q.items = append([]Intent(nil), q.items[q.head:]...)
				q.head = 0
			}
			q.mu.Unlock()
			return it, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of queued intents.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close rejects further submissions. Queued intents can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}
