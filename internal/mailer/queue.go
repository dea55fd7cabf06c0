package mailer

import (
	"context"
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("mail queue closed")

// Queue hands digests from the jobs to the delivery worker.
type Queue interface {
	// Enqueue blocks while the queue is full until ctx is done.
	Enqueue(ctx context.Context, d Digest) error
	// Dequeue blocks until a digest is available or ctx is done.
	Dequeue(ctx context.Context) (Digest, error)
}

// MemoryQueue is an in-process buffered queue.
type MemoryQueue struct {
	mu     sync.RWMutex
	closed bool
	ch     chan Digest
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan Digest, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, d Digest) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- d:
		return nil
	}
}

// Dequeue returns ErrQueueClosed once the queue is closed and empty.
func (q *MemoryQueue) Dequeue(ctx context.Context) (Digest, error) {
	select {
	case <-ctx.Done():
		return Digest{}, ctx.Err()
	case d, ok := <-q.ch:
		if !ok {
			return Digest{}, ErrQueueClosed
		}
		return d, nil
	}
}

// Close stops new digests; queued ones can still be dequeued. It waits for
// blocked Enqueue calls, so a consumer must be running.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Len reports the number of queued digests.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
