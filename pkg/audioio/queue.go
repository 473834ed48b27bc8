package audioio

import (
	"context"
	"sync"
)

// PlaybackQueue is an unbounded FIFO of output frames that can be cleared
// in one step. Push never blocks.
type PlaybackQueue struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool

	notify chan struct{}
	done   chan struct{}
}

// NewPlaybackQueue creates an empty queue.
func NewPlaybackQueue() *PlaybackQueue {
	return &PlaybackQueue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends a frame. It returns false once the queue is closed.
func (q *PlaybackQueue) Push(frame []byte) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the oldest frame, waiting until one is available.
// It returns false when ctx is done or the queue is closed.
func (q *PlaybackQueue) Pop(ctx context.Context) ([]byte, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.frames) > 0 {
			frame := q.frames[0]
			q.frames[0] = nil
			q.frames = q.frames[1:]
			q.mu.Unlock()
			return frame, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.done:
			return nil, false
		case <-q.notify:
		}
	}
}

// Clear discards all queued frames and returns how many were dropped.
func (q *PlaybackQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.frames)
	q.frames = nil
	return n
}

// Len returns the number of queued frames.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Close discards queued frames and wakes any blocked Pop.
func (q *PlaybackQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.frames = nil
	close(q.done)
}
