package conversation

import (
	"log/slog"
	"sync"
)

// serialQueue runs submitted functions one at a time, in submission order,
// on its own goroutine. Submit never blocks.
type serialQueue struct {
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	pending []func()
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func newSerialQueue(name string, logger *slog.Logger) *serialQueue {
	q := &serialQueue{
		name:   name,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit queues fn. It returns false once the queue is closed.
func (q *serialQueue) Submit(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	q.signal()
	return true
}

// Close stops accepting work. Queued functions still run.
func (q *serialQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

// Wait blocks until Close was called and every queued function has run.
func (q *serialQueue) Wait() {
	<-q.done
}

func (q *serialQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *serialQueue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.call(fn)
	}
}

func (q *serialQueue) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("recovered from panic", "queue", q.name, "panic", r)
		}
	}()
	fn()
}
