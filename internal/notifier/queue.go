package notifier

// Queue is the multi-producer, single-consumer dispatch queue between
// producers and the service loop. Enqueue never blocks.
type Queue struct {
	ch   chan Push
	wake chan struct{}
}

// NewQueue creates a queue holding at most size pushes.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		ch:   make(chan Push, size),
		wake: make(chan struct{}, 1),
	}
}

// Enqueue adds p to the queue. It returns ErrQueueFull instead of waiting
// when the queue is at capacity. Safe for concurrent use.
func (q *Queue) Enqueue(p Push) error {
	if p == nil {
		return ErrInvalidPush
	}

	select {
	case q.ch <- p:
	default:
		return ErrQueueFull
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Drain removes and returns the pushes queued at the moment of the call,
// oldest first. Pushes enqueued while draining wait for the next call.
func (q *Queue) Drain() []Push {
	n := len(q.ch)
	if n == 0 {
		return nil
	}
	out := make([]Push, 0, n)
	for range n {
		out = append(out, <-q.ch)
	}
	return out
}

// Len returns the number of queued pushes.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Ready is signalled after an Enqueue so the consumer can dispatch
// without waiting for its next tick.
func (q *Queue) Ready() <-chan struct{} {
	return q.wake
}
