package watcher

import (
	"sync"
)

// Queue collects invalidation events between frames. The watcher goroutine pushes and the frame
// loop drains, so both sides are safe to call concurrently.
type Queue struct {
	mu *sync.Mutex

	events []Event
	seen   map[string]int
}

// NewQueue creates an empty Queue.
//
// Returns:
//   - *Queue: the new queue
func NewQueue() *Queue {
	return &Queue{
		mu:   &sync.Mutex{},
		seen: make(map[string]int),
	}
}

// Push enqueues e unless an event for the same path is already pending.
// A pending event keeps its position. A later chart event for the path upgrades its kind.
//
// Parameters:
//   - e: the event to enqueue
func (q *Queue) Push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i, ok := q.seen[e.Path]; ok {
		if e.Kind == KindChart {
			q.events[i].Kind = KindChart
		}
		return
	}
	q.seen[e.Path] = len(q.events)
	q.events = append(q.events, e)
}

// Drain returns the pending events in arrival order and empties the queue.
//
// Returns:
//   - []Event: the pending events, nil when there are none
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	out := q.events
	q.events = nil
	clear(q.seen)
	return out
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
