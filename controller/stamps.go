package controller

import (
	"time"

	"github.com/google/uuid"
)

// stamp is one timestamp tagged with the frame it belongs to.
type stamp struct {
	frame uuid.UUID
	at    time.Time
}

// stampQueue is a FIFO of stamps. Only the scheduler loop touches it.
type stampQueue struct {
	items []stamp
}

func (q *stampQueue) push(s stamp) {
	q.items = append(q.items, s)
}

// pop removes the oldest stamp. ok is false when the queue is empty.
func (q *stampQueue) pop() (s stamp, ok bool) {
	if len(q.items) == 0 {
		return stamp{}, false
	}
	s = q.items[0]
	q.items[0] = stamp{}
	q.items = q.items[1:]
	return s, true
}

func (q *stampQueue) len() int {
	return len(q.items)
}
