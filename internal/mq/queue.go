package mq

import (
	"github.com/iMithrellas/mqcast/internal/spin"
)

type message struct {
	topic   string
	payload []byte
}

// queue is the FIFO shared by producers and the dispatch goroutine. The lock
// is only held for an append or a slice swap.
type queue struct {
	mu    spin.Mutex
	items []message
}

func (q *queue) push(topic string, payload []byte) {
	q.mu.Lock()
	q.items = append(q.items, message{topic: topic, payload: payload})
	q.mu.Unlock()
}

// swap hands the queued messages to the caller and keeps spare, emptied, as
// the new backing store, so two slices alternate without reallocating.
func (q *queue) swap(spare []message) []message {
	q.mu.Lock()
	items := q.items
	q.items = spare[:0]
	q.mu.Unlock()
	return items
}

func (q *queue) len() int {
	q.mu.Lock()
	n := len(q.items)
	q.mu.Unlock()
	return n
}
