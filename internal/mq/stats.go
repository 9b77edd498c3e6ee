package mq

import "sync/atomic"

// Stats is a snapshot of a server's counters.
type Stats struct {
	Enqueued   int64 // accepted by Publish
	Sent       int64 // packets fully handed to the transport, heartbeats included
	SentBytes  int64
	Heartbeats int64
	Batches    int64
	SendErrors int64 // failed transport calls, each retried or counted in Dropped
	Dropped    int64 // packets abandoned by a bounded retry policy

	// Idle reports whether the last loop iteration found nothing to send or
	// was held back by confirm mode.
	Idle bool
}

// Pending is the number of published messages not yet sent or dropped.
// Heartbeats are excluded; one that is queued but unsent makes Pending
// overcount until it goes out.
func (s Stats) Pending() int64 {
	return s.Enqueued - (s.Sent - s.Heartbeats) - s.Dropped
}

type counters struct {
	enqueued   atomic.Int64
	sent       atomic.Int64
	sentBytes  atomic.Int64
	heartbeats atomic.Int64
	batches    atomic.Int64
	sendErrors atomic.Int64
	dropped    atomic.Int64
	idle       atomic.Bool
}

func (c *counters) snapshot() Stats {
	return Stats{
		Enqueued:   c.enqueued.Load(),
		Sent:       c.sent.Load(),
		SentBytes:  c.sentBytes.Load(),
		Heartbeats: c.heartbeats.Load(),
		Batches:    c.batches.Load(),
		SendErrors: c.sendErrors.Load(),
		Dropped:    c.dropped.Load(),
		Idle:       c.idle.Load(),
	}
}
