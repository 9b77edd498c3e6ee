package mq

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iMithrellas/mqcast/internal/cpu"
	"github.com/iMithrellas/mqcast/internal/transport"
	"github.com/iMithrellas/mqcast/internal/wire"
)

// run is the dispatch goroutine. Termination is only observed between
// batches; a packet being retried is never abandoned because of Close.
func (s *Server) run() {
	defer s.finish()

	if core := s.opts.cpuCore; core >= 0 {
		if err := cpu.Bind(core); err != nil {
			s.logf("MQServer %d binding core %d failed: %v", s.id, core, err)
		} else {
			s.logf("MQServer %d dispatching on core %d", s.id, core)
		}
	}

	tp := s.tp
	retry := s.opts.newBackOff()
	if len(s.scratch) == 0 {
		s.scratch = make([]byte, s.opts.bufferSize)
	}
	var batch []message
	s.lastBeat = time.Now()

	for !s.terminated.Load() {
		conns := tp.Connections()
		if s.queue.len() == 0 || (s.confirm && conns == 0) {
			time.Sleep(s.opts.idleWait)
			s.stats.idle.Store(true)

			now := time.Now()
			if conns == 0 || now.Sub(s.lastBeat) <= s.opts.heartbeat {
				continue
			}
			s.queue.push(wire.HeartbeatTopic, nil)
			s.stats.heartbeats.Add(1)
			s.lastBeat = now
		} else {
			s.stats.idle.Store(false)
		}

		batch = s.queue.swap(batch)
		for _, m := range batch {
			s.transmit(tp, retry, m)
		}
		s.stats.batches.Add(1)
		s.logf("Publishing finished: %d", len(batch))
		s.lastBeat = time.Now()

		// release payloads before the slice goes back to the queue
		clear(batch)
	}
}

// transmit frames m and feeds it to tp until every byte is accepted or the
// retry policy gives up. It reports whether the packet went out.
func (s *Server) transmit(tp transport.Publisher, retry backoff.BackOff, m message) bool {
	pkt := wire.Frame(s.scratch, m.topic, m.payload)
	s.scratch = pkt[:cap(pkt)]

	retry.Reset()
	sent := 0
	for {
		n, err := tp.Send(pkt[sent:])
		if err != nil {
			s.stats.sendErrors.Add(1)
			s.logf("Publishing error: %v", err)
		} else if n > 0 {
			sent += n
			retry.Reset()
		}

		if sent >= len(pkt) {
			s.stats.sentBytes.Add(int64(len(pkt)))
			s.stats.sent.Add(1)
			return true
		}

		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			s.stats.dropped.Add(1)
			s.logf("Publishing dropped: topic %q, %d of %d bytes sent", m.topic, sent, len(pkt))
			return false
		}
		time.Sleep(wait)
	}
}
