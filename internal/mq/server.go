package mq

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/someonegg/gox/syncx"

	"github.com/iMithrellas/mqcast/internal/transport"
)

const firstServerID = 1001

var serverSeq atomic.Uint32

func nextServerID() uint32 {
	return firstServerID + serverSeq.Add(1) - 1
}

// Server is a broadcast publisher. Publish is safe for concurrent use; Init
// and Close are meant to be called once each by the owner.
type Server struct {
	id   uint32
	opts options

	mu      sync.Mutex
	tp      transport.Publisher
	url     string
	cancel  context.CancelFunc
	confirm bool
	ready   atomic.Bool

	queue      queue
	terminated atomic.Bool
	startOnce  sync.Once
	started    atomic.Bool
	done       syncx.DoneChan
	finish     func()

	stats counters

	// owned by the dispatch goroutine
	lastBeat time.Time
	scratch  []byte
}

// New allocates a Server with the next process-wide id. It does nothing on the
// network until Init.
func New(opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		id:   nextServerID(),
		opts: o,
		done: syncx.NewDoneChan(),
	}
	s.finish = sync.OnceFunc(s.done.SetDone)
	return s
}

func (s *Server) ID() uint32 { return s.id }

// URL returns the endpoint bound by Init.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Server) Confirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirm
}

// Addr returns the bound address when the transport can report one.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.tp.(transport.Addresser); ok {
		return a.Addr()
	}
	return nil
}

func (s *Server) Ready() bool { return s.ready.Load() }

func (s *Server) Stats() Stats { return s.stats.snapshot() }

// Done is signalled once the dispatch goroutine has exited, or by Shutdown
// when none was ever started.
func (s *Server) Done() syncx.DoneChanR { return s.done.R() }

// Init binds the server to url. With confirm set, queued messages are held
// back while no subscriber is attached. Calling Init on a ready server is a
// no-op and on a closed one an error; a failed Init leaves the server unusable.
func (s *Server) Init(url string, confirm bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated.Load() {
		return ErrServerClosed
	}
	if s.ready.Load() {
		return nil
	}

	ctx, cancel := context.WithCancel(s.opts.ctx)
	tp := s.opts.transport
	if tp == nil {
		var err error
		tp, err = transport.New(ctx, url, s.opts.transportOpts)
		if err != nil {
			cancel()
			s.logf("MQServer %d initializing failed: %v", s.id, err)
			return fmt.Errorf("mq: server %d: %w", s.id, err)
		}
	}

	if err := tp.Bind(url); err != nil {
		_ = tp.Close()
		cancel()
		s.logf("MQServer %d binding url %s failed: %v", s.id, url, err)
		return fmt.Errorf("mq: server %d bind %s: %w", s.id, url, err)
	}
	s.logf("MQServer %d has bound to %s", s.id, url)

	s.tp, s.url, s.cancel, s.confirm = tp, url, cancel, confirm
	s.ready.Store(true)
	return nil
}

// Publish queues payload under topic for broadcast. Topics longer than the
// wire topic field are truncated when framed. Empty payloads, and calls on a
// closed server, are dropped silently; calls before Init and payloads over the
// size limit are dropped and reported to the sink.
func (s *Server) Publish(topic string, payload []byte) {
	if !s.ready.Load() {
		s.logf("MQServer %d has not been initialized yet", s.id)
		return
	}
	if len(payload) == 0 || s.terminated.Load() {
		return
	}
	if uint64(len(payload)) > s.opts.maxPayload {
		s.logf("MQServer %d rejected %d byte payload on topic %q: limit is %d", s.id, len(payload), topic, s.opts.maxPayload)
		return
	}

	s.queue.push(topic, bytes.Clone(payload))
	s.stats.enqueued.Add(1)
	s.startOnce.Do(s.start)
}

func (s *Server) start() {
	if s.terminated.Load() {
		return
	}
	s.started.Store(true)
	go s.run()
}

// Shutdown stops the dispatch goroutine and then closes the transport.
// Queued messages that were not yet drained are discarded. If ctx ends first,
// Shutdown returns its error and leaves the transport open; calling it again
// resumes waiting.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.ready.Load() {
		return nil
	}

	s.terminated.Store(true)
	// no worker can start after this returns
	s.startOnce.Do(func() {})
	if s.started.Load() {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		s.finish()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tp == nil {
		return nil
	}
	err := s.tp.Close()
	s.tp = nil
	s.cancel()
	if err != nil {
		s.logf("MQServer %d closing failed: %v", s.id, err)
		return fmt.Errorf("mq: server %d close: %w", s.id, err)
	}
	s.logf("MQServer %d closed", s.id)
	return nil
}

// Close is Shutdown without a deadline.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}

func (s *Server) logf(format string, args ...any) {
	s.opts.sink.LogServer(s.id, fmt.Sprintf(format, args...))
}
