package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iMithrellas/mqcast/internal/transport"
	"github.com/iMithrellas/mqcast/internal/wire"
)

const (
	DefaultHeartbeatInterval = 60 * time.Second
	DefaultIdleWait          = 2 * time.Millisecond
	DefaultRetryWait         = time.Millisecond
	DefaultBufferSize        = 1 << 20
)

// Option is a functional option for configuring a Server.
type Option func(*options)

type options struct {
	ctx           context.Context
	transport     transport.Publisher
	transportOpts transport.Options
	sink          Sink
	heartbeat     time.Duration
	idleWait      time.Duration
	bufferSize    int
	maxPayload    uint64
	newBackOff    func() backoff.BackOff
	cpuCore       int
}

func defaultOptions() options {
	return options{
		ctx:           context.Background(),
		transportOpts: transport.DefaultOptions(),
		sink:          discardSink{},
		heartbeat:     DefaultHeartbeatInterval,
		idleWait:      DefaultIdleWait,
		bufferSize:    DefaultBufferSize,
		maxPayload:    wire.MaxPayload,
		newBackOff:    constantRetry(DefaultRetryWait),
		cpuCore:       -1,
	}
}

// WithContext sets the parent context of transports created by Init.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithTransport makes Init bind t instead of creating a transport from the
// url scheme. The server owns t afterwards and closes it.
func WithTransport(t transport.Publisher) Option {
	return func(o *options) {
		o.transport = t
	}
}

func WithSink(s Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.sink = NewSlogSink(logger)
		}
	}
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.heartbeat = d
		}
	}
}

// WithIdleWait sets how long the dispatch goroutine sleeps when it has
// nothing to send.
func WithIdleWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idleWait = d
		}
	}
}

// WithBufferSize sets the initial size of the framing buffer.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithMaxPayload lowers the largest payload Publish accepts. Values above
// wire.MaxPayload are clamped to it.
func WithMaxPayload(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPayload = min(uint64(n), wire.MaxPayload)
		}
	}
}

// WithSendBuffer sizes the transport's outbound buffering.
func WithSendBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.transportOpts.SendBuffer = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.transportOpts.WriteTimeout = d
		}
	}
}

// WithRetryWait keeps the default never-give-up send policy with a different
// pause between attempts.
func WithRetryWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.newBackOff = constantRetry(d)
		}
	}
}

// WithMaxSendRetries bounds how many consecutive attempts without progress a
// packet gets, backing off exponentially between them. A packet that runs out
// of attempts is dropped so later messages are not stalled. Zero keeps the
// unbounded policy.
func WithMaxSendRetries(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.newBackOff = boundedRetry(n)
		}
	}
}

// WithSendBackOff installs a custom retry policy. The factory is called once
// per dispatch goroutine; the policy is reset for every packet and whenever a
// send makes progress.
func WithSendBackOff(f func() backoff.BackOff) Option {
	return func(o *options) {
		if f != nil {
			o.newBackOff = f
		}
	}
}

// WithCPUCore pins the dispatch goroutine's OS thread to core i.
func WithCPUCore(i int) Option {
	return func(o *options) {
		o.cpuCore = i
	}
}

func constantRetry(d time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

func boundedRetry(n uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = DefaultRetryWait
		b.MaxInterval = 100 * time.Millisecond
		b.MaxElapsedTime = 0
		return backoff.WithMaxRetries(b, n)
	}
}
