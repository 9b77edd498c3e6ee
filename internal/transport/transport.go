// Package transport provides the publish side of a pub/sub socket: bind to an
// endpoint, report how many subscribers are attached, and broadcast opaque
// packets to all of them.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

var (
	ErrUnsupportedScheme = errors.New("transport: unsupported url scheme")
	ErrNotBound          = errors.New("transport: not bound")
	ErrClosed            = errors.New("transport: closed")
)

// Publisher is a bound, broadcast-only socket.
//
// Send may accept only part of p; callers resend the remainder. A non-nil
// error is transient and the same bytes may be retried.
type Publisher interface {
	Bind(url string) error
	Connections() int
	Send(p []byte) (int, error)
	Close() error
}

// Addresser is implemented by publishers that can report their bound address,
// which matters when binding to port 0.
type Addresser interface {
	Addr() net.Addr
}

type Options struct {
	// SendBuffer sizes the WebSocket write buffer pool. ZMQ ignores it.
	SendBuffer int
	// WriteTimeout bounds a single write to one WebSocket peer.
	WriteTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:   8 << 20,
		WriteTimeout: 5 * time.Second,
	}
}

// New returns an unbound publisher suited to the scheme of url:
// tcp, ipc and inproc map to a ZeroMQ PUB socket, ws to a WebSocket broadcaster.
func New(ctx context.Context, url string, opts Options) (Publisher, error) {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, url)
	}
	switch scheme {
	case "tcp", "ipc", "inproc":
		return NewZMQ(ctx, opts), nil
	case "ws":
		return NewWebSocket(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}
