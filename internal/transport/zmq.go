package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/go-zeromq/zmq4"
)

// subscriptionLister matches the PUB socket's view of its peers' filters.
type subscriptionLister interface {
	Topics() []string
}

// ZMQ publishes over a ZeroMQ PUB socket. Subscribers filter by prefix, so a
// SUB socket subscribed to "tick" receives every packet whose topic field
// starts with "tick".
type ZMQ struct {
	sock zmq4.Socket
}

// NewZMQ creates an unbound PUB socket. zmq4 has no send buffer or write
// deadline settings, so opts.SendBuffer and opts.WriteTimeout are not applied.
func NewZMQ(ctx context.Context, _ Options) *ZMQ {
	return &ZMQ{sock: zmq4.NewPub(ctx)}
}

func (z *ZMQ) Bind(url string) error {
	cleanupIPC(url)
	if err := z.sock.Listen(url); err != nil {
		return fmt.Errorf("zmq listen %s: %w", url, err)
	}
	return nil
}

// Connections reports the number of distinct subscriptions held by attached
// peers. It is zero exactly when no subscriber will receive a packet, which is
// what presence checks need; peers sharing a filter count once.
func (z *ZMQ) Connections() int {
	if l, ok := z.sock.(subscriptionLister); ok {
		return len(l.Topics())
	}
	// presence unknown, never hold packets back
	return 1
}

// Send hands one packet to the socket. ZeroMQ is message oriented, so a
// successful send is always complete.
func (z *ZMQ) Send(p []byte) (int, error) {
	// the caller reuses p for the next packet
	frame := make([]byte, len(p))
	copy(frame, p)
	if err := z.sock.Send(zmq4.NewMsg(frame)); err != nil {
		return 0, fmt.Errorf("zmq send: %w", err)
	}
	return len(p), nil
}

func (z *ZMQ) Addr() net.Addr {
	return z.sock.Addr()
}

func (z *ZMQ) Close() error {
	return z.sock.Close()
}
