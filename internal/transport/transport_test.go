package transport_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iMithrellas/mqcast/internal/transport"
	"github.com/iMithrellas/mqcast/internal/wire"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestNewByScheme(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p, err := transport.New(ctx, "tcp://127.0.0.1:5555", transport.DefaultOptions())
	require.NoError(t, err)
	assert.IsType(t, &transport.ZMQ{}, p)
	require.NoError(t, p.Close())

	p, err = transport.New(ctx, "ws://127.0.0.1:0/pub", transport.DefaultOptions())
	require.NoError(t, err)
	assert.IsType(t, &transport.WebSocket{}, p)
	require.NoError(t, p.Close())

	_, err = transport.New(ctx, "udp://127.0.0.1:1", transport.DefaultOptions())
	assert.ErrorIs(t, err, transport.ErrUnsupportedScheme)

	_, err = transport.New(ctx, "no-scheme", transport.DefaultOptions())
	assert.ErrorIs(t, err, transport.ErrUnsupportedScheme)
}

func TestWebSocketBroadcast(t *testing.T) {
	t.Parallel()

	ws := transport.NewWebSocket(transport.DefaultOptions())
	require.NoError(t, ws.Bind("ws://127.0.0.1:0/pub"))
	t.Cleanup(func() { _ = ws.Close() })

	assert.Equal(t, 0, ws.Connections())
	pkt := wire.Frame(nil, "tick", []byte("abc"))
	n, err := ws.Send(pkt)
	require.NoError(t, err)
	assert.Equal(t, len(pkt), n, "send without peers is not an error")

	url := "ws://" + ws.Addr().String() + "/pub"
	c1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c1.Close()
	c2, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c2.Close()

	require.Eventually(t, func() bool { return ws.Connections() == 2 }, 2*time.Second, 5*time.Millisecond)

	n, err = ws.Send(pkt)
	require.NoError(t, err)
	assert.Equal(t, len(pkt), n)

	for _, c := range []*websocket.Conn{c1, c2} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		typ, data, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, typ)
		assert.Equal(t, pkt, data)
	}

	require.NoError(t, c1.Close())
	require.Eventually(t, func() bool { return ws.Connections() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketSendStates(t *testing.T) {
	t.Parallel()

	ws := transport.NewWebSocket(transport.DefaultOptions())
	_, err := ws.Send([]byte("x"))
	assert.ErrorIs(t, err, transport.ErrNotBound)

	require.NoError(t, ws.Close())
	_, err = ws.Send([]byte("x"))
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, ws.Bind("ws://127.0.0.1:0/"), transport.ErrClosed)
	assert.NoError(t, ws.Close(), "close is idempotent")
}

func TestZMQPublishesToSubscriber(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := fmt.Sprintf("tcp://127.0.0.1:%d", freePort(t))
	// buffer and deadline settings do not reach the zmq socket
	pub := transport.NewZMQ(ctx, transport.Options{SendBuffer: 1, WriteTimeout: time.Nanosecond})
	require.NoError(t, pub.Bind(ep))
	t.Cleanup(func() { _ = pub.Close() })

	sub := zmq4.NewSub(ctx)
	defer sub.Close()
	require.NoError(t, sub.Dial(ep))
	require.NoError(t, sub.SetOption(zmq4.OptionSubscribe, "tick"))

	require.Eventually(t, func() bool { return pub.Connections() > 0 }, 5*time.Second, 10*time.Millisecond)

	pkt := wire.Frame(nil, "tick", []byte("abc"))
	n, err := pub.Send(pkt)
	require.NoError(t, err)
	assert.Equal(t, len(pkt), n)

	got := make(chan zmq4.Msg, 1)
	go func() {
		if msg, err := sub.Recv(); err == nil {
			got <- msg
		}
	}()

	select {
	case msg := <-got:
		require.Len(t, msg.Frames, 1)
		topic, payload, err := wire.Parse(msg.Frames[0])
		require.NoError(t, err)
		assert.Equal(t, "tick", topic)
		assert.Equal(t, []byte("abc"), payload)
	case <-time.After(5 * time.Second):
		t.Fatal("no packet received")
	}
}
