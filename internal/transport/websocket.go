package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket broadcasts each packet as one binary message to every connected
// peer. Peers that fail a write are disconnected; inbound frames are ignored.
type WebSocket struct {
	opts     Options
	upgrader websocket.Upgrader

	mu     sync.Mutex
	peers  map[*websocket.Conn]struct{}
	ln     net.Listener
	srv    *http.Server
	closed bool
}

func NewWebSocket(opts Options) *WebSocket {
	return &WebSocket{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: opts.SendBuffer,
			// pooled so idle peers do not pin a send buffer each
			WriteBufferPool: &sync.Pool{},
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		peers: make(map[*websocket.Conn]struct{}),
	}
}

// Bind listens on the host of a ws://host:port/path url and accepts upgrades
// on path.
func (w *WebSocket) Bind(url string) error {
	u, err := neturl.Parse(url)
	if err != nil {
		return fmt.Errorf("websocket parse %s: %w", url, err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return fmt.Errorf("websocket listen %s: %w", u.Host, err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, w.serve)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()

	w.ln, w.srv = ln, srv
	return nil
}

func (w *WebSocket) serve(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		return
	}
	if !w.add(conn) {
		conn.Close()
		return
	}
	// a read error means the peer went away
	for {
		if _, _, err := conn.NextReader(); err != nil {
			w.drop(conn)
			return
		}
	}
}

func (w *WebSocket) add(conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.peers[conn] = struct{}{}
	return true
}

func (w *WebSocket) drop(conn *websocket.Conn) {
	w.mu.Lock()
	_, ok := w.peers[conn]
	delete(w.peers, conn)
	w.mu.Unlock()
	if ok {
		conn.Close()
	}
}

func (w *WebSocket) Connections() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.peers)
}

// Send writes p to every peer. Like a PUB socket it succeeds with no peers
// attached; failed peers are dropped rather than failing the broadcast.
func (w *WebSocket) Send(p []byte) (int, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, ErrClosed
	}
	if w.srv == nil {
		w.mu.Unlock()
		return 0, ErrNotBound
	}
	peers := make([]*websocket.Conn, 0, len(w.peers))
	for c := range w.peers {
		peers = append(peers, c)
	}
	w.mu.Unlock()

	for _, c := range peers {
		if w.opts.WriteTimeout > 0 {
			_ = c.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
		}
		if err := c.WriteMessage(websocket.BinaryMessage, p); err != nil {
			w.drop(c)
		}
	}
	return len(p), nil
}

func (w *WebSocket) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ln == nil {
		return nil
	}
	return w.ln.Addr()
}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	srv := w.srv
	peers := w.peers
	w.peers = make(map[*websocket.Conn]struct{})
	w.mu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	// hijacked connections are not closed by the server
	for c := range peers {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		c.Close()
	}
	return errors.Join(errs...)
}
