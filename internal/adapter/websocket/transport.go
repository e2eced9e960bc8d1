// Package websocket carries S2 frames over a WebSocket connection, one JSON
// message per text frame.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/port"

	"github.com/gorilla/websocket"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 5 * time.Second
	maxFrameSize            = 1 << 20
)

type Transport struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newTransport(conn *websocket.Conn) *Transport {
	conn.SetReadLimit(maxFrameSize)
	return &Transport{
		conn:   conn,
		closed: make(chan struct{}),
	}
}

// Dialer returns a port.TransportDialer connecting to the CEM at url.
func Dialer(url string, handshakeTimeout time.Duration) port.TransportDialer {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	return func(ctx context.Context) (port.MessageTransport, error) {
		conn, resp, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
			}
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		return newTransport(conn), nil
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Accept upgrades an incoming HTTP request. Used by CEM stand-ins in tests
// and tooling.
func Accept(w http.ResponseWriter, r *http.Request) (*Transport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newTransport(conn), nil
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-t.closed:
		return port.ErrTransportClosed
	default:
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return t.mapError(err)
	}
	return t.mapError(t.conn.WriteMessage(websocket.TextMessage, frame))
}

func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	// unblock the read when ctx ends
	stop := context.AfterFunc(ctx, func() {
		t.conn.SetReadDeadline(time.Now())
	})
	defer stop()
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, t.mapError(err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		t.writeMu.Lock()
		// best effort, the peer may already be gone
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) mapError(err error) error {
	if err == nil {
		return nil
	}
	select {
	case <-t.closed:
		return port.ErrTransportClosed
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("%w: %v", port.ErrTransportClosed, err)
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return fmt.Errorf("%w: code %d", port.ErrTransportClosed, closeErr.Code)
	}
	return err
}
