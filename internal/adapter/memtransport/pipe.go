// Package memtransport is an in-process port.MessageTransport, used to run
// the RM against a CEM stand-in without a network.
package memtransport

import (
	"context"
	"sync"

	"github.com/berfenger/s2mockrm/internal/core/port"
)

type pipeState struct {
	once   sync.Once
	closed chan struct{}
}

func (s *pipeState) close() {
	s.once.Do(func() { close(s.closed) })
}

// Conn is one end of a pipe.
type Conn struct {
	in    <-chan []byte
	out   chan<- []byte
	state *pipeState
}

// Pipe returns two connected ends. Closing either end closes both.
func Pipe(buffer int) (*Conn, *Conn) {
	ab := make(chan []byte, buffer)
	ba := make(chan []byte, buffer)
	state := &pipeState{closed: make(chan struct{})}
	return &Conn{in: ba, out: ab, state: state}, &Conn{in: ab, out: ba, state: state}
}

func (c *Conn) Send(ctx context.Context, frame []byte) error {
	data := append([]byte(nil), frame...)
	select {
	case <-c.state.closed:
		return port.ErrTransportClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.state.closed:
		return port.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.state.closed:
		// drain what was sent before the close
		select {
		case data := <-c.in:
			return data, nil
		default:
			return nil, port.ErrTransportClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) Close() error {
	c.state.close()
	return nil
}

// Listener hands out the CEM ends of pipes dialed by the RM.
type Listener struct {
	buffer int
	accept chan *Conn
}

func NewListener(buffer int) *Listener {
	return &Listener{buffer: buffer, accept: make(chan *Conn, 4)}
}

// Dialer connects a new pipe and queues its far end on the listener.
func (l *Listener) Dialer() port.TransportDialer {
	return func(ctx context.Context) (port.MessageTransport, error) {
		rm, cem := Pipe(l.buffer)
		select {
		case l.accept <- cem:
			return rm, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	select {
	case conn := <-l.accept:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
