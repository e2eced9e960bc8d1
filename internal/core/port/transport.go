package port

import (
	"context"
	"errors"
)

// ErrTransportClosed is returned by Receive and Send once the transport is
// closed by either side.
var ErrTransportClosed = errors.New("transport closed")

// MessageTransport carries whole S2 frames between the RM and the CEM.
type MessageTransport interface {
	Send(ctx context.Context, frame []byte) error
	// Receive blocks until a frame arrives or the transport closes.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// TransportDialer opens a transport towards the CEM.
type TransportDialer func(ctx context.Context) (MessageTransport, error)
