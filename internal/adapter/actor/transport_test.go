package actor

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/s2mockrm/internal/adapter/memtransport"
	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sessionProbe struct {
	connected chan *actor.PID
	frames    chan domain.InboundFrame
	senders   chan *actor.PID
	closed    chan domain.TransportClosed
}

func newSessionProbe() *sessionProbe {
	return &sessionProbe{
		connected: make(chan *actor.PID, 4),
		frames:    make(chan domain.InboundFrame, 16),
		senders:   make(chan *actor.PID, 16),
		closed:    make(chan domain.TransportClosed, 4),
	}
}

func (p *sessionProbe) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.TransportConnected:
		p.connected <- ctx.Sender()
	case domain.InboundFrame:
		p.frames <- msg
		p.senders <- ctx.Sender()
	case domain.TransportClosed:
		p.closed <- msg
	}
}

func receiveWithin[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out")
		var zero T
		return zero
	}
}

func acceptWithin(t *testing.T, listener *memtransport.Listener, timeout time.Duration) (*memtransport.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return listener.Accept(ctx)
}

func spawnTransport(t *testing.T, listener *memtransport.Listener) (*actor.ActorSystem, *actor.PID, *sessionProbe) {
	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)
	probe := newSessionProbe()
	session := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return probe }))
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewTransportActor(listener.Dialer(), "mem://cem", session, 50*time.Millisecond, zap.NewNop())
	}))
	return system, pid, probe
}

func TestTransportActorForwardsFrames(t *testing.T) {
	listener := memtransport.NewListener(8)
	system, pid, probe := spawnTransport(t, listener)

	cem, err := acceptWithin(t, listener, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, pid.String(), receiveWithin(t, probe.connected).String())

	require.NoError(t, cem.Send(context.Background(), []byte(`{"message_type":"Handshake"}`)))
	frame := receiveWithin(t, probe.frames)
	assert.JSONEq(t, `{"message_type":"Handshake"}`, string(frame.Data))
	assert.False(t, frame.ReceivedAt.IsZero())
	assert.Equal(t, pid.String(), receiveWithin(t, probe.senders).String())

	system.Root.Send(pid, domain.SendFrameRequest{Data: []byte(`{"message_type":"HandshakeResponse"}`)})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := cem.Receive(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message_type":"HandshakeResponse"}`, string(out))

	res, err := system.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	health := res.(domain.ActorHealthResponse)
	assert.True(t, health.Healthy)
	assert.Equal(t, "connected", health.State)
}

func TestTransportActorReconnectsAfterPeerClose(t *testing.T) {
	listener := memtransport.NewListener(8)
	_, pid, probe := spawnTransport(t, listener)

	cem, err := acceptWithin(t, listener, 2*time.Second)
	require.NoError(t, err)
	receiveWithin(t, probe.connected)

	require.NoError(t, cem.Close())
	closed := receiveWithin(t, probe.closed)
	assert.NoError(t, closed.Error)

	_, err = acceptWithin(t, listener, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, pid.String(), receiveWithin(t, probe.connected).String())
}

func TestTransportActorCloseWithoutReconnect(t *testing.T) {
	listener := memtransport.NewListener(8)
	system, pid, probe := spawnTransport(t, listener)

	cem, err := acceptWithin(t, listener, 2*time.Second)
	require.NoError(t, err)
	receiveWithin(t, probe.connected)

	system.Root.Send(pid, domain.CloseTransportRequest{Reconnect: false})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = cem.Receive(ctx)
	assert.ErrorIs(t, err, port.ErrTransportClosed)

	_, err = acceptWithin(t, listener, 300*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, probe.closed)

	res, err := system.Root.RequestFuture(pid, domain.SendFrameRequest{Data: []byte("{}")}, time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(t, res.(domain.SendFrameResponse).GetResponseError(), port.ErrTransportClosed)
}

func TestTransportActorReconnectsOnRequest(t *testing.T) {
	listener := memtransport.NewListener(8)
	system, pid, probe := spawnTransport(t, listener)

	_, err := acceptWithin(t, listener, 2*time.Second)
	require.NoError(t, err)
	receiveWithin(t, probe.connected)

	system.Root.Send(pid, domain.CloseTransportRequest{Reconnect: true})

	_, err = acceptWithin(t, listener, 2*time.Second)
	require.NoError(t, err)
	receiveWithin(t, probe.connected)
}
