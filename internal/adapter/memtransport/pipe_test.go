package memtransport

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/port"
	"github.com/stretchr/testify/require"
)

func TestPipeCarriesFramesBothWays(t *testing.T) {

	require := require.New(t)

	a, b := Pipe(4)
	ctx := context.Background()

	require.NoError(a.Send(ctx, []byte("ping")))
	got, err := b.Receive(ctx)
	require.NoError(err)
	require.Equal("ping", string(got))

	require.NoError(b.Send(ctx, []byte("pong")))
	got, err = a.Receive(ctx)
	require.NoError(err)
	require.Equal("pong", string(got))
}

func TestPipeCopiesFrames(t *testing.T) {

	require := require.New(t)

	a, b := Pipe(1)
	frame := []byte("abc")
	require.NoError(a.Send(context.Background(), frame))
	frame[0] = 'x'
	got, err := b.Receive(context.Background())
	require.NoError(err)
	require.Equal("abc", string(got))
}

func TestPipeCloseDrainsThenFails(t *testing.T) {

	require := require.New(t)

	a, b := Pipe(4)
	require.NoError(a.Send(context.Background(), []byte("last")))
	require.NoError(a.Close())

	got, err := b.Receive(context.Background())
	require.NoError(err)
	require.Equal("last", string(got))

	_, err = b.Receive(context.Background())
	require.ErrorIs(err, port.ErrTransportClosed)
	require.ErrorIs(b.Send(context.Background(), []byte("x")), port.ErrTransportClosed)
}

func TestPipeReceiveTimeout(t *testing.T) {

	require := require.New(t)

	_, b := Pipe(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Receive(ctx)
	require.ErrorIs(err, context.DeadlineExceeded)
}

func TestListener(t *testing.T) {

	require := require.New(t)

	l := NewListener(4)
	rm, err := l.Dialer()(context.Background())
	require.NoError(err)
	cem, err := l.Accept(context.Background())
	require.NoError(err)

	require.NoError(rm.Send(context.Background(), []byte("hello")))
	got, err := cem.Receive(context.Background())
	require.NoError(err)
	require.Equal("hello", string(got))
}
