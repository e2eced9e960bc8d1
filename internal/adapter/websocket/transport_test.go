package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/port"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tr, err := Accept(w, r)
		if err != nil {
			return
		}
		defer tr.Close()
		for {
			frame, err := tr.Receive(context.Background())
			if err != nil {
				return
			}
			if string(frame) == "bye" {
				return
			}
			if err := tr.Send(context.Background(), frame); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTransportRoundTrip(t *testing.T) {

	require := require.New(t)

	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dialer(url, time.Second)(context.Background())
	require.NoError(err)
	defer conn.Close()

	frame := []byte(`{"message_type":"Handshake","message_id":"1","role":"RM"}`)
	require.NoError(conn.Send(context.Background(), frame))
	got, err := conn.Receive(context.Background())
	require.NoError(err)
	require.Equal(frame, got)
}

func TestTransportPeerClose(t *testing.T) {

	require := require.New(t)

	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dialer(url, time.Second)(context.Background())
	require.NoError(err)
	defer conn.Close()

	require.NoError(conn.Send(context.Background(), []byte("bye")))
	_, err = conn.Receive(context.Background())
	require.ErrorIs(err, port.ErrTransportClosed)
}

func TestTransportLocalClose(t *testing.T) {

	require := require.New(t)

	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dialer(url, time.Second)(context.Background())
	require.NoError(err)

	require.NoError(conn.Close())
	require.ErrorIs(conn.Send(context.Background(), []byte("x")), port.ErrTransportClosed)
	_, err = conn.Receive(context.Background())
	require.ErrorIs(err, port.ErrTransportClosed)
}

func TestTransportReceiveHonoursContext(t *testing.T) {

	require := require.New(t)

	srv := echoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dialer(url, time.Second)(context.Background())
	require.NoError(err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = conn.Receive(ctx)
	require.ErrorIs(err, context.DeadlineExceeded)
}

func TestDialFailure(t *testing.T) {

	require := require.New(t)

	_, err := Dialer("ws://127.0.0.1:1/s2", 200*time.Millisecond)(context.Background())
	require.Error(err)
}
