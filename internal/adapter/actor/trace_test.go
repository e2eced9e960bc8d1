package actor

import (
	"bytes"
	"testing"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/trace"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTraceActorRecordsFrames(t *testing.T) {
	as := actor.NewActorSystem()
	defer as.Shutdown()

	var buf bytes.Buffer
	recorder := trace.NewRecorder(&buf)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewTraceActor(recorder, as.EventStream, zap.NewNop())
	}))

	// the subscription is in place once the actor answers
	_, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)

	at := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	as.EventStream.Publish(domain.FrameEvent{Direction: domain.FrameOutbound, Data: []byte(`{"message_type":"Handshake"}`), At: at})
	as.EventStream.Publish(domain.FrameEvent{Direction: domain.FrameInbound, Data: []byte(`{"message_type":"HandshakeResponse"}`), At: at})
	as.EventStream.Publish(domain.MeasurementEvent{})

	require.Eventually(t, func() bool {
		res, err := as.Root.RequestFuture(pid, domain.FlushTraceRequest{}, time.Second).Result()
		return err == nil && res.(domain.FlushTraceResponse).Frames == 2
	}, 2*time.Second, 20*time.Millisecond)

	as.Root.StopFuture(pid).Wait()

	records, err := trace.ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "out", records[0].Direction)
	assert.Equal(t, "Handshake", records[0].MessageType)
	assert.Equal(t, "in", records[1].Direction)
	assert.Equal(t, "HandshakeResponse", records[1].MessageType)
}
