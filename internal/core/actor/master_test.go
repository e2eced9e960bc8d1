package actor

import (
	"context"
	"strings"
	"testing"
	"time"

	adactor "github.com/berfenger/s2mockrm/internal/adapter/actor"
	"github.com/berfenger/s2mockrm/internal/adapter/memtransport"
	"github.com/berfenger/s2mockrm/internal/adapter/profile"
	"github.com/berfenger/s2mockrm/internal/config"
	"github.com/berfenger/s2mockrm/internal/core/device"
	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/core/events"
	"github.com/berfenger/s2mockrm/internal/core/sim"
	"github.com/berfenger/s2mockrm/internal/mqtt"
	"github.com/berfenger/s2mockrm/internal/util"
	"github.com/berfenger/s2mockrm/internal/util/actorutil"
	"github.com/berfenger/s2mockrm/pkg/s2"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testProviders(t *testing.T, cfg *config.Config, listener *memtransport.Listener, logger *zap.Logger) (device.Config, Providers) {
	devCfg, err := device.ConfigFrom(cfg, "test")
	require.NoError(t, err)
	prof, err := sim.LoadProfile(profile.Embedded())
	require.NoError(t, err)

	return devCfg, Providers{
		Session: func(es *eventstream.EventStream) *SessionActor {
			clock := sim.SystemClock{}
			dev, err := device.New(devCfg, prof, clock.Now(), logger)
			if err != nil {
				panic(err)
			}
			return NewSessionActor(cfg, dev, clock, es, logger)
		},
		Transport: func(session *actor.PID) *adactor.TransportActor {
			return adactor.NewTransportActor(listener.Dialer(), "mem://cem", session, 50*time.Millisecond, logger)
		},
		MQTT: func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(cfg, es, nil, logger)
		},
	}
}

func nextFrame(t *testing.T, conn *memtransport.Conn) s2.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := conn.Receive(ctx)
	require.NoError(t, err)
	msg, err := s2.Decode(data)
	require.NoError(t, err, string(data))
	return msg
}

func TestMasterActor(t *testing.T) {

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	listener := memtransport.NewListener(16)
	devCfg, providers := testProviders(t, &cfg, listener, logger)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, devCfg, providers, logger)
	})
	pid, err := context.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	defer context.Stop(pid)

	conn, err := acceptCEM(listener)
	require.NoError(t, err)

	hs, ok := nextFrame(t, conn).(*s2.Handshake)
	require.True(t, ok)
	assert.Equal(t, s2.RoleRM, hs.Role)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, healthResp.Healthy, "healthy is true: %s", healthResp.State)
	assert.Contains(t, healthResp.State, "session="+SESSION_STATE_HANDSHAKING)
	assert.Contains(t, healthResp.State, "transport=connected")
	assert.NotContains(t, healthResp.State, "modbus")

	res, err = context.RequestFuture(pid, domain.GetSessionStateRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, SESSION_STATE_HANDSHAKING, res.(domain.GetSessionStateResponse).Snapshot.State)

	res, err = context.RequestFuture(pid, domain.GetCapabilitiesRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	caps := res.(domain.GetCapabilitiesResponse)
	require.NotNil(t, caps.Details)
	assert.Equal(t, s2.ID("test-rm"), caps.Details.ResourceID)

	res, err = context.RequestFuture(pid, domain.FlushTraceRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(t, res.(domain.FlushTraceResponse).GetResponseError(), ErrTraceDisabled)

	res, err = context.RequestFuture(pid, domain.TerminateSessionRequest{Reason: "test over", Reconnect: false}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.TerminateSessionResponse).Terminated)

	req, ok := nextFrame(t, conn).(*s2.SessionRequest)
	require.True(t, ok)
	assert.Equal(t, s2.SessionRequestTerminate, req.Request)

	// no reconnect after an RM-initiated termination
	_, err = acceptCEMWithin(listener, 300*time.Millisecond)
	assert.Error(t, err)
}

func TestMasterActorForwardsMQTTCommands(t *testing.T) {

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()

	as := actor.NewActorSystem()
	defer as.Shutdown()
	context := as.Root

	listener := memtransport.NewListener(16)
	devCfg, providers := testProviders(t, &cfg, listener, logger)

	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, devCfg, providers, logger)
	}))
	defer context.Stop(pid)

	conn, err := acceptCEM(listener)
	require.NoError(t, err)
	_, ok := nextFrame(t, conn).(*s2.Handshake)
	require.True(t, ok)

	// switching the session off over MQTT terminates and reconnects
	cmd := mqttSessionSwitch("OFF")
	context.Send(pid, adactor.ParsedCommand{Command: &cmd})

	req, ok := nextFrame(t, conn).(*s2.SessionRequest)
	require.True(t, ok)
	assert.Equal(t, s2.SessionRequestTerminate, req.Request)

	next, err := acceptCEM(listener)
	require.NoError(t, err)
	hs, ok := nextFrame(t, next).(*s2.Handshake)
	require.True(t, ok)
	assert.Equal(t, s2.RoleRM, hs.Role)
}

func TestHealthCheckResultSummary(t *testing.T) {
	result := newHealthCheckResult(nil)
	result.expected = []string{"transport", "session", "mqtt"}
	result.record(domain.ActorHealthResponse{Id: "session", Healthy: true, State: "operational"})
	result.record(domain.ActorHealthResponse{Id: "mqtt", Healthy: false, State: "context deadline exceeded"})

	assert.False(t, result.allReceived())
	assert.False(t, result.allHealthy())
	assert.Equal(t, "mqtt=unhealthy(context deadline exceeded),session=operational,transport=timeout", result.summary())

	result.record(domain.ActorHealthResponse{Id: "transport", Healthy: true, State: "connected"})
	result.record(domain.ActorHealthResponse{Id: "mqtt", Healthy: true, State: "idle"})
	assert.True(t, result.allReceived())
	assert.True(t, result.allHealthy())
	assert.True(t, strings.HasPrefix(result.summary(), "mqtt=idle"))
}

func mqttSessionSwitch(payload string) mqtt.ParsedMQTTCommand {
	return mqtt.ParsedMQTTCommand{
		DeviceId: events.SWITCH_ID_SESSION,
		Command:  mqtt.MQTT_COMMAND_SWITCH,
		Payload:  payload,
	}
}

func acceptCEM(listener *memtransport.Listener) (*memtransport.Conn, error) {
	return acceptCEMWithin(listener, 2*time.Second)
}

func acceptCEMWithin(listener *memtransport.Listener, timeout time.Duration) (*memtransport.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return listener.Accept(ctx)
}
