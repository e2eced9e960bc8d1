package actor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	adactor "github.com/berfenger/s2mockrm/internal/adapter/actor"
	"github.com/berfenger/s2mockrm/internal/config"
	"github.com/berfenger/s2mockrm/internal/core/device"
	"github.com/berfenger/s2mockrm/internal/core/domain"
	. "github.com/berfenger/s2mockrm/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const FORECAST_JOB_KEY = "forecast"

var ErrTraceDisabled = errors.New("trace is not enabled")

type SessionActorProvider func(*eventstream.EventStream) *SessionActor

type TransportActorProvider func(session *actor.PID) *adactor.TransportActor

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ModbusActorProvider func(*eventstream.EventStream) *adactor.ModbusActor

type TraceActorProvider func(*eventstream.EventStream) *adactor.TraceActor

// Providers build the children of the master actor. MQTT, Modbus and Trace
// are optional and may be nil.
type Providers struct {
	Session   SessionActorProvider
	Transport TransportActorProvider
	MQTT      MQTTActorProvider
	Modbus    ModbusActorProvider
	Trace     TraceActorProvider
}

type MasterOfPuppetsActor struct {
	config   config.Config
	device   device.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	providers          Providers
	sessionActor       *actor.PID
	transportActor     *actor.PID
	mqttActor          *actor.PID
	modbusActor        *actor.PID
	traceActor         *actor.PID
	scheduler          quartz.Scheduler
	stopping           bool
	logger             *zap.Logger
}

type healthCheckResult struct {
	expected  []string
	healthy   map[string]bool
	states    map[string]string
	respondTo *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, dev device.Config, providers Providers, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:      config,
		device:      dev,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream: &eventstream.EventStream{},
		providers:   providers,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// the trace subscribes first so it sees the very first frames
		if state.providers.Trace != nil {
			pid, err := state.startTraceActor(ctx)
			if err != nil {
				panic(err)
			}
			state.traceActor = pid
		}

		sessionActorPID, err := state.startSessionActor(ctx)
		if err != nil {
			panic(err)
		}
		state.sessionActor = sessionActorPID

		transportActorPID, err := state.startTransportActor(ctx)
		if err != nil {
			panic(err)
		}
		state.transportActor = transportActorPID

		if state.providers.Modbus != nil {
			pid, err := state.startModbusActor(ctx)
			if err != nil {
				panic(err)
			}
			state.modbusActor = pid
		}

		if state.providers.MQTT != nil {
			pid, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = pid

			if state.config.MQTT.HADiscoveryEnable {
				if _, err := state.startHADiscoveryActor(ctx); err != nil {
					panic(err)
				}
			}
		}

		if err := state.startForecastJob(ctx); err != nil {
			panic(err)
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck = newHealthCheckResult(ctx.Sender())
		for id, pid := range state.children() {
			state.currentHealthCheck.expected = append(state.currentHealthCheck.expected, id)
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
					State:   err.Error(),
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to the session
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default invalid command", zap.Error(err))
				return
			}
			if cmd != nil {
				ctx.Send(state.sessionActor, cmd)
			}
		}
	case domain.TerminateSessionRequest, domain.PublishForecastRequest,
		domain.GetSessionStateRequest, domain.GetCapabilitiesRequest:
		ctx.Forward(state.sessionActor)
	case domain.FlushTraceRequest:
		if state.traceActor == nil {
			ForRequest(msg).Respond(ctx, domain.FlushTraceResponse{ActorResponseMixIn: domain.ErrorResponse(ErrTraceDisabled)})
			return
		}
		ctx.Forward(state.traceActor)
	case *actor.Terminated:
		state.onChildTerminated(msg.Who)
	case *actor.Stopping, *actor.Restarting:
		state.stop()
	case *actor.Stopped, *actor.ReceiveTimeout:
	default:
		state.logger.Debug("master@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.finishHealthCheck(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.record(msg)
		if state.currentHealthCheck.allReceived() {
			state.finishHealthCheck(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	case *actor.Terminated:
		state.onChildTerminated(msg.Who)
	case *actor.Stopping, *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) finishHealthCheck(ctx actor.Context) {
	ctx.CancelReceiveTimeout()
	state.currentHealthCheck.respond(ctx)
	state.behavior.UnbecomeStacked()
	state.stash.UnstashAll(ctx)
}

// children lists the running children that take part in health checks.
func (state *MasterOfPuppetsActor) children() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_SESSION:   state.sessionActor,
		domain.ACTOR_ID_TRANSPORT: state.transportActor,
		domain.ACTOR_ID_MQTT:      state.mqttActor,
		domain.ACTOR_ID_MODBUS:    state.modbusActor,
		domain.ACTOR_ID_TRACE:     state.traceActor,
	}
	for id, pid := range children {
		if pid == nil {
			delete(children, id)
		}
	}
	return children
}

func (state *MasterOfPuppetsActor) onChildTerminated(who *actor.PID) {
	if state.stopping {
		return
	}
	switch who.Id {
	case childId(domain.ACTOR_ID_SESSION), childId(domain.ACTOR_ID_TRANSPORT):
		state.logger.Error("master: core actor terminated", zap.String("actor", who.Id))
		panic(fmt.Errorf("%s terminated", who.Id))
	case childId(domain.ACTOR_ID_MQTT):
		state.logger.Error("master: mqtt actor terminated")
		state.mqttActor = nil
	case childId(domain.ACTOR_ID_MODBUS):
		state.logger.Error("master: modbus actor terminated")
		state.modbusActor = nil
	case childId(domain.ACTOR_ID_TRACE):
		state.logger.Error("master: trace actor terminated")
		state.traceActor = nil
	}
}

func childId(name string) string {
	return fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, name)
}

func (state *MasterOfPuppetsActor) startSessionActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	sessionProps := actor.PropsFromProducer(func() actor.Actor {
		return state.providers.Session(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(sessionProps, domain.ACTOR_ID_SESSION)
}

func (state *MasterOfPuppetsActor) startTransportActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	session := state.sessionActor
	transportProps := actor.PropsFromProducer(func() actor.Actor {
		return state.providers.Transport(session)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(transportProps, domain.ACTOR_ID_TRANSPORT)
}

func (state *MasterOfPuppetsActor) startModbusActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return state.providers.Modbus(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(modbusProps, domain.ACTOR_ID_MODBUS)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.providers.MQTT(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterOfPuppetsActor) startTraceActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	traceProps := actor.PropsFromProducer(func() actor.Actor {
		return state.providers.Trace(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(traceProps, domain.ACTOR_ID_TRACE)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(5, 30*time.Second, decider)

	mqttActor := state.mqttActor
	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.device, mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

// startForecastJob has the session refresh its forecast every
// forecast_interval_seconds. A zero interval disables the job.
func (state *MasterOfPuppetsActor) startForecastJob(ctx actor.Context) error {
	interval := time.Duration(state.config.ForecastIntervalSeconds) * time.Second
	if interval <= 0 {
		return nil
	}
	system := ctx.ActorSystem()
	self := ctx.Self()

	state.scheduler = quartz.NewStdScheduler()
	state.scheduler.Start(context.Background())

	forecastJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		system.Root.Send(self, domain.PublishForecastRequest{})
		return true, nil
	})
	return state.scheduler.ScheduleJob(
		quartz.NewJobDetail(forecastJob, quartz.NewJobKey(FORECAST_JOB_KEY)),
		quartz.NewSimpleTrigger(interval),
	)
}

// stop runs before the children are stopped.
func (state *MasterOfPuppetsActor) stop() {
	state.stopping = true
	if state.scheduler != nil {
		state.scheduler.Stop()
		state.scheduler = nil
	}
}

func newHealthCheckResult(respondTo *actor.PID) healthCheckResult {
	return healthCheckResult{
		healthy:   map[string]bool{},
		states:    map[string]string{},
		respondTo: respondTo,
	}
}

func (state *healthCheckResult) record(resp domain.ActorHealthResponse) {
	state.healthy[resp.Id] = resp.Healthy
	state.states[resp.Id] = resp.State
}

func (state *healthCheckResult) allReceived() bool {
	return len(state.healthy) >= len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range state.expected {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

// summary renders "id=state" pairs, flagging children that failed or never
// answered.
func (state *healthCheckResult) summary() string {
	ids := slices.Clone(state.expected)
	slices.Sort(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		healthy, ok := state.healthy[id]
		switch {
		case !ok:
			parts = append(parts, id+"=timeout")
		case !healthy:
			parts = append(parts, fmt.Sprintf("%s=unhealthy(%s)", id, state.states[id]))
		default:
			parts = append(parts, fmt.Sprintf("%s=%s", id, state.states[id]))
		}
	}
	return strings.Join(parts, ",")
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.summary(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
