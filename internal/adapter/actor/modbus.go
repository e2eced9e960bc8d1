package actor

import (
	"fmt"

	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/util/actorutil"
	"github.com/berfenger/s2mockrm/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// ModbusActor keeps a read-only SunSpec register view of the simulated
// device up to date from the measurement events of the session.
type ModbusActor struct {
	behavior       actor.Behavior
	server         *sunspec_modbus.Server
	maxChargeWatt  uint32
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	updates        int
	logger         *zap.Logger
}

func NewModbusActor(server *sunspec_modbus.Server, maxChargeWatt uint32, eventStream *eventstream.EventStream, logger *zap.Logger) *ModbusActor {
	act := &ModbusActor{
		behavior:      actor.NewBehavior(),
		server:        server,
		maxChargeWatt: maxChargeWatt,
		eventStream:   eventStream,
		logger:        actorutil.ActorLogger(domain.ACTOR_ID_MODBUS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		if err := state.server.Start(); err != nil {
			state.logger.Error("modbus@starting could not start server", zap.Error(err))
			// let supervisor decide
			panic(err)
		}
		system := ctx.ActorSystem()
		self := ctx.Self()
		state.eventStreamSub = state.eventStream.SubscribeWithPredicate(func(value any) {
			system.Root.Send(self, value)
		}, func(value any) bool {
			_, ok := value.(domain.MeasurementEvent)
			return ok
		})
		state.behavior.Become(state.DefaultReceive)
	default:
		state.logger.Debug("modbus@starting recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODBUS,
			Healthy: true,
			State:   fmt.Sprintf("serving (%d updates)", state.updates),
		})
	case domain.MeasurementEvent:
		state.server.Update(MeasurementToDeviceState(msg.Measurement, state.maxChargeWatt))
		state.updates++
	default:
		state.logger.Debug("modbus@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) stop() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
	if err := state.server.Stop(); err != nil {
		state.logger.Debug("modbus: stop", zap.Error(err))
	}
}

func MeasurementToDeviceState(m domain.Measurement, maxChargeWatt uint32) sunspec_modbus.DeviceState {
	st := sunspec_modbus.DeviceState{
		PowerWatt: m.PowerW,
	}
	switch {
	case m.Curtailed:
		st.OperatingState = sunspec_modbus.InverterStatusThrottled
	case m.PowerW == 0 && m.FillLevel == nil:
		st.OperatingState = sunspec_modbus.InverterStatusSleeping
	case m.PowerW == 0:
		st.OperatingState = sunspec_modbus.InverterStatusStandby
	default:
		st.OperatingState = sunspec_modbus.InverterStatusMPPT
	}
	if m.FillLevel != nil {
		fill := *m.FillLevel
		status := uint16(sunspec_modbus.StorageChargeStatusHolding)
		switch {
		case m.PowerW > 0:
			status = sunspec_modbus.StorageChargeStatusCharging
		case m.PowerW < 0:
			status = sunspec_modbus.StorageChargeStatusDischarging
		case fill >= 1:
			status = sunspec_modbus.StorageChargeStatusFull
		case fill <= 0:
			status = sunspec_modbus.StorageChargeStatusEmpty
		}
		st.Storage = &sunspec_modbus.StorageState{
			StateOfCharge: fill * 100,
			MaxChargeWatt: maxChargeWatt,
			ChargeStatus:  status,
		}
	}
	return st
}
