package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/s2mockrm/internal/config"
	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/internal/core/device"
	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/core/events"
	"github.com/berfenger/s2mockrm/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor announces the bridge and the simulated device to Home
// Assistant once the MQTT actor is up, then goes quiet.
type HADiscoveryActor struct {
	config    *config.Config
	device    device.Config
	behavior  actor.Behavior
	mqttActor *actor.PID

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, dev device.Config, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		device:    dev,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			// the supervisor retries later
			panic(errors.New("MQTT actor is not healthy"))
		}
		ctx.Send(state.mqttActor, DiscoveryEntities(state.config, state.device))
		state.behavior.Become(state.Done)
	default:
		state.logger.Debug("hadiscovery@healthcheck recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
}

// DiscoveryEntities lists every entity the MQTT mirror publishes for the
// configured device.
func DiscoveryEntities(cfg *config.Config, dev device.Config) domain.PublishDiscoveryRequest {
	var sensors []domain.GenericSensor

	bridgeDevice := events.BridgeDevice(cfg.MQTT.BaseTopic)
	sensors = append(sensors, events.BridgeSensors(bridgeDevice)...)

	resourceDevice := events.ResourceDevice(string(dev.ResourceID), dev.Manufacturer, dev.Model, dev.FirmwareVersion, bridgeDevice)
	sensors = append(sensors, events.ResourceSensors(resourceDevice)...)
	if dev.ControlType == capability.ControlTypeFRBC {
		sensors = append(sensors, events.BatterySensors(resourceDevice)...)
	} else {
		sensors = append(sensors, events.PVSensors(resourceDevice)...)
	}

	return domain.PublishDiscoveryRequest{
		Sensors:  sensors,
		Switches: events.SessionSwitches(bridgeDevice),
		Buttons:  events.SessionButtons(bridgeDevice),
	}
}
