package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/berfenger/s2mockrm/internal/config"
	"github.com/berfenger/s2mockrm/internal/core/domain"
	"github.com/berfenger/s2mockrm/internal/core/events"
	"github.com/berfenger/s2mockrm/internal/mqtt"
	"github.com/berfenger/s2mockrm/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	client         *mqtt.MQTTClient
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	// test actor only
	sink   chan<- rawMessage
	logger *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type OnEventStreamMessage struct {
	message any
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")
		system := ctx.ActorSystem()
		self := ctx.Self()

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			system.Root.Send(self, MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				system.Root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				system.Root.Send(self, MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")
		system := ctx.ActorSystem()
		self := ctx.Self()

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		state.subscribeEventStream(ctx)

		// subscribe to MQTT command topic
		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err == nil && cmd != nil {
				system.Root.Send(self, ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				system.Root.Send(self, MQTTConnectionLost{Error: err})
			} else {
				system.Root.Send(self, MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	case OnEventStreamMessage:
		// nothing to mirror until the broker is reachable
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case OnEventStreamMessage:
		for _, raw := range state.eventMessages(msg.message) {
			state.publishRaw(ctx, raw)
		}
	case publishResult:
		if msg.Error != nil {
			state.logger.Warn("mqtt@default could not mirror an event", zap.Error(msg.Error))
		}
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishSensorUpdateRequest:
		state.logger.Debug("mqtt@default PublishSensorUpdateRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishSensorValue(ctx, msg.Event, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery")
		err := state.PublishHomeAssistantDiscovery(msg.Sensors, msg.Switches, msg.Buttons)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) subscribeEventStream(ctx actor.Context) {
	if state.eventStream == nil || state.eventStreamSub != nil {
		return
	}
	system := ctx.ActorSystem()
	self := ctx.Self()
	state.eventStreamSub = state.eventStream.SubscribeWithPredicate(func(value any) {
		system.Root.Send(self, OnEventStreamMessage{message: value})
	}, func(value any) bool {
		switch value.(type) {
		case domain.MeasurementEvent, domain.SessionStateEvent:
			return true
		}
		return false
	})
}

// eventMessages maps a session event to the MQTT messages mirroring it.
func (state *MQTTActor) eventMessages(event any) []rawMessage {
	var updates []any
	var msgs []rawMessage
	switch ev := event.(type) {
	case domain.MeasurementEvent:
		updates = events.MeasurementToUpdateEvents(&ev.Measurement)
		payload, err := json.Marshal(ev.Measurement)
		if err != nil {
			state.logger.Error("mqtt: measurement encode", zap.Error(err))
		} else {
			msgs = append(msgs, rawMessage{
				topic:   state.client.MeasurementTopic(),
				message: string(payload),
			})
		}
	case domain.SessionStateEvent:
		updates = events.SessionStateToUpdateEvents(&ev)
		msgs = append(msgs, rawMessage{
			topic:   state.client.SessionStateTopic(),
			message: ev.State,
			retain:  true,
		})
	}
	for _, u := range updates {
		if raw := state.event2MQTTMessage(u); raw != nil {
			msgs = append(msgs, *raw)
		}
	}
	return msgs
}

func (state *MQTTActor) event2MQTTMessage(event any) *rawMessage {
	switch msg := event.(type) {
	case domain.FloatSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.Id),
			message: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
		}
	case domain.BinarySensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.BinarySensorStateTopic(msg.Id),
			message: bool2MQTTPayload(msg.Value),
		}
	case domain.SwitchSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SwitchStateTopic(msg.Id),
			message: bool2MQTTPayload(msg.Value),
			retain:  true,
		}
	case domain.TextSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.Id),
			message: msg.Value,
		}
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: stringMessage,
		}
	default:
		return nil
	}
}

func (state *MQTTActor) publishRaw(ctx actor.Context, msg rawMessage) {
	system := ctx.ActorSystem()
	self := ctx.Self()
	state.logger.Sugar().Debugf("mqtt@publish: mirror %s => %s", msg.topic, msg.message)
	state.client.Publish(msg.topic, msg.message, 0, msg.retain, func(err error) {
		system.Root.Send(self, publishResult{Error: err})
	}, 5*time.Second)
}

func (state *MQTTActor) publishSensorValue(ctx actor.Context, event domain.SensorUpdateEvent, retain bool, replyTo *actor.PID) {
	msg := state.event2MQTTMessage(event)
	if msg == nil {
		if replyTo != nil {
			ctx.Send(replyTo, domain.PublishSensorUpdateResponse{
				ActorResponseMixIn: domain.ErrorResponse(fmt.Errorf("unsupported sensor event %T", event)),
			})
		}
		return
	}
	system := ctx.ActorSystem()
	self := ctx.Self()
	state.logger.Sugar().Debugf("mqtt@publish: sensor publish %s => %s", msg.topic, msg.message)
	state.client.Publish(msg.topic, msg.message, 1, msg.retain || retain, func(err error) {
		system.Root.Send(self, publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.EventPublishResultReceive)
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	system := ctx.ActorSystem()
	self := ctx.Self()
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, payload)
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		system.Root.Send(self, publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishSensorUpdateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(sensors []domain.GenericSensor, switches []domain.GenericSwitch, buttons []domain.GenericButton) error {
	prefix := state.client.DiscoveryPrefix()
	configs := make(map[string]mqtt.HADiscoveryConfig, len(sensors)+len(switches)+len(buttons))
	for i := range sensors {
		configs[mqtt.HADiscoverySensorTopic(prefix, sensors[i])] = mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i])
	}
	for i := range switches {
		configs[mqtt.HADiscoverySwitchTopic(prefix, switches[i])] = mqtt.GenericSwitchToHADiscoveryMessage(state.client, switches[i])
	}
	for i := range buttons {
		configs[mqtt.HADiscoveryButtonTopic(prefix, buttons[i])] = mqtt.GenericButtonToHADiscoveryMessage(state.client, buttons[i])
	}
	for topic, config := range configs {
		payload, err := json.Marshal(config)
		if err != nil {
			return err
		}
		state.client.Publish(topic, payload, 0, true, func(err error) {
			if err != nil {
				state.logger.Warn("mqtt: discovery publish failed", zap.String("topic", topic), zap.Error(err))
			}
		}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func bool2MQTTPayload(value bool) string {
	if value {
		return mqtt.MQTT_PAYLOAD_ON
	} else {
		return mqtt.MQTT_PAYLOAD_OFF
	}
}

// Dummy actor: mirrors events without a broker, handing each message to sink.
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, sink chan<- rawMessage, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		sink:        sink,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.subscribeEventStream(ctx)
	case *actor.Stopping:
		if state.eventStreamSub != nil {
			state.eventStream.Unsubscribe(state.eventStreamSub)
			state.eventStreamSub = nil
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		ctx.Send(ctx.Parent(), msg)
	case OnEventStreamMessage:
		for _, raw := range state.eventMessages(msg.message) {
			state.logger.Debug("mqtt@dummy publish", zap.String("topic", raw.topic), zap.String("value", raw.message))
			if state.sink != nil {
				state.sink <- raw
			}
		}
	case domain.PublishSensorUpdateRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishSensorUpdateResponse{})
		}
	case domain.PublishMessageRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishMessageResponse{})
		}
	case domain.PublishDiscoveryRequest:
		if state.sink != nil {
			prefix := state.client.DiscoveryPrefix()
			for i := range msg.Sensors {
				state.sink <- rawMessage{topic: mqtt.HADiscoverySensorTopic(prefix, msg.Sensors[i]), retain: true}
			}
			for i := range msg.Switches {
				state.sink <- rawMessage{topic: mqtt.HADiscoverySwitchTopic(prefix, msg.Switches[i]), retain: true}
			}
			for i := range msg.Buttons {
				state.sink <- rawMessage{topic: mqtt.HADiscoveryButtonTopic(prefix, msg.Buttons[i]), retain: true}
			}
		}
	}
}
