package mqtt

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/berfenger/s2mockrm/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
	MQTT_PAYLOAD_PRESS   = "PRESS"

	MQTT_COMMAND_SWITCH = "switch"
	MQTT_COMMAND_BUTTON = "button"
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("s2mockrm_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:        mqtt.NewClient(opts),
		cfg:           cfg.MQTT,
		commandRegexp: commandExtractor(cfg.MQTT.BaseTopic),
	}
}

type MQTTClient struct {
	client        mqtt.Client
	cfg           config.MQTTConfig
	commandRegexp *regexp.Regexp
}

// ParsedMQTTCommand is a message received on a command topic. Command is the
// entity kind the topic addresses (switch or button).
type ParsedMQTTCommand struct {
	DeviceId string
	Command  string
	Payload  string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) SwitchStateTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/state", c.baseTopic(), switchId)
}

func (c *MQTTClient) SwitchCommandTopic(switchId string) string {
	return fmt.Sprintf("%s/%s/%s/command", c.baseTopic(), MQTT_COMMAND_SWITCH, switchId)
}

func (c *MQTTClient) ButtonCommandTopic(buttonId string) string {
	return fmt.Sprintf("%s/%s/%s/command", c.baseTopic(), MQTT_COMMAND_BUTTON, buttonId)
}

// MeasurementTopic carries the full device measurement as JSON.
func (c *MQTTClient) MeasurementTopic() string {
	return fmt.Sprintf("%s/device/measurement", c.baseTopic())
}

func (c *MQTTClient) SessionStateTopic() string {
	return fmt.Sprintf("%s/session/state", c.baseTopic())
}

func (c *MQTTClient) DiscoveryPrefix() string {
	if c.cfg.HADiscoveryTopic == "" {
		return "homeassistant"
	}
	return c.cfg.HADiscoveryTopic
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return c.parseCommand(msg.Topic(), msg.Payload())
}

func (c *MQTTClient) parseCommand(topic string, payload []byte) (*ParsedMQTTCommand, error) {
	matches := c.commandRegexp.FindStringSubmatch(topic)
	if len(matches) != 3 {
		return nil, fmt.Errorf("not a command topic: %s", topic)
	}
	return &ParsedMQTTCommand{
		DeviceId: matches[2],
		Command:  matches[1],
		Payload:  string(payload),
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	await(c.client.Publish(topic, qos, retain, payload), "publish", continuation, timeout)
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	await(c.client.Subscribe(topic, qos, handler), "subscribe", continuation, timeout)
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.commandTopic(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	await(c.client.Unsubscribe(topic), "unsubscribe", continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	await(c.client.Connect(), "connect", continuation, timeout)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

// await hands the outcome of token to continuation from a new goroutine.
func await(token mqtt.Token, op string, continuation func(error), timeout time.Duration) {
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(fmt.Errorf("MQTT %s timed out", op))
			return
		}
		continuation(token.Error())
	}()
}

// commandTopic matches every <base>/<kind>/<id>/command topic and nothing
// the bridge publishes itself.
func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/+/+/command", c.baseTopic())
}

func commandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/(%s|%s)/([a-zA-Z0-9_]+)/command$",
		regexp.QuoteMeta(baseTopic), MQTT_COMMAND_SWITCH, MQTT_COMMAND_BUTTON))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
