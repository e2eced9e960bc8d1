package mqtt

import (
	"testing"

	"github.com/berfenger/s2mockrm/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandParse(t *testing.T) {

	assert := assert.New(t)

	c := &MQTTClient{cfg: config.MQTTConfig{BaseTopic: "lorem_topic"}, commandRegexp: commandExtractor("lorem_topic")}

	cmd, err := c.parseCommand("lorem_topic/switch/my_device/command", []byte("OFF"))
	require.NoError(t, err)
	assert.Equal("my_device", cmd.DeviceId, "device extract")
	assert.Equal(MQTT_COMMAND_SWITCH, cmd.Command)
	assert.Equal("OFF", cmd.Payload)

	cmd, err = c.parseCommand(c.ButtonCommandTopic("forecast"), []byte(MQTT_PAYLOAD_PRESS))
	require.NoError(t, err)
	assert.Equal("forecast", cmd.DeviceId)
	assert.Equal(MQTT_COMMAND_BUTTON, cmd.Command)
}

func TestCommandParseFail(t *testing.T) {

	c := &MQTTClient{cfg: config.MQTTConfig{BaseTopic: "lorem_topic"}, commandRegexp: commandExtractor("lorem_topic")}

	for _, topic := range []string{
		"lorem_topic/switch/my_device/state",
		"lorem_topic/sensor/power/command",
		"other/switch/my_device/command",
		"prefix/lorem_topic/switch/my_device/command",
	} {
		_, err := c.parseCommand(topic, nil)
		assert.Error(t, err, topic)
	}
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	c := &MQTTClient{cfg: config.MQTTConfig{BaseTopic: "s2mockrm"}}
	assert.Equal("homeassistant", c.DiscoveryPrefix(), "default prefix")
	assert.Equal("s2mockrm/device/measurement", c.MeasurementTopic())
	assert.Equal("s2mockrm/+/+/command", c.commandTopic())
	assert.Equal("s2mockrm/switch/session/command", c.SwitchCommandTopic("session"))

	c.cfg.HADiscoveryTopic = "ha"
	assert.Equal("ha", c.DiscoveryPrefix(), "configured prefix")
}
