package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	// WebSocket URL of the CEM the RM dials.
	CEMURL                string           `mapstructure:"cem_url"`
	ControlType           string           `mapstructure:"control_type"`
	ReconnectDelaySeconds uint32           `mapstructure:"reconnect_delay_seconds"`
	Device                DeviceConfig     `mapstructure:"device"`
	Simulation            SimulationConfig `mapstructure:"simulation"`

	MeasurementIntervalMillis        uint32 `mapstructure:"measurement_interval_millis"`
	ForecastIntervalSeconds          uint32 `mapstructure:"forecast_interval_seconds"`
	InstructionProcessingDelayMillis uint32 `mapstructure:"instruction_processing_delay_millis"`

	MQTT    MQTTConfig   `mapstructure:"mqtt"`
	Modbus  ModbusConfig `mapstructure:"modbus"`
	Trace   TraceConfig  `mapstructure:"trace"`
	Port    uint         `mapstructure:"port"`
	HttpLog bool         `mapstructure:"http_log"`
}

type DeviceConfig struct {
	ResourceID   string `mapstructure:"resource_id"`
	Name         string
	Manufacturer string
	Model        string
	SerialNumber string `mapstructure:"serial_number"`
}

type SimulationConfig struct {
	// RFC3339 instant the simulated timeline starts at.
	Start               string
	InitialFillLevel    float64 `mapstructure:"initial_fill_level"`
	BatteryCapacityWh   float64 `mapstructure:"battery_capacity_wh"`
	BatteryMaxPowerWatt float64 `mapstructure:"battery_max_power_watt"`
	BatteryLeakageWatt  float64 `mapstructure:"battery_leakage_watt"`
	DwellSeconds        uint32  `mapstructure:"dwell_seconds"`
	PeakPowerWatt       float64 `mapstructure:"peak_power_watt"`
	// Optional CSV profile replacing the embedded one.
	ProfileFile string `mapstructure:"profile_file"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type ModbusConfig struct {
	Enable bool
	// Listen URL, e.g. tcp://0.0.0.0:5502
	URL    string
	UnitId uint8 `mapstructure:"unit_id"`
}

type TraceConfig struct {
	// CBOR trace of every S2 frame. Empty disables tracing.
	File string
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// CheckCEMURL accepts ws:// and wss:// URLs only.
func CheckCEMURL(url string) error {
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return errors.New("cem_url must be a ws:// or wss:// URL")
	}
	return nil
}
