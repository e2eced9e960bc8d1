package util

import (
	"github.com/berfenger/s2mockrm/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel:              zap.DebugLevel,
		CEMURL:                "ws://localhost:8765/s2",
		ControlType:           "FRBC",
		ReconnectDelaySeconds: 1,
		Device: config.DeviceConfig{
			ResourceID:   "test-rm",
			Name:         "Test RM",
			Manufacturer: "ACME, Inc.",
			Model:        "Model X",
			SerialNumber: "111-222-333",
		},
		Simulation: config.SimulationConfig{
			Start:               "2030-01-01T12:00:00Z",
			InitialFillLevel:    0.5,
			BatteryCapacityWh:   20000,
			BatteryMaxPowerWatt: 5000,
			BatteryLeakageWatt:  0.5,
			DwellSeconds:        300,
			PeakPowerWatt:       2000,
		},
		MeasurementIntervalMillis:        3600000,
		ForecastIntervalSeconds:          3600,
		InstructionProcessingDelayMillis: 10,
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "s2mockrm",
		},
		Modbus: config.ModbusConfig{
			URL:    "tcp://127.0.0.1:15502",
			UnitId: 1,
		},
		Port: 8080,
	}
}
