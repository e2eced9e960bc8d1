package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/berfenger/s2mockrm/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	SENSOR_ID_SESSION_STATE      = "session_state"
	SENSOR_ID_CONTROL_TYPE       = "control_type"
	SENSOR_ID_POWER              = "power"
	SENSOR_ID_ACTIVE_REF         = "active_ref"
	SENSOR_ID_BATTERY_FILL_LEVEL = "battery_fill_level"
	SENSOR_ID_BATTERY_ENERGY     = "battery_stored_energy"
	SENSOR_ID_BATTERY_CLAMPED    = "battery_clamped"
	SENSOR_ID_PV_AVAILABLE_POWER = "pv_available_power"
	SENSOR_ID_PV_CURTAILED       = "pv_curtailed"
	SWITCH_ID_SESSION            = "session"
	BUTTON_ID_FORECAST           = "forecast"
	STATE_CLASS_MEASUREMENT      = "measurement"
	DEVICE_CLASS_BATTERY         = "battery"
	DEVICE_CLASS_ENERGY_STORAGE  = "energy_storage"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	DEVICE_CLASS_PROBLEM         = "problem"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	ENTITY_CLASS_CONFIG          = "config"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("s2mockrm_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "S2 mock RM",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("S2 mock RM %s", md5HashShort(baseTopic)),
	}
}

// ResourceDevice is the simulated device behind the RM.
func ResourceDevice(resourceId, manufacturer, model, firmware string, bridge Device) Device {
	return Device{
		Id:           fmt.Sprintf("s2rm_%s", md5HashShort(resourceId)),
		Version:      firmware,
		Manufacturer: manufacturer,
		Model:        model,
		Name:         fmt.Sprintf("%s %s %s", manufacturer, model, md5HashShort(resourceId)),
		ViaDevice:    bridge.Id,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	// S2 session state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_SESSION_STATE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "S2 session state",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:lan-connect",
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_SESSION_STATE),
	})

	return sensors
}

// ResourceSensors are the sensors every simulated device reports.
func ResourceSensors(dev Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         dev,
		Id:             SENSOR_ID_CONTROL_TYPE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Control type",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(dev.Id, SENSOR_ID_CONTROL_TYPE),
	})

	// Power, consumption positive
	sensors = append(sensors, GenericSensor{
		Device:            dev,
		Id:                SENSOR_ID_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(dev.Id, SENSOR_ID_POWER),
	})

	// Operation mode or envelope in force
	sensors = append(sensors, GenericSensor{
		Device:     dev,
		Id:         SENSOR_ID_ACTIVE_REF,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Active operation",
		Icon:       "mdi:state-machine",
		UniqueId:   uniqueId(dev.Id, SENSOR_ID_ACTIVE_REF),
	})

	return sensors
}

func BatterySensors(dev Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:            dev,
		Id:                SENSOR_ID_BATTERY_FILL_LEVEL,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery fill level",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(dev.Id, SENSOR_ID_BATTERY_FILL_LEVEL),
	})

	sensors = append(sensors, GenericSensor{
		Device:            dev,
		Id:                SENSOR_ID_BATTERY_ENERGY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery stored energy",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY_STORAGE,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(dev.Id, SENSOR_ID_BATTERY_ENERGY),
	})

	sensors = append(sensors, GenericSensor{
		Device:           dev,
		Id:               SENSOR_ID_BATTERY_CLAMPED,
		SensorType:       SENSOR_TYPE_BINARY,
		Name:             "Battery at limit",
		DeviceClass:      DEVICE_CLASS_PROBLEM,
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(dev.Id, SENSOR_ID_BATTERY_CLAMPED),
	})

	return sensors
}

func PVSensors(dev Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:            dev,
		Id:                SENSOR_ID_PV_AVAILABLE_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "PV available power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(dev.Id, SENSOR_ID_PV_AVAILABLE_POWER),
	})

	sensors = append(sensors, GenericSensor{
		Device:      dev,
		Id:          SENSOR_ID_PV_CURTAILED,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "PV curtailed",
		DeviceClass: DEVICE_CLASS_PROBLEM,
		UniqueId:    uniqueId(dev.Id, SENSOR_ID_PV_CURTAILED),
	})

	return sensors
}

func SessionSwitches(bridgeDevice Device) []GenericSwitch {

	var switches []GenericSwitch

	// off terminates the session, the transport reconnects afterwards
	switches = append(switches, GenericSwitch{
		Device:   bridgeDevice,
		Id:       SWITCH_ID_SESSION,
		Name:     "S2 session",
		UniqueId: uniqueId(bridgeDevice.Id, SWITCH_ID_SESSION),
		Icon:     "mdi:connection",
	})

	return switches
}

func SessionButtons(bridgeDevice Device) []GenericButton {
	return []GenericButton{{
		Device:         bridgeDevice,
		Id:             BUTTON_ID_FORECAST,
		Name:           "Send forecast",
		UniqueId:       uniqueId(bridgeDevice.Id, BUTTON_ID_FORECAST),
		Icon:           "mdi:weather-partly-cloudy",
		EntityCategory: ENTITY_CLASS_CONFIG,
	}}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
