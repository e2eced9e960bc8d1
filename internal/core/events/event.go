package events

import (
	. "github.com/berfenger/s2mockrm/internal/core/domain"
)

// SessionStateOperational is the session state in which the session switch
// reads as on.
const SessionStateOperational = "operational"

func MeasurementToUpdateEvents(m *Measurement) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONTROL_TYPE,
		},
		Value: m.ControlType,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_POWER,
		},
		Value:    m.PowerW,
		Decimals: 2,
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_ACTIVE_REF,
		},
		Value: m.ActiveRef,
	})

	if m.FillLevel != nil {
		// Battery fill level, as a percentage
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_FILL_LEVEL,
			},
			Value:    *m.FillLevel * 100,
			Decimals: 2,
		})
		events = append(events, BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_CLAMPED,
			},
			Value: m.Clamped,
		})
	}
	if m.StoredEnergyWh != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_ENERGY,
			},
			Value:    *m.StoredEnergyWh / 1000,
			Decimals: 3,
		})
	}
	if m.AvailableW != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_PV_AVAILABLE_POWER,
			},
			Value:    *m.AvailableW,
			Decimals: 2,
		})
		events = append(events, BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_PV_CURTAILED,
			},
			Value: m.Curtailed,
		})
	}

	return events
}

func SessionStateToUpdateEvents(ev *SessionStateEvent) []any {
	var events []any
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SESSION_STATE,
		},
		Value: ev.State,
	})
	events = append(events, SessionSwitchUpdateEvent(ev.State == SessionStateOperational))
	return events
}

func SessionSwitchUpdateEvent(on bool) any {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_SESSION,
		},
		Value: on,
	}
}
