package domain

import (
	"fmt"
	"time"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type SwitchSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// Session events, published on the event stream by the session actor.

type MeasurementEvent struct {
	Measurement Measurement
}

type SessionStateEvent struct {
	State    string
	Previous string
	At       time.Time
}

type FrameDirection string

const (
	FrameInbound  FrameDirection = "in"
	FrameOutbound FrameDirection = "out"
)

// FrameEvent carries a raw S2 frame as seen on the wire.
type FrameEvent struct {
	Direction FrameDirection
	Data      []byte
	At        time.Time
}
