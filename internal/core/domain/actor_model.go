package domain

import (
	"time"

	"github.com/berfenger/s2mockrm/pkg/s2"
)

const (
	ACTOR_ID_MASTER    = "master"
	ACTOR_ID_TRANSPORT = "transport"
	ACTOR_ID_SESSION   = "session"
	ACTOR_ID_MQTT      = "mqtt"
	ACTOR_ID_MODBUS    = "modbus"
	ACTOR_ID_TRACE     = "trace"

	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// Transport <-> session

type TransportConnected struct {
	RemoteURL string
}

type TransportClosed struct {
	Error error
}

type InboundFrame struct {
	Data       []byte
	ReceivedAt time.Time
}

type SendFrameRequest struct {
	ActorRequestMixIn
	Data []byte
}

type SendFrameResponse struct {
	ActorResponseMixIn
}

// CloseTransportRequest closes the current connection. With Reconnect the
// transport dials the CEM again after its reconnect delay.
type CloseTransportRequest struct {
	Reconnect bool
}

// Session queries

type SessionSnapshot struct {
	State              string               `json:"state"`
	SessionID          string               `json:"session_id,omitempty"`
	ControlType        string               `json:"control_type"`
	SelectedVersion    string               `json:"selected_protocol_version,omitempty"`
	ConnectedAt        *time.Time           `json:"connected_at,omitempty"`
	LastSeen           *time.Time           `json:"last_seen,omitempty"`
	PendingInstruction string               `json:"pending_instruction,omitempty"`
	Device             *Measurement         `json:"device,omitempty"`
	// timer id => end of its blocking period, FRBC only
	TimersBlockedUntil map[string]time.Time `json:"timers_blocked_until,omitempty"`
}

type GetSessionStateRequest struct {
	ActorRequestMixIn
}

type GetSessionStateResponse struct {
	ActorResponseMixIn
	Snapshot SessionSnapshot
}

type GetCapabilitiesRequest struct {
	ActorRequestMixIn
}

type GetCapabilitiesResponse struct {
	ActorResponseMixIn
	Details  *s2.ResourceManagerDetails
	Messages []s2.Message
}

// MQTT

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
	Buttons  []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Trace

type FlushTraceRequest struct {
	ActorRequestMixIn
}

type FlushTraceResponse struct {
	ActorResponseMixIn
	Frames int
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
