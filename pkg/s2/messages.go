package s2

import "time"

type MessageType string

const (
	TypeHandshake               MessageType = "Handshake"
	TypeHandshakeResponse       MessageType = "HandshakeResponse"
	TypeResourceManagerDetails  MessageType = "ResourceManagerDetails"
	TypeSelectControlType       MessageType = "SelectControlType"
	TypeSessionRequest          MessageType = "SessionRequest"
	TypeReceptionStatus         MessageType = "ReceptionStatus"
	TypeRevokeObject            MessageType = "RevokeObject"
	TypePowerMeasurement        MessageType = "PowerMeasurement"
	TypePowerForecast           MessageType = "PowerForecast"
	TypeInstructionStatusUpdate MessageType = "InstructionStatusUpdate"
	TypeFRBCSystemDescription   MessageType = "FRBC.SystemDescription"
	TypeFRBCInstruction         MessageType = "FRBC.Instruction"
	TypeFRBCStorageStatus       MessageType = "FRBC.StorageStatus"
	TypeFRBCActuatorStatus      MessageType = "FRBC.ActuatorStatus"
	TypeFRBCLeakageBehaviour    MessageType = "FRBC.LeakageBehaviour"
	TypeFRBCUsageForecast       MessageType = "FRBC.UsageForecast"
	TypePEBCPowerConstraints    MessageType = "PEBC.PowerConstraints"
	TypePEBCInstruction         MessageType = "PEBC.Instruction"
)

// ProtocolVersion is the S2 JSON schema version spoken by this package.
const ProtocolVersion = "0.0.2-beta"

// Message is implemented by every S2 message struct.
type Message interface {
	Type() MessageType
	// ID returns the message id. ReceptionStatus has none and returns "".
	ID() ID
}

// Header carries the message id shared by all messages except ReceptionStatus.
type Header struct {
	MessageID ID `json:"message_id"`
}

func NewHeader() Header {
	return Header{MessageID: NewID()}
}

func (h Header) ID() ID {
	return h.MessageID
}

type Handshake struct {
	Header
	Role                      EnergyManagementRole `json:"role"`
	SupportedProtocolVersions []string             `json:"supported_protocol_versions,omitempty"`
}

func (*Handshake) Type() MessageType { return TypeHandshake }

type HandshakeResponse struct {
	Header
	SelectedProtocolVersion string `json:"selected_protocol_version"`
}

func (*HandshakeResponse) Type() MessageType { return TypeHandshakeResponse }

type ResourceManagerDetails struct {
	Header
	ResourceID                    ID                  `json:"resource_id"`
	Name                          *string             `json:"name,omitempty"`
	Roles                         []Role              `json:"roles"`
	Manufacturer                  *string             `json:"manufacturer,omitempty"`
	Model                         *string             `json:"model,omitempty"`
	SerialNumber                  *string             `json:"serial_number,omitempty"`
	FirmwareVersion               *string             `json:"firmware_version,omitempty"`
	InstructionProcessingDelay    Duration            `json:"instruction_processing_delay"`
	AvailableControlTypes         []ControlType       `json:"available_control_types"`
	Currency                      *string             `json:"currency,omitempty"`
	ProvidesForecast              bool                `json:"provides_forecast"`
	ProvidesPowerMeasurementTypes []CommodityQuantity `json:"provides_power_measurement_types"`
}

func (*ResourceManagerDetails) Type() MessageType { return TypeResourceManagerDetails }

type SelectControlType struct {
	Header
	ControlType ControlType `json:"control_type"`
}

func (*SelectControlType) Type() MessageType { return TypeSelectControlType }

type SessionRequest struct {
	Header
	Request         SessionRequestType `json:"request"`
	DiagnosticLabel *string            `json:"diagnostic_label,omitempty"`
}

func (*SessionRequest) Type() MessageType { return TypeSessionRequest }

type ReceptionStatus struct {
	SubjectMessageID ID                   `json:"subject_message_id"`
	Status           ReceptionStatusValue `json:"status"`
	DiagnosticLabel  *string              `json:"diagnostic_label,omitempty"`
}

func (*ReceptionStatus) Type() MessageType { return TypeReceptionStatus }
func (*ReceptionStatus) ID() ID { return "" }

type RevokeObject struct {
	Header
	ObjectType RevokableObjectType `json:"object_type"`
	ObjectID   ID                  `json:"object_id"`
}

func (*RevokeObject) Type() MessageType { return TypeRevokeObject }

type PowerMeasurement struct {
	Header
	MeasurementTimestamp time.Time    `json:"measurement_timestamp"`
	Values               []PowerValue `json:"values"`
}

func (*PowerMeasurement) Type() MessageType { return TypePowerMeasurement }

type PowerForecast struct {
	Header
	StartTime time.Time              `json:"start_time"`
	Elements  []PowerForecastElement `json:"elements"`
}

func (*PowerForecast) Type() MessageType { return TypePowerForecast }

type InstructionStatusUpdate struct {
	Header
	InstructionID ID                `json:"instruction_id"`
	StatusType    InstructionStatus `json:"status_type"`
	Timestamp     time.Time         `json:"timestamp"`
}

func (*InstructionStatusUpdate) Type() MessageType { return TypeInstructionStatusUpdate }
