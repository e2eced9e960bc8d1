package s2

import (
	"time"

	"github.com/google/uuid"
)

// ID is an S2 identifier (message ids, object ids).
type ID string

// NewID returns a fresh identifier. Version 7 UUIDs are time ordered, so ids
// generated by one process increase monotonically.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return ID(uuid.NewString())
	}
	return ID(id.String())
}

// Duration is an S2 duration in milliseconds.
type Duration int64

func DurationOf(d time.Duration) Duration {
	return Duration(d.Milliseconds())
}

func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Millisecond
}

type EnergyManagementRole string

const (
	RoleCEM EnergyManagementRole = "CEM"
	RoleRM  EnergyManagementRole = "RM"
)

type ControlType string

const (
	ControlTypePEBC           ControlType = "POWER_ENVELOPE_BASED_CONTROL"
	ControlTypePPBC           ControlType = "POWER_PROFILE_BASED_CONTROL"
	ControlTypeOMBC           ControlType = "OPERATION_MODE_BASED_CONTROL"
	ControlTypeFRBC           ControlType = "FILL_RATE_BASED_CONTROL"
	ControlTypeDDBC           ControlType = "DEMAND_DRIVEN_BASED_CONTROL"
	ControlTypeNotControlable ControlType = "NOT_CONTROLABLE"
	ControlTypeNoSelection    ControlType = "NO_SELECTION"
)

type Commodity string

const (
	CommodityGas         Commodity = "GAS"
	CommodityHeat        Commodity = "HEAT"
	CommodityElectricity Commodity = "ELECTRICITY"
	CommodityOil         Commodity = "OIL"
)

type CommodityQuantity string

const (
	CommodityQuantityElectricPowerL1         CommodityQuantity = "ELECTRIC.POWER.L1"
	CommodityQuantityElectricPowerL2         CommodityQuantity = "ELECTRIC.POWER.L2"
	CommodityQuantityElectricPowerL3         CommodityQuantity = "ELECTRIC.POWER.L3"
	CommodityQuantityElectricPower3PhaseSymm CommodityQuantity = "ELECTRIC.POWER.3_PHASE_SYMMETRIC"
	CommodityQuantityHeatThermalPower        CommodityQuantity = "HEAT.THERMAL.POWER"
)

type RoleType string

const (
	RoleTypeEnergyProducer RoleType = "ENERGY_PRODUCER"
	RoleTypeEnergyConsumer RoleType = "ENERGY_CONSUMER"
	RoleTypeEnergyStorage  RoleType = "ENERGY_STORAGE"
)

type ReceptionStatusValue string

const (
	StatusOK             ReceptionStatusValue = "OK"
	StatusInvalidData    ReceptionStatusValue = "INVALID_DATA"
	StatusInvalidMessage ReceptionStatusValue = "INVALID_MESSAGE"
	StatusInvalidContent ReceptionStatusValue = "INVALID_CONTENT"
	StatusTemporaryError ReceptionStatusValue = "TEMPORARY_ERROR"
	StatusPermanentError ReceptionStatusValue = "PERMANENT_ERROR"
)

type InstructionStatus string

const (
	InstructionStatusNew       InstructionStatus = "NEW"
	InstructionStatusAccepted  InstructionStatus = "ACCEPTED"
	InstructionStatusRejected  InstructionStatus = "REJECTED"
	InstructionStatusRevoked   InstructionStatus = "REVOKED"
	InstructionStatusStarted   InstructionStatus = "STARTED"
	InstructionStatusSucceeded InstructionStatus = "SUCCEEDED"
	InstructionStatusAborted   InstructionStatus = "ABORTED"
)

type SessionRequestType string

const (
	SessionRequestReconnect SessionRequestType = "RECONNECT"
	SessionRequestTerminate SessionRequestType = "TERMINATE"
)

type RevokableObjectType string

const (
	RevokablePEBCPowerConstraints  RevokableObjectType = "PEBC.PowerConstraints"
	RevokablePEBCEnergyConstraint  RevokableObjectType = "PEBC.EnergyConstraint"
	RevokablePEBCInstruction       RevokableObjectType = "PEBC.Instruction"
	RevokableFRBCSystemDescription RevokableObjectType = "FRBC.SystemDescription"
	RevokableFRBCInstruction       RevokableObjectType = "FRBC.Instruction"
)

type NumberRange struct {
	StartOfRange float64 `json:"start_of_range"`
	EndOfRange   float64 `json:"end_of_range"`
}

type PowerRange struct {
	StartOfRange      float64           `json:"start_of_range"`
	EndOfRange        float64           `json:"end_of_range"`
	CommodityQuantity CommodityQuantity `json:"commodity_quantity"`
}

type PowerValue struct {
	CommodityQuantity CommodityQuantity `json:"commodity_quantity"`
	Value             float64           `json:"value"`
}

type PowerForecastValue struct {
	ValueUpperLimit   *float64          `json:"value_upper_limit,omitempty"`
	ValueUpper95PPR   *float64          `json:"value_upper_95PPR,omitempty"`
	ValueUpper68PPR   *float64          `json:"value_upper_68PPR,omitempty"`
	ValueExpected     float64           `json:"value_expected"`
	ValueLower68PPR   *float64          `json:"value_lower_68PPR,omitempty"`
	ValueLower95PPR   *float64          `json:"value_lower_95PPR,omitempty"`
	ValueLowerLimit   *float64          `json:"value_lower_limit,omitempty"`
	CommodityQuantity CommodityQuantity `json:"commodity_quantity"`
}

type PowerForecastElement struct {
	Duration    Duration             `json:"duration"`
	PowerValues []PowerForecastValue `json:"power_values"`
}

type Role struct {
	Role      RoleType  `json:"role"`
	Commodity Commodity `json:"commodity"`
}

type Timer struct {
	ID              ID       `json:"id"`
	DiagnosticLabel *string  `json:"diagnostic_label,omitempty"`
	Duration        Duration `json:"duration"`
}

type Transition struct {
	ID                    ID        `json:"id"`
	From                  ID        `json:"from"`
	To                    ID        `json:"to"`
	StartTimers           []ID      `json:"start_timers"`
	BlockingTimers        []ID      `json:"blocking_timers"`
	TransitionCosts       *float64  `json:"transition_costs,omitempty"`
	TransitionDuration    *Duration `json:"transition_duration,omitempty"`
	AbnormalConditionOnly bool      `json:"abnormal_condition_only"`
}

// Ptr is a helper for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
