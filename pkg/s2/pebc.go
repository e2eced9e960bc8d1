package s2

import "time"

type PEBCPowerEnvelopeLimitType string

const (
	LimitTypeUpper PEBCPowerEnvelopeLimitType = "UPPER_LIMIT"
	LimitTypeLower PEBCPowerEnvelopeLimitType = "LOWER_LIMIT"
)

type PEBCPowerEnvelopeConsequenceType string

const (
	ConsequenceTypeVanish PEBCPowerEnvelopeConsequenceType = "VANISH"
	ConsequenceTypeDefer  PEBCPowerEnvelopeConsequenceType = "DEFER"
)

type PEBCAllowedLimitRange struct {
	CommodityQuantity     CommodityQuantity          `json:"commodity_quantity"`
	LimitType             PEBCPowerEnvelopeLimitType `json:"limit_type"`
	RangeBoundary         NumberRange                `json:"range_boundary"`
	AbnormalConditionOnly bool                       `json:"abnormal_condition_only"`
}

type PEBCPowerConstraints struct {
	Header
	ConstraintsID      ID                               `json:"id"`
	ValidFrom          time.Time                        `json:"valid_from"`
	ValidUntil         *time.Time                       `json:"valid_until,omitempty"`
	ConsequenceType    PEBCPowerEnvelopeConsequenceType `json:"consequence_type"`
	AllowedLimitRanges []PEBCAllowedLimitRange          `json:"allowed_limit_ranges"`
}

func (*PEBCPowerConstraints) Type() MessageType { return TypePEBCPowerConstraints }

type PEBCPowerEnvelopeElement struct {
	Duration   Duration `json:"duration"`
	UpperLimit float64  `json:"upper_limit"`
	LowerLimit float64  `json:"lower_limit"`
}

type PEBCPowerEnvelope struct {
	ID                    ID                         `json:"id"`
	CommodityQuantity     CommodityQuantity          `json:"commodity_quantity"`
	PowerEnvelopeElements []PEBCPowerEnvelopeElement `json:"power_envelope_elements"`
}

type PEBCInstruction struct {
	Header
	InstructionID      ID                  `json:"id"`
	ExecutionTime      time.Time           `json:"execution_time"`
	AbnormalCondition  bool                `json:"abnormal_condition"`
	PowerConstraintsID ID                  `json:"power_constraints_id"`
	PowerEnvelopes     []PEBCPowerEnvelope `json:"power_envelopes"`
}

func (*PEBCInstruction) Type() MessageType { return TypePEBCInstruction }
