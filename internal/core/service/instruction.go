package service

import (
	"fmt"
	"time"

	"github.com/berfenger/s2mockrm/pkg/s2"
)

type RejectReason string

const (
	RejectExecutionTimeInPast      RejectReason = "EXECUTION_TIME_IN_PAST"
	RejectUnknownOperationMode     RejectReason = "UNKNOWN_OPERATION_MODE"
	RejectUnknownActuator          RejectReason = "UNKNOWN_ACTUATOR"
	RejectUnknownPowerConstraints  RejectReason = "UNKNOWN_POWER_CONSTRAINTS"
	RejectUnknownCommodityQuantity RejectReason = "UNKNOWN_COMMODITY_QUANTITY"
	RejectNoTransition             RejectReason = "NO_TRANSITION"
	RejectFactorOutOfRange         RejectReason = "FACTOR_OUT_OF_RANGE"
	RejectAbnormalConditionOnly    RejectReason = "ABNORMAL_CONDITION_ONLY"
	RejectTimerBlocked             RejectReason = "TIMER_BLOCKED"
	RejectEnvelopeOutOfRange       RejectReason = "ENVELOPE_OUT_OF_RANGE"
	RejectInvalidEnvelope          RejectReason = "INVALID_ENVELOPE"
	RejectControlTypeMismatch      RejectReason = "CONTROL_TYPE_MISMATCH"
	RejectSessionTerminating       RejectReason = "SESSION_TERMINATING"
)

// ValidationError is returned for an instruction that cannot be accepted.
// It never changes scheduler state.
type ValidationError struct {
	Reason RejectReason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func reject(reason RejectReason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

type FRBCTarget struct {
	ActuatorID s2.ID
	ModeID     s2.ID
	Factor     float64
}

// EnvelopeElement is one element of a PEBC power envelope, in the S2 sign
// convention.
type EnvelopeElement struct {
	Duration time.Duration
	Lower    float64
	Upper    float64
}

type PEBCTarget struct {
	ConstraintsID     s2.ID
	EnvelopeID        s2.ID
	CommodityQuantity s2.CommodityQuantity
	Elements          []EnvelopeElement
	EnvelopeCount     int
}

// Instruction is a CEM instruction. Exactly one of FRBC and PEBC is set.
type Instruction struct {
	ID                s2.ID
	MessageID         s2.ID
	ExecutionTime     time.Time
	IssuedAt          time.Time
	AbnormalCondition bool
	FRBC              *FRBCTarget
	PEBC              *PEBCTarget
}

func FromFRBC(msg *s2.FRBCInstruction, now time.Time) Instruction {
	return Instruction{
		ID:                msg.InstructionID,
		MessageID:         msg.MessageID,
		ExecutionTime:     msg.ExecutionTime,
		IssuedAt:          now,
		AbnormalCondition: msg.AbnormalCondition,
		FRBC: &FRBCTarget{
			ActuatorID: msg.ActuatorID,
			ModeID:     msg.OperationMode,
			Factor:     msg.OperationModeFactor,
		},
	}
}

// FromPEBC converts a PEBC instruction. The modelled devices expose a single
// commodity quantity, so only the first power envelope is kept.
func FromPEBC(msg *s2.PEBCInstruction, now time.Time) Instruction {
	target := &PEBCTarget{ConstraintsID: msg.PowerConstraintsID, EnvelopeCount: len(msg.PowerEnvelopes)}
	if len(msg.PowerEnvelopes) > 0 {
		env := msg.PowerEnvelopes[0]
		target.EnvelopeID = env.ID
		target.CommodityQuantity = env.CommodityQuantity
		for _, el := range env.PowerEnvelopeElements {
			target.Elements = append(target.Elements, EnvelopeElement{
				Duration: el.Duration.Std(),
				Lower:    el.LowerLimit,
				Upper:    el.UpperLimit,
			})
		}
	}
	return Instruction{
		ID:                msg.InstructionID,
		MessageID:         msg.MessageID,
		ExecutionTime:     msg.ExecutionTime,
		IssuedAt:          now,
		AbnormalCondition: msg.AbnormalCondition,
		PEBC:              target,
	}
}
