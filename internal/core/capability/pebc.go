package capability

import (
	"time"

	"github.com/berfenger/s2mockrm/pkg/s2"
)

// PEBCConfig describes the envelope limits a CEM may set, in the S2 sign
// convention (consumption positive, production negative).
type PEBCConfig struct {
	ConstraintsID     s2.ID
	CommodityQuantity s2.CommodityQuantity
	UpperLimitRange   Range
	LowerLimitRange   Range
	ConsequenceType   s2.PEBCPowerEnvelopeConsequenceType
}

type PEBCModel struct {
	cfg PEBCConfig
}

func NewPEBCModel(cfg PEBCConfig) (*PEBCModel, error) {
	const name = "PEBC"
	if cfg.ConstraintsID == "" {
		return nil, capabilityError(name, "power constraints id is empty")
	}
	if cfg.CommodityQuantity == "" {
		return nil, capabilityError(name, "commodity quantity is empty")
	}
	switch cfg.ConsequenceType {
	case s2.ConsequenceTypeVanish, s2.ConsequenceTypeDefer:
	default:
		return nil, capabilityError(name, "unknown consequence type %q", cfg.ConsequenceType)
	}
	if cfg.LowerLimitRange.Min() > cfg.UpperLimitRange.Max() {
		return nil, capabilityError(name, "lower limit range lies above the upper limit range")
	}
	return &PEBCModel{cfg: cfg}, nil
}

func (m *PEBCModel) ConstraintsID() s2.ID {
	return m.cfg.ConstraintsID
}

func (m *PEBCModel) CommodityQuantity() s2.CommodityQuantity {
	return m.cfg.CommodityQuantity
}

// AllowedRange returns the range an envelope limit of the given type must
// fall in.
func (m *PEBCModel) AllowedRange(limitType s2.PEBCPowerEnvelopeLimitType) (Range, bool) {
	switch limitType {
	case s2.LimitTypeUpper:
		return m.cfg.UpperLimitRange, true
	case s2.LimitTypeLower:
		return m.cfg.LowerLimitRange, true
	}
	return Range{}, false
}

func (m *PEBCModel) PowerConstraints(validFrom time.Time) *s2.PEBCPowerConstraints {
	return &s2.PEBCPowerConstraints{
		Header:          s2.NewHeader(),
		ConstraintsID:   m.cfg.ConstraintsID,
		ValidFrom:       validFrom,
		ConsequenceType: m.cfg.ConsequenceType,
		AllowedLimitRanges: []s2.PEBCAllowedLimitRange{
			{
				CommodityQuantity: m.cfg.CommodityQuantity,
				LimitType:         s2.LimitTypeUpper,
				RangeBoundary:     m.cfg.UpperLimitRange.S2(),
			},
			{
				CommodityQuantity: m.cfg.CommodityQuantity,
				LimitType:         s2.LimitTypeLower,
				RangeBoundary:     m.cfg.LowerLimitRange.S2(),
			},
		},
	}
}
