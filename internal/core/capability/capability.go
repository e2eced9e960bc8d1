package capability

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/berfenger/s2mockrm/pkg/s2"
)

var (
	ErrUnknownMode        = errors.New("unknown operation mode")
	ErrFillRateOutOfRange = errors.New("fill rate out of range")
	ErrFactorOutOfRange   = errors.New("operation mode factor out of range")
)

// CapabilityError reports an internally inconsistent capability model. It is
// only produced at construction and is fatal at startup.
type CapabilityError struct {
	Model  string
	Detail string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s: %s", e.Model, e.Detail)
}

func capabilityError(model string, format string, args ...any) error {
	return &CapabilityError{Model: model, Detail: fmt.Sprintf(format, args...)}
}

// ControlType is the closed set of control types a device adapter can offer.
type ControlType int

const (
	ControlTypeFRBC ControlType = iota + 1
	ControlTypePEBC
	ControlTypeNotControllable
)

func (c ControlType) String() string {
	switch c {
	case ControlTypeFRBC:
		return "FRBC"
	case ControlTypePEBC:
		return "PEBC"
	case ControlTypeNotControllable:
		return "NOT_CONTROLABLE"
	default:
		return fmt.Sprintf("ControlType(%d)", int(c))
	}
}

// S2 returns the wire name of the control type.
func (c ControlType) S2() s2.ControlType {
	switch c {
	case ControlTypeFRBC:
		return s2.ControlTypeFRBC
	case ControlTypePEBC:
		return s2.ControlTypePEBC
	default:
		return s2.ControlTypeNotControlable
	}
}

// ParseControlType accepts the short names (FRBC, PEBC, NOT_CONTROLABLE) and
// the S2 wire names, case-insensitively.
func ParseControlType(value string) (ControlType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "FRBC", string(s2.ControlTypeFRBC):
		return ControlTypeFRBC, nil
	case "PEBC", string(s2.ControlTypePEBC):
		return ControlTypePEBC, nil
	case "NOT_CONTROLABLE", "NOT_CONTROLLABLE", "NOT-CONTROLLABLE", "NOT-CONTROLABLE":
		return ControlTypeNotControllable, nil
	}
	return 0, fmt.Errorf("unsupported control type %q", value)
}

// Model is the capability model of a device. Exactly one of FRBC and PEBC is
// set for those control types; both are nil for NOT_CONTROLABLE.
type Model struct {
	Type ControlType
	FRBC *FRBCModel
	PEBC *PEBCModel
}

func FRBC(m *FRBCModel) Model {
	return Model{Type: ControlTypeFRBC, FRBC: m}
}

func PEBC(m *PEBCModel) Model {
	return Model{Type: ControlTypePEBC, PEBC: m}
}

func NotControllable() Model {
	return Model{Type: ControlTypeNotControllable}
}

func (m Model) Controllable() bool {
	return m.FRBC != nil || m.PEBC != nil
}

const rangeEpsilon = 1e-9

// Range is a closed numeric interval. Start and End keep the orientation they
// were declared with; Min and Max give the bounds.
type Range struct {
	Start float64
	End   float64
}

func (r Range) Min() float64 {
	return math.Min(r.Start, r.End)
}

func (r Range) Max() float64 {
	return math.Max(r.Start, r.End)
}

func (r Range) Contains(v float64) bool {
	tolerance := rangeEpsilon * math.Max(1, math.Max(math.Abs(r.Start), math.Abs(r.End)))
	return v >= r.Min()-tolerance && v <= r.Max()+tolerance
}

func (r Range) ContainsRange(other Range) bool {
	return r.Contains(other.Min()) && r.Contains(other.Max())
}

// At interpolates linearly: At(0) is Start, At(1) is End.
func (r Range) At(f float64) float64 {
	return r.Start + f*(r.End-r.Start)
}

func (r Range) Degenerate() bool {
	return r.Start == r.End
}

func (r Range) S2() s2.NumberRange {
	return s2.NumberRange{StartOfRange: r.Start, EndOfRange: r.End}
}
