package capability

import (
	"fmt"
	"time"

	"github.com/berfenger/s2mockrm/pkg/s2"
)

// OperationMode is one FRBC operation mode. FillRate and Power are aligned:
// a fill rate at fraction f of FillRate draws Power.At(f). Fill rates are
// expressed as fill level fraction per second.
type OperationMode struct {
	ID                    s2.ID
	Label                 string
	FillLevel             Range
	FillRate              Range
	Power                 Range
	AbnormalConditionOnly bool
}

type Timer struct {
	ID       s2.ID
	Label    string
	Duration time.Duration
}

type Transition struct {
	ID                    s2.ID
	From                  s2.ID
	To                    s2.ID
	StartTimers           []s2.ID
	BlockingTimers        []s2.ID
	AbnormalConditionOnly bool
}

type FRBCConfig struct {
	ActuatorID        s2.ID
	ActuatorLabel     string
	Modes             []OperationMode
	Transitions       []Transition
	Timers            []Timer
	StorageLabel      string
	FillLevelLabel    string
	FillLevel         Range
	LeakageRate       float64
	CommodityQuantity s2.CommodityQuantity
}

// FRBCModel is an immutable fill-rate-based capability model with a single
// actuator.
type FRBCModel struct {
	cfg         FRBCConfig
	modes       map[s2.ID]OperationMode
	timers      map[s2.ID]Timer
	transitions map[[2]s2.ID]Transition
}

// NewFRBCModel validates cfg and builds the model. Any dangling reference is
// returned as a *CapabilityError.
func NewFRBCModel(cfg FRBCConfig) (*FRBCModel, error) {
	const name = "FRBC"
	if cfg.ActuatorID == "" {
		return nil, capabilityError(name, "actuator id is empty")
	}
	if len(cfg.Modes) == 0 {
		return nil, capabilityError(name, "no operation modes")
	}
	if cfg.CommodityQuantity == "" {
		return nil, capabilityError(name, "commodity quantity is empty")
	}
	m := &FRBCModel{
		cfg:         cfg,
		modes:       make(map[s2.ID]OperationMode, len(cfg.Modes)),
		timers:      make(map[s2.ID]Timer, len(cfg.Timers)),
		transitions: make(map[[2]s2.ID]Transition, len(cfg.Transitions)),
	}
	for _, mode := range cfg.Modes {
		if _, dup := m.modes[mode.ID]; dup || mode.ID == "" {
			return nil, capabilityError(name, "invalid or duplicate operation mode id %q", mode.ID)
		}
		if !cfg.FillLevel.ContainsRange(mode.FillLevel) {
			return nil, capabilityError(name, "mode %s fill level range outside storage range", mode.ID)
		}
		m.modes[mode.ID] = mode
	}
	for _, timer := range cfg.Timers {
		if _, dup := m.timers[timer.ID]; dup || timer.ID == "" {
			return nil, capabilityError(name, "invalid or duplicate timer id %q", timer.ID)
		}
		if timer.Duration < 0 {
			return nil, capabilityError(name, "timer %s has a negative duration", timer.ID)
		}
		m.timers[timer.ID] = timer
	}
	for _, tr := range cfg.Transitions {
		if _, ok := m.modes[tr.From]; !ok {
			return nil, capabilityError(name, "transition %s references unknown mode %q", tr.ID, tr.From)
		}
		if _, ok := m.modes[tr.To]; !ok {
			return nil, capabilityError(name, "transition %s references unknown mode %q", tr.ID, tr.To)
		}
		for _, id := range append(append([]s2.ID{}, tr.StartTimers...), tr.BlockingTimers...) {
			if _, ok := m.timers[id]; !ok {
				return nil, capabilityError(name, "transition %s references unknown timer %q", tr.ID, id)
			}
		}
		key := [2]s2.ID{tr.From, tr.To}
		if _, dup := m.transitions[key]; dup {
			return nil, capabilityError(name, "duplicate transition %s -> %s", tr.From, tr.To)
		}
		m.transitions[key] = tr
	}
	return m, nil
}

func (m *FRBCModel) ActuatorID() s2.ID {
	return m.cfg.ActuatorID
}

func (m *FRBCModel) CommodityQuantity() s2.CommodityQuantity {
	return m.cfg.CommodityQuantity
}

func (m *FRBCModel) FillLevel() Range {
	return m.cfg.FillLevel
}

// LeakageRate is the fill level fraction lost per second.
func (m *FRBCModel) LeakageRate() float64 {
	return m.cfg.LeakageRate
}

// Modes returns the operation modes in declaration order.
func (m *FRBCModel) Modes() []OperationMode {
	return append([]OperationMode(nil), m.cfg.Modes...)
}

func (m *FRBCModel) ModeByID(id s2.ID) (OperationMode, error) {
	mode, ok := m.modes[id]
	if !ok {
		return OperationMode{}, fmt.Errorf("%w: %q", ErrUnknownMode, id)
	}
	return mode, nil
}

// PowerFor returns the electrical power drawn by mode id at fillRate. A fill
// rate outside the mode's range is an error, never clamped.
func (m *FRBCModel) PowerFor(id s2.ID, fillRate float64) (float64, error) {
	mode, err := m.ModeByID(id)
	if err != nil {
		return 0, err
	}
	if !mode.FillRate.Contains(fillRate) {
		return 0, fmt.Errorf("%w: %g not in [%g, %g] for mode %s", ErrFillRateOutOfRange,
			fillRate, mode.FillRate.Min(), mode.FillRate.Max(), id)
	}
	if mode.FillRate.Degenerate() {
		return mode.Power.Start, nil
	}
	f := (fillRate - mode.FillRate.Start) / (mode.FillRate.End - mode.FillRate.Start)
	return mode.Power.At(f), nil
}

// FillRateFor maps an operation mode factor in [0, 1] to a fill rate.
func (m *FRBCModel) FillRateFor(id s2.ID, factor float64) (float64, error) {
	mode, err := m.ModeByID(id)
	if err != nil {
		return 0, err
	}
	if factor < 0 || factor > 1 {
		return 0, fmt.Errorf("%w: %g", ErrFactorOutOfRange, factor)
	}
	return mode.FillRate.At(factor), nil
}

// Transition looks up the declared transition between two modes.
func (m *FRBCModel) Transition(from, to s2.ID) (Transition, bool) {
	tr, ok := m.transitions[[2]s2.ID{from, to}]
	return tr, ok
}

func (m *FRBCModel) Timer(id s2.ID) (Timer, bool) {
	t, ok := m.timers[id]
	return t, ok
}

func (m *FRBCModel) Timers() []Timer {
	return append([]Timer(nil), m.cfg.Timers...)
}

func (m *FRBCModel) SystemDescription(validFrom time.Time) *s2.FRBCSystemDescription {
	modes := make([]s2.FRBCOperationMode, 0, len(m.cfg.Modes))
	for _, mode := range m.cfg.Modes {
		modes = append(modes, s2.FRBCOperationMode{
			ID:              mode.ID,
			DiagnosticLabel: optional(mode.Label),
			Elements: []s2.FRBCOperationModeElement{{
				FillLevelRange: mode.FillLevel.S2(),
				FillRate:       mode.FillRate.S2(),
				PowerRanges: []s2.PowerRange{{
					StartOfRange:      mode.Power.Start,
					EndOfRange:        mode.Power.End,
					CommodityQuantity: m.cfg.CommodityQuantity,
				}},
			}},
			AbnormalConditionOnly: mode.AbnormalConditionOnly,
		})
	}
	transitions := make([]s2.Transition, 0, len(m.cfg.Transitions))
	for _, tr := range m.cfg.Transitions {
		transitions = append(transitions, s2.Transition{
			ID:                    tr.ID,
			From:                  tr.From,
			To:                    tr.To,
			StartTimers:           nonNil(tr.StartTimers),
			BlockingTimers:        nonNil(tr.BlockingTimers),
			AbnormalConditionOnly: tr.AbnormalConditionOnly,
		})
	}
	timers := make([]s2.Timer, 0, len(m.cfg.Timers))
	for _, t := range m.cfg.Timers {
		timers = append(timers, s2.Timer{
			ID:              t.ID,
			DiagnosticLabel: optional(t.Label),
			Duration:        s2.DurationOf(t.Duration),
		})
	}
	return &s2.FRBCSystemDescription{
		Header:    s2.NewHeader(),
		ValidFrom: validFrom,
		Actuators: []s2.FRBCActuatorDescription{{
			ID:                   m.cfg.ActuatorID,
			DiagnosticLabel:      optional(m.cfg.ActuatorLabel),
			SupportedCommodities: []s2.Commodity{s2.CommodityElectricity},
			OperationModes:       modes,
			Transitions:          transitions,
			Timers:               timers,
		}},
		Storage: s2.FRBCStorageDescription{
			DiagnosticLabel:          optional(m.cfg.StorageLabel),
			FillLevelLabel:           optional(m.cfg.FillLevelLabel),
			ProvidesLeakageBehaviour: m.cfg.LeakageRate > 0,
			ProvidesUsageForecast:    true,
			FillLevelRange:           m.cfg.FillLevel.S2(),
		},
	}
}

func (m *FRBCModel) LeakageBehaviour(validFrom time.Time) *s2.FRBCLeakageBehaviour {
	return &s2.FRBCLeakageBehaviour{
		Header:    s2.NewHeader(),
		ValidFrom: validFrom,
		Elements: []s2.FRBCLeakageBehaviourElement{{
			FillLevelRange: m.cfg.FillLevel.S2(),
			LeakageRate:    m.cfg.LeakageRate,
		}},
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(ids []s2.ID) []s2.ID {
	if ids == nil {
		return []s2.ID{}
	}
	return ids
}
