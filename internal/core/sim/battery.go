package sim

import (
	"fmt"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/pkg/s2"
)

type BatteryParams struct {
	CapacityWh       float64
	InitialFillLevel float64
	DefaultMode      s2.ID
}

type BatteryState struct {
	FillLevel float64
	// Nominal fill rate of the active mode, before leakage.
	FillRate       float64
	NominalPowerW  float64
	PowerW         float64
	Clamped        bool
	ActiveModeID   s2.ID
	Factor         float64
	PreviousModeID s2.ID
	ModeSince      time.Time
	UpdatedAt      time.Time
}

// Battery integrates the fill level of an FRBC storage device.
type Battery struct {
	model  *capability.FRBCModel
	params BatteryParams
	state  BatteryState
}

func NewBattery(model *capability.FRBCModel, params BatteryParams, now time.Time) (*Battery, error) {
	if params.CapacityWh <= 0 {
		return nil, fmt.Errorf("battery capacity must be positive, got %g", params.CapacityWh)
	}
	if !model.FillLevel().Contains(params.InitialFillLevel) {
		return nil, fmt.Errorf("initial fill level %g outside storage range", params.InitialFillLevel)
	}
	b := &Battery{
		model:  model,
		params: params,
		state: BatteryState{
			FillLevel: params.InitialFillLevel,
			UpdatedAt: now,
		},
	}
	if err := b.SetMode(params.DefaultMode, 0, now); err != nil {
		return nil, err
	}
	b.state.PreviousModeID = ""
	return b, nil
}

func (b *Battery) State() BatteryState {
	return b.state
}

// Advance integrates up to now. Calling it again with the same now changes
// nothing; a now before the last update is ignored.
func (b *Battery) Advance(now time.Time) BatteryState {
	dt := now.Sub(b.state.UpdatedAt).Seconds()
	if dt <= 0 {
		return b.state
	}
	bounds := b.model.FillLevel()
	next := b.state.FillLevel + (b.state.FillRate-b.model.LeakageRate())*dt
	switch {
	case next <= bounds.Min():
		next = bounds.Min()
	case next >= bounds.Max():
		next = bounds.Max()
	}
	b.state.FillLevel = next
	b.state.UpdatedAt = now
	b.updateEffectivePower()
	return b.state
}

// SetMode switches the active mode at the given instant, integrating the
// previous mode up to it first.
func (b *Battery) SetMode(id s2.ID, factor float64, at time.Time) error {
	rate, err := b.model.FillRateFor(id, factor)
	if err != nil {
		return err
	}
	power, err := b.model.PowerFor(id, rate)
	if err != nil {
		return err
	}
	b.Advance(at)
	if b.state.ActiveModeID != id {
		b.state.PreviousModeID = b.state.ActiveModeID
		b.state.ModeSince = at
	}
	b.state.ActiveModeID = id
	b.state.Factor = factor
	b.state.FillRate = rate
	b.state.NominalPowerW = power
	b.updateEffectivePower()
	return nil
}

// StoredEnergyWh is the energy content at the current fill level.
func (b *Battery) StoredEnergyWh() float64 {
	return b.state.FillLevel * b.params.CapacityWh
}

func (b *Battery) CapacityWh() float64 {
	return b.params.CapacityWh
}

// Reset reverts to the default mode, keeping the fill level.
func (b *Battery) Reset(at time.Time) {
	b.Advance(at)
	_ = b.SetMode(b.params.DefaultMode, 0, at)
}

func (b *Battery) updateEffectivePower() {
	bounds := b.model.FillLevel()
	atEmpty := b.state.FillLevel <= bounds.Min() && b.state.FillRate < 0
	atFull := b.state.FillLevel >= bounds.Max() && b.state.FillRate > 0
	b.state.Clamped = atEmpty || atFull
	if b.state.Clamped {
		b.state.PowerW = 0
	} else {
		b.state.PowerW = b.state.NominalPowerW
	}
}
