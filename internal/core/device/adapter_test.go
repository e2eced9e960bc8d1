package device

import (
	"iter"
	"testing"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/internal/core/port"
	"github.com/berfenger/s2mockrm/internal/core/service"
	"github.com/berfenger/s2mockrm/internal/core/sim"
	"github.com/berfenger/s2mockrm/pkg/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = DefaultSimulationStart

type sliceSource []port.ProfileSample

func (s sliceSource) Samples() iter.Seq2[port.ProfileSample, error] {
	return func(yield func(port.ProfileSample, error) bool) {
		for _, sample := range s {
			if !yield(sample, nil) {
				return
			}
		}
	}
}

// testProfile ramps from 0.1 at 08:00 to 0.9 at 16:00, 0.5 at noon.
func testProfile(t *testing.T) *sim.Profile {
	var samples sliceSource
	day := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 24; h++ {
		value := 0.0
		if h >= 8 && h <= 16 {
			value = float64(h-7) / 10
		}
		samples = append(samples, port.ProfileSample{Timestamp: day.Add(time.Duration(h) * time.Hour), Value: value})
	}
	p, err := sim.LoadProfile(samples)
	require.NoError(t, err)
	return p
}

func newBattery(t *testing.T) *Adapter {
	a, err := New(Config{
		ControlType: capability.ControlTypeFRBC,
		ResourceID:  "battery-1",
		Battery:     DefaultBatteryConfig(),
	}, nil, t0, zap.NewNop())
	require.NoError(t, err)
	return a
}

func newPV(t *testing.T, ct capability.ControlType) *Adapter {
	a, err := New(Config{
		ControlType: ct,
		ResourceID:  "pv-1",
		PV:          DefaultPVConfig(),
	}, testProfile(t), t0, zap.NewNop())
	require.NoError(t, err)
	return a
}

func frbcInstruction(mode s2.ID, factor float64, at time.Time) *s2.FRBCInstruction {
	return &s2.FRBCInstruction{
		Header:              s2.NewHeader(),
		InstructionID:       s2.NewID(),
		ActuatorID:          BatteryActuatorID,
		OperationMode:       mode,
		OperationModeFactor: factor,
		ExecutionTime:       at,
	}
}

func pebcInstruction(at time.Time, lower float64, d time.Duration) *s2.PEBCInstruction {
	return &s2.PEBCInstruction{
		Header:             s2.NewHeader(),
		InstructionID:      s2.NewID(),
		ExecutionTime:      at,
		PowerConstraintsID: PVConstraintsID,
		PowerEnvelopes: []s2.PEBCPowerEnvelope{{
			ID:                "env-1",
			CommodityQuantity: s2.CommodityQuantityElectricPower3PhaseSymm,
			PowerEnvelopeElements: []s2.PEBCPowerEnvelopeElement{
				{Duration: s2.DurationOf(d), UpperLimit: 0, LowerLimit: lower},
			},
		}},
	}
}

func types(msgs []s2.Message) []s2.MessageType {
	var out []s2.MessageType
	for _, m := range msgs {
		out = append(out, m.Type())
	}
	return out
}

func TestBatteryCapabilityMessages(t *testing.T) {

	require := require.New(t)
	a := newBattery(t)

	msgs := a.CapabilityMessages(t0)
	require.Equal([]s2.MessageType{
		s2.TypeFRBCSystemDescription,
		s2.TypeFRBCLeakageBehaviour,
		s2.TypeFRBCUsageForecast,
		s2.TypeFRBCActuatorStatus,
		s2.TypeFRBCStorageStatus,
	}, types(msgs))

	sd := msgs[0].(*s2.FRBCSystemDescription)
	require.Len(sd.Actuators, 1)
	require.Len(sd.Actuators[0].OperationModes, 3)
	require.Len(sd.Actuators[0].Timers, 2)

	lb := msgs[1].(*s2.FRBCLeakageBehaviour)
	require.InDelta(0.5/20000/3600, lb.Elements[0].LeakageRate, 1e-18)

	uf := msgs[2].(*s2.FRBCUsageForecast)
	require.Len(uf.Elements, 24)
	require.Equal(0.0, uf.Elements[0].UsageRateExpected)

	ss := msgs[4].(*s2.FRBCStorageStatus)
	require.Equal(0.5, ss.PresentFillLevel)

	details := a.Details()
	require.Equal([]s2.ControlType{s2.ControlTypeFRBC}, details.AvailableControlTypes)
	require.Equal(s2.RoleTypeEnergyStorage, details.Roles[0].Role)
	require.True(a.AcceptsControlType(s2.ControlTypeFRBC))
	require.False(a.AcceptsControlType(s2.ControlTypeNoSelection))
}

func TestBatteryChargeScenario(t *testing.T) {

	require := require.New(t)
	a := newBattery(t)
	a.CapabilityMessages(t0)

	in, superseded, err := a.Submit(frbcInstruction(ModeCharge, 1, t0), t0)
	require.NoError(err)
	require.Empty(superseded)

	applied := a.Advance(t0)
	require.Len(applied, 1)
	require.NoError(applied[0].Err)
	require.Equal(in.ID, applied[0].Instruction.ID)

	now := t0.Add(time.Hour)
	msgs := a.Report(now)
	require.Equal([]s2.MessageType{s2.TypePowerMeasurement, s2.TypeFRBCStorageStatus, s2.TypeFRBCActuatorStatus}, types(msgs))

	pm := msgs[0].(*s2.PowerMeasurement)
	require.Equal(5000.0, pm.Values[0].Value)
	require.InDelta(0.75-0.5/20000, msgs[1].(*s2.FRBCStorageStatus).PresentFillLevel, 1e-9)

	as := msgs[2].(*s2.FRBCActuatorStatus)
	require.Equal(ModeCharge, as.ActiveOperationModeID)
	require.Equal(ModeIdle, *as.PreviousOperationModeID)
	require.Equal(t0, *as.TransitionTimestamp)

	// mode unchanged: no actuator status
	msgs = a.Report(now.Add(time.Minute))
	require.Equal([]s2.MessageType{s2.TypePowerMeasurement, s2.TypeFRBCStorageStatus}, types(msgs))

	// full after ~2 h at 5 kW: effective power drops to zero
	a.Advance(t0.Add(3 * time.Hour))
	m := a.Measure()
	require.Equal(1.0, *m.FillLevel)
	require.Equal(0.0, m.PowerW)
	require.True(m.Clamped)
	require.Equal(string(ModeCharge), m.ActiveRef)
}

func TestBatteryDwellTimerBlocksTransition(t *testing.T) {

	require := require.New(t)
	a := newBattery(t)

	_, _, err := a.Submit(frbcInstruction(ModeDischarge, 0, t0), t0)
	require.NoError(err)
	a.Advance(t0)

	now := t0.Add(100 * time.Second)
	_, _, err = a.Submit(frbcInstruction(ModeIdle, 0, now), now)
	var verr *service.ValidationError
	require.ErrorAs(err, &verr)
	require.Equal(service.RejectTimerBlocked, verr.Reason)

	// scheduled at the timer expiry is fine
	_, _, err = a.Submit(frbcInstruction(ModeIdle, 0, t0.Add(300*time.Second)), now)
	require.NoError(err)

	// discharging at half power in the meantime
	a.Advance(now)
	require.Equal(-2500.0, a.Measure().PowerW)

	applied := a.Advance(t0.Add(301 * time.Second))
	require.Len(applied, 1)
	require.Equal(string(ModeIdle), a.Measure().ActiveRef)
}

func TestBatteryRevokeAndReset(t *testing.T) {

	require := require.New(t)
	a := newBattery(t)

	in, _, err := a.Submit(frbcInstruction(ModeCharge, 1, t0.Add(time.Minute)), t0)
	require.NoError(err)

	_, ok := a.Revoke(in.ID)
	require.True(ok)
	require.Empty(a.Advance(t0.Add(2 * time.Minute)))

	_, _, err = a.Submit(frbcInstruction(ModeCharge, 1, t0.Add(3*time.Minute)), t0.Add(2*time.Minute))
	require.NoError(err)
	dropped := a.Reset(t0.Add(2 * time.Minute))
	require.Len(dropped, 1)
	_, pending := a.Pending()
	require.False(pending)
}

func TestPEBCEnvelopeCurtails(t *testing.T) {

	require := require.New(t)
	a := newPV(t, capability.ControlTypePEBC)

	msgs := a.CapabilityMessages(t0)
	require.Equal([]s2.MessageType{s2.TypePEBCPowerConstraints, s2.TypePowerForecast}, types(msgs))

	m := a.Measure()
	require.Equal(-1000.0, m.PowerW)

	_, _, err := a.Submit(pebcInstruction(t0, -500, time.Hour), t0)
	require.NoError(err)
	applied := a.Advance(t0.Add(10 * time.Minute))
	require.Len(applied, 1)

	m = a.Measure()
	require.Equal(-500.0, m.PowerW)
	require.True(m.Curtailed)
	require.Equal("env-1", m.ActiveRef)
	require.InDelta(-1000, *m.AvailableW, 1e-9)

	// unconstrained after the envelope ends; profile reads 0.6 at 13:00
	msgs = a.Report(t0.Add(time.Hour))
	require.Len(msgs, 1)
	require.InDelta(-1200, msgs[0].(*s2.PowerMeasurement).Values[0].Value, 1e-9)
}

func TestPEBCRejectsOutOfRangeEnvelope(t *testing.T) {
	a := newPV(t, capability.ControlTypePEBC)

	_, _, err := a.Submit(pebcInstruction(t0, -2500, time.Hour), t0)
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, service.RejectEnvelopeOutOfRange, verr.Reason)

	_, _, err = a.Submit(frbcInstruction(ModeCharge, 1, t0), t0)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, service.RejectControlTypeMismatch, verr.Reason)
}

func TestNotControllablePV(t *testing.T) {

	require := require.New(t)
	a := newPV(t, capability.ControlTypeNotControllable)

	require.True(a.AcceptsControlType(s2.ControlTypeNotControlable))
	require.True(a.AcceptsControlType(s2.ControlTypeNoSelection))
	require.False(a.AcceptsControlType(s2.ControlTypePEBC))

	msgs := a.CapabilityMessages(t0)
	require.Len(msgs, 1)
	pf := msgs[0].(*s2.PowerForecast)
	require.Len(pf.Elements, 24)
	require.Equal(-1000.0, pf.Elements[0].PowerValues[0].ValueExpected)
	require.Equal(s2.Duration(3600000), pf.Elements[0].Duration)

	_, _, err := a.Submit(pebcInstruction(t0, -500, time.Hour), t0)
	require.Error(err)

	require.Equal(s2.TypePowerForecast, a.Forecast(t0).Type())
	require.Equal(s2.RoleTypeEnergyProducer, a.Details().Roles[0].Role)
}

func TestPVRequiresProfile(t *testing.T) {
	_, err := New(Config{ControlType: capability.ControlTypePEBC, PV: DefaultPVConfig()}, nil, t0, zap.NewNop())
	assert.ErrorIs(t, err, ErrProfileRequired)
}
