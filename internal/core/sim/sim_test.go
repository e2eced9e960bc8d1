package sim

import (
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/capability"
	"github.com/berfenger/s2mockrm/internal/core/port"
	"github.com/berfenger/s2mockrm/pkg/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simStart = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

const (
	capacityWh = 20000.0
	maxPowerW  = 5000.0
	leakage    = 0.5 / capacityWh / 3600
	fullRate   = maxPowerW / capacityWh / 3600
)

func testBatteryModel(t *testing.T) *capability.FRBCModel {
	m, err := capability.NewFRBCModel(capability.FRBCConfig{
		ActuatorID: "actuator",
		Modes: []capability.OperationMode{
			{ID: "idle", FillLevel: capability.Range{End: 1}},
			{ID: "charge", FillLevel: capability.Range{End: 1}, FillRate: capability.Range{Start: fullRate, End: fullRate / 2}, Power: capability.Range{Start: maxPowerW, End: maxPowerW / 2}},
			{ID: "discharge", FillLevel: capability.Range{End: 1}, FillRate: capability.Range{Start: -fullRate, End: -fullRate / 2}, Power: capability.Range{Start: -maxPowerW, End: -maxPowerW / 2}},
		},
		FillLevel:         capability.Range{End: 1},
		LeakageRate:       leakage,
		CommodityQuantity: s2.CommodityQuantityElectricPower3PhaseSymm,
	})
	require.NoError(t, err)
	return m
}

func newTestBattery(t *testing.T, fill float64) *Battery {
	b, err := NewBattery(testBatteryModel(t), BatteryParams{CapacityWh: capacityWh, InitialFillLevel: fill, DefaultMode: "idle"}, simStart)
	require.NoError(t, err)
	return b
}

func TestBatteryChargesLinearly(t *testing.T) {
	b := newTestBattery(t, 0.5)
	require.NoError(t, b.SetMode("charge", 0.5, simStart))

	st := b.Advance(simStart.Add(150 * time.Second))
	expectedPower := 3750.0
	expected := 0.5 + expectedPower*150/3600/capacityWh - leakage*150
	assert.InDelta(t, expected, st.FillLevel, 1e-12)
	assert.InDelta(t, expectedPower, st.PowerW, 1e-9)
	assert.False(t, st.Clamped)
}

func TestBatteryAdvanceIsIdempotent(t *testing.T) {
	b := newTestBattery(t, 0.5)
	require.NoError(t, b.SetMode("discharge", 1, simStart))
	now := simStart.Add(10 * time.Minute)

	first := b.Advance(now)
	second := b.Advance(now)
	assert.Equal(t, first, second)

	// going back in time is ignored
	third := b.Advance(simStart)
	assert.Equal(t, first, third)
}

func TestBatteryIdleLeaks(t *testing.T) {
	b := newTestBattery(t, 0.5)
	st := b.Advance(simStart.Add(time.Hour))
	assert.InDelta(t, 0.5-leakage*3600, st.FillLevel, 1e-15)
	assert.Equal(t, 0.0, st.PowerW)
	assert.Equal(t, s2.ID("idle"), st.ActiveModeID)
}

func TestBatteryClampsAtFull(t *testing.T) {
	b := newTestBattery(t, 0.99)
	require.NoError(t, b.SetMode("charge", 0, simStart))

	st := b.Advance(simStart.Add(2 * time.Hour))
	assert.Equal(t, 1.0, st.FillLevel)
	assert.True(t, st.Clamped)
	assert.Equal(t, 0.0, st.PowerW)
	assert.Equal(t, maxPowerW, st.NominalPowerW)
}

func TestBatteryClampsAtEmpty(t *testing.T) {
	b := newTestBattery(t, 0.01)
	require.NoError(t, b.SetMode("discharge", 0, simStart))

	st := b.Advance(simStart.Add(2 * time.Hour))
	assert.Equal(t, 0.0, st.FillLevel)
	assert.True(t, st.Clamped)
	assert.Equal(t, 0.0, st.PowerW)

	// switching to charge leaves the bound
	require.NoError(t, b.SetMode("charge", 1, simStart.Add(2*time.Hour)))
	assert.False(t, b.State().Clamped)
	assert.Equal(t, maxPowerW/2, b.State().PowerW)
}

func TestBatterySetModeIntegratesPreviousMode(t *testing.T) {
	b := newTestBattery(t, 0.5)
	require.NoError(t, b.SetMode("charge", 0, simStart))
	require.NoError(t, b.SetMode("idle", 0, simStart.Add(time.Hour)))

	st := b.Advance(simStart.Add(2 * time.Hour))
	expected := 0.5 + fullRate*3600 - leakage*7200
	assert.InDelta(t, expected, st.FillLevel, 1e-12)
	assert.Equal(t, s2.ID("charge"), st.PreviousModeID)
	assert.Equal(t, simStart.Add(time.Hour), st.ModeSince)
}

func TestBatteryRejectsUnknownMode(t *testing.T) {
	b := newTestBattery(t, 0.5)
	err := b.SetMode("boost", 0, simStart)
	assert.ErrorIs(t, err, capability.ErrUnknownMode)
	assert.Equal(t, s2.ID("idle"), b.State().ActiveModeID)
}

func TestBatteryResetKeepsFillLevel(t *testing.T) {
	b := newTestBattery(t, 0.5)
	require.NoError(t, b.SetMode("charge", 0, simStart))
	b.Reset(simStart.Add(time.Hour))

	st := b.State()
	assert.Equal(t, s2.ID("idle"), st.ActiveModeID)
	assert.InDelta(t, 0.5+fullRate*3600-leakage*3600, st.FillLevel, 1e-12)
}

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

type failingSource struct{}

func (failingSource) Samples() iter.Seq2[port.ProfileSample, error] {
	return func(yield func(port.ProfileSample, error) bool) {
		yield(port.ProfileSample{}, errors.New("boom"))
	}
}

func dayProfile() sliceSource {
	var samples sliceSource
	day := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 24; h++ {
		value := 0.0
		if h >= 8 && h <= 16 {
			value = float64(h-7) / 10
		}
		samples = append(samples, port.ProfileSample{Timestamp: day.Add(time.Duration(h) * time.Hour), Value: value})
	}
	return samples
}

func TestProfileLookup(t *testing.T) {
	p, err := LoadProfile(dayProfile())
	require.NoError(t, err)

	assert.InDelta(t, 0.5, p.At(simStart), 1e-12)
	// rounds to the nearest hour
	assert.InDelta(t, 0.6, p.At(simStart.Add(31*time.Minute)), 1e-12)
	assert.InDelta(t, 0.5, p.At(simStart.Add(29*time.Minute)), 1e-12)
	// wraps past the end of the profile
	assert.InDelta(t, 0.5, p.At(simStart.Add(48*time.Hour)), 1e-12)
	assert.InDelta(t, 0.5, p.At(simStart.Add(-72*time.Hour)), 1e-12)
	assert.Equal(t, time.Date(2030, 1, 1, 23, 0, 0, 0, time.UTC), p.End())
}

func TestProfileErrors(t *testing.T) {
	_, err := LoadProfile(sliceSource{})
	assert.ErrorIs(t, err, ErrEmptyProfile)

	_, err = LoadProfile(sliceSource{{Timestamp: simStart, Value: 1.5}})
	assert.Error(t, err)

	_, err = LoadProfile(failingSource{})
	assert.Error(t, err)
}

func TestPVFollowsProfile(t *testing.T) {
	p, err := LoadProfile(dayProfile())
	require.NoError(t, err)
	pv := NewPV(p, PVParams{PeakPowerW: 2000, SimStart: simStart}, simStart)

	st := pv.State()
	assert.InDelta(t, 1000, st.AvailableW, 1e-9)
	assert.InDelta(t, 1000, st.PowerW, 1e-9)
	assert.Equal(t, simStart, st.SimulatedTime)

	st = pv.Advance(simStart.Add(2 * time.Hour))
	assert.InDelta(t, 1400, st.PowerW, 1e-9)
	assert.Equal(t, st, pv.Advance(simStart.Add(2*time.Hour)))
}

func TestPVEnvelopeCurtails(t *testing.T) {
	p, err := LoadProfile(dayProfile())
	require.NoError(t, err)
	pv := NewPV(p, PVParams{PeakPowerW: 2000, SimStart: simStart}, simStart)

	pv.SetEnvelope(&Envelope{ID: "env", Segments: []EnvelopeSegment{
		{Start: simStart, End: simStart.Add(time.Hour), Lower: 0, Upper: 500},
	}}, simStart)

	st := pv.Advance(simStart.Add(30 * time.Minute))
	assert.Equal(t, 500.0, st.PowerW)
	assert.True(t, st.Curtailed)
	assert.Equal(t, s2.ID("env"), st.EnvelopeID)

	// unconstrained after the last segment
	st = pv.Advance(simStart.Add(time.Hour))
	assert.False(t, st.Curtailed)
	assert.InDelta(t, 1200, st.PowerW, 1e-9)

	pv.Reset(simStart.Add(time.Hour))
	assert.Nil(t, pv.Envelope())
}

func TestPVForecast(t *testing.T) {
	p, err := LoadProfile(dayProfile())
	require.NoError(t, err)
	pv := NewPV(p, PVParams{PeakPowerW: 2000, SimStart: simStart}, simStart)

	points := pv.Forecast(simStart, 24, time.Hour)
	require.Len(t, points, 24)
	assert.InDelta(t, 1000, points[0].AvailableW, 1e-9)
	assert.Equal(t, 0.0, points[12].AvailableW)
	assert.Equal(t, simStart.Add(23*time.Hour), points[23].Start)
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(simStart)
	assert.Equal(t, simStart.Add(time.Minute), c.Advance(time.Minute))
	c.Set(simStart)
	assert.Equal(t, simStart, c.Now())
}
