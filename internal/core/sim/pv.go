package sim

import (
	"math"
	"time"

	"github.com/berfenger/s2mockrm/pkg/s2"
)

type PVParams struct {
	PeakPowerW float64
	SimStart   time.Time
}

type PVState struct {
	SimulatedTime time.Time
	// Production potential at the current irradiance, watts.
	AvailableW float64
	// Delivered production after curtailment, watts.
	PowerW     float64
	Curtailed  bool
	EnvelopeID s2.ID
	UpdatedAt  time.Time
}

type ForecastPoint struct {
	Start      time.Time
	Duration   time.Duration
	AvailableW float64
}

// PV reads its output from an irradiance profile on a simulated timeline.
type PV struct {
	profile  *Profile
	params   PVParams
	timeline Timeline
	envelope *Envelope
	state    PVState
}

func NewPV(profile *Profile, params PVParams, now time.Time) *PV {
	pv := &PV{
		profile:  profile,
		params:   params,
		timeline: Timeline{Origin: now, SimStart: params.SimStart},
	}
	pv.evaluate(now)
	return pv
}

func (p *PV) State() PVState {
	return p.state
}

// Advance recomputes the output for now. Output is a pure function of now and
// the active envelope, so repeated calls are idempotent.
func (p *PV) Advance(now time.Time) PVState {
	if now.Before(p.state.UpdatedAt) {
		return p.state
	}
	p.evaluate(now)
	return p.state
}

// SetEnvelope replaces the active envelope; nil removes it.
func (p *PV) SetEnvelope(env *Envelope, at time.Time) {
	p.envelope = env
	if !at.Before(p.state.UpdatedAt) {
		p.evaluate(at)
	}
}

func (p *PV) Envelope() *Envelope {
	return p.envelope
}

func (p *PV) Reset(at time.Time) {
	p.SetEnvelope(nil, at)
}

func (p *PV) PeakPowerW() float64 {
	return p.params.PeakPowerW
}

// Forecast returns n consecutive points of length step starting at now.
func (p *PV) Forecast(now time.Time, n int, step time.Duration) []ForecastPoint {
	points := make([]ForecastPoint, 0, n)
	for i := 0; i < n; i++ {
		start := now.Add(time.Duration(i) * step)
		points = append(points, ForecastPoint{
			Start:      start,
			Duration:   step,
			AvailableW: p.available(start),
		})
	}
	return points
}

func (p *PV) available(at time.Time) float64 {
	return p.profile.At(p.timeline.At(at)) * p.params.PeakPowerW
}

func (p *PV) evaluate(now time.Time) {
	available := p.available(now)
	power := available
	curtailed := false
	var envelopeID s2.ID
	if seg, ok := p.envelope.At(now); ok {
		envelopeID = p.envelope.ID
		if power > seg.Upper {
			power = math.Max(seg.Upper, 0)
			curtailed = true
		}
	}
	p.state = PVState{
		SimulatedTime: p.timeline.At(now),
		AvailableW:    available,
		PowerW:        power,
		Curtailed:     curtailed,
		EnvelopeID:    envelopeID,
		UpdatedAt:     now,
	}
}
