package sim

import (
	"time"

	"github.com/berfenger/s2mockrm/pkg/s2"
)

// EnvelopeSegment bounds the power produced between Start and End, in watts
// of production (positive).
type EnvelopeSegment struct {
	Start time.Time
	End   time.Time
	Lower float64
	Upper float64
}

// Envelope is a power envelope replaced wholesale on every accepted
// instruction. Past its last segment the device is unconstrained.
type Envelope struct {
	ID       s2.ID
	Segments []EnvelopeSegment
}

func (e *Envelope) At(t time.Time) (EnvelopeSegment, bool) {
	if e == nil {
		return EnvelopeSegment{}, false
	}
	for _, seg := range e.Segments {
		if !t.Before(seg.Start) && t.Before(seg.End) {
			return seg, true
		}
	}
	return EnvelopeSegment{}, false
}

func (e *Envelope) End() time.Time {
	if e == nil || len(e.Segments) == 0 {
		return time.Time{}
	}
	return e.Segments[len(e.Segments)-1].End
}
