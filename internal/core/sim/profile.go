package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/port"
)

var ErrEmptyProfile = errors.New("profile has no samples")

// Profile is an hourly irradiance profile normalised to [0, 1].
type Profile struct {
	byHour map[int64]float64
	first  int64
	last   int64
}

func hourKey(t time.Time) int64 {
	return t.Round(time.Hour).Unix() / 3600
}

// LoadProfile drains src once and indexes it by hour.
func LoadProfile(src port.ProfileSource) (*Profile, error) {
	p := &Profile{byHour: map[int64]float64{}}
	n := 0
	for sample, err := range src.Samples() {
		if err != nil {
			return nil, fmt.Errorf("profile: %w", err)
		}
		if sample.Value < 0 || sample.Value > 1 {
			return nil, fmt.Errorf("profile: sample %s out of range: %g", sample.Timestamp.Format(time.RFC3339), sample.Value)
		}
		key := hourKey(sample.Timestamp)
		if n == 0 || key < p.first {
			p.first = key
		}
		if n == 0 || key > p.last {
			p.last = key
		}
		p.byHour[key] = sample.Value
		n++
	}
	if n == 0 {
		return nil, ErrEmptyProfile
	}
	return p, nil
}

// At returns the sample for the hour nearest to t. Times outside the profile
// wrap around its span; missing hours read as 0.
func (p *Profile) At(t time.Time) float64 {
	key := hourKey(t)
	if key < p.first || key > p.last {
		span := p.last - p.first + 1
		offset := (key - p.first) % span
		if offset < 0 {
			offset += span
		}
		key = p.first + offset
	}
	return p.byHour[key]
}

func (p *Profile) Start() time.Time {
	return time.Unix(p.first*3600, 0).UTC()
}

func (p *Profile) End() time.Time {
	return time.Unix(p.last*3600, 0).UTC()
}
