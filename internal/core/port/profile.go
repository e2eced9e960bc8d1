package port

import (
	"iter"
	"time"
)

type ProfileSample struct {
	Timestamp time.Time
	Value     float64
}

// ProfileSource yields a finite irradiance profile in chronological order.
// Every call to Samples restarts the sequence.
type ProfileSource interface {
	Samples() iter.Seq2[ProfileSample, error]
}
