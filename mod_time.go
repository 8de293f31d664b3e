package deferredshading

import (
	"time"
)

type Time struct {
	Time time.Time
	Dt   time.Duration
}

// Advance moves the clock to now. The first call yields a zero delta.
func (t *Time) Advance(now time.Time) {
	if t.Time.IsZero() || now.Before(t.Time) {
		t.Dt = 0
	} else {
		t.Dt = now.Sub(t.Time)
	}
	t.Time = now
}

// Seconds is the last delta in seconds, as the simulation consumes it.
func (t *Time) Seconds() float32 {
	return float32(t.Dt.Seconds())
}
