package mirror

import (
	"math/rand/v2"
	"time"
)

// DefaultJitterFraction is the share of a delay used as the jitter range.
const DefaultJitterFraction = 0.05

// Schedule chooses jittered check times. Jitter keeps the checks of mirrors
// loaded at the same instant from staying bunched together forever.
type Schedule struct {
	// Steady-state delay between checks of one mirror.
	Interval time.Duration
	// Delay before the first check after a topology load, so coverage begins
	// quickly.
	InitialDelay time.Duration
	// Jitter range as a fraction of the delay.
	JitterFraction float64
}

// NewSchedule returns a Schedule with the default jitter fraction.
func NewSchedule(interval, initialDelay time.Duration) *Schedule {
	return &Schedule{
		Interval:       interval,
		InitialDelay:   initialDelay,
		JitterFraction: DefaultJitterFraction,
	}
}

// Next chooses the time of a mirror's next steady-state check.
func (s *Schedule) Next(now time.Time) time.Time {
	return s.After(now, s.Interval)
}

// First chooses the time of a mirror's bootstrap check after topology load.
func (s *Schedule) First(now time.Time) time.Time {
	return s.After(now, s.InitialDelay)
}

// After returns now + delay + jitter, with the jitter factor drawn uniformly
// from [-1, +1) and scaled by delay times the jitter fraction.
func (s *Schedule) After(now time.Time, delay time.Duration) time.Time {
	jitter := time.Duration((rand.Float64()*2 - 1) * float64(delay) * s.JitterFraction)
	return now.Add(delay + jitter)
}
