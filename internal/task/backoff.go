package task

import (
	"math/rand"
	"time"
)

// Backoff maps a retry count to the delay before the next attempt, using a
// fixed schedule with symmetric jitter. Attempts past the end of the
// schedule reuse its last entry.
type Backoff struct {
	Schedule  []time.Duration
	JitterPct float64
}

// DefaultSchedule is used when no schedule is configured.
var DefaultSchedule = []time.Duration{
	time.Second,
	4 * time.Second,
	16 * time.Second,
	time.Minute,
	4 * time.Minute,
	10 * time.Minute,
}

// Delay returns the wait before attempt n (1-based: the first retry is
// attempt 1).
func (b Backoff) Delay(attempt int) time.Duration {
	schedule := b.Schedule
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	base := schedule[idx]

	// jitter: +/- JitterPct, floored so the delay never collapses to zero
	j := 1 + (rand.Float64()*2-1)*b.JitterPct
	if j < 0.1 {
		j = 0.1
	}
	return time.Duration(float64(base) * j)
}
