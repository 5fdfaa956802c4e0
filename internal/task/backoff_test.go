package task

import (
	"testing"
	"time"
)

func TestBackoffDelayFollowsSchedule(t *testing.T) {
	b := Backoff{Schedule: []time.Duration{time.Second, 4 * time.Second, 16 * time.Second}}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 4 * time.Second},
		{3, 16 * time.Second},
		{4, 16 * time.Second},  // past the end reuses the last entry
		{99, 16 * time.Second}, // far past too
		{0, time.Second},       // out-of-range input clamps to the first entry
		{-3, time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelayEmptyScheduleUsesDefault(t *testing.T) {
	var b Backoff
	if got := b.Delay(1); got != DefaultSchedule[0] {
		t.Errorf("Delay(1) = %v, want %v", got, DefaultSchedule[0])
	}
	last := DefaultSchedule[len(DefaultSchedule)-1]
	if got := b.Delay(100); got != last {
		t.Errorf("Delay(100) = %v, want %v", got, last)
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	b := Backoff{Schedule: []time.Duration{time.Minute}, JitterPct: 0.25}
	lo := time.Duration(float64(time.Minute) * 0.75)
	hi := time.Duration(float64(time.Minute) * 1.25)

	for i := 0; i < 1000; i++ {
		got := b.Delay(1)
		if got < lo || got > hi {
			t.Fatalf("Delay(1) = %v outside [%v, %v]", got, lo, hi)
		}
	}
}

func TestBackoffDelayNeverZero(t *testing.T) {
	// Even with absurd jitter the delay keeps a floor above zero.
	b := Backoff{Schedule: []time.Duration{time.Second}, JitterPct: 5}
	for i := 0; i < 1000; i++ {
		if got := b.Delay(1); got <= 0 {
			t.Fatalf("Delay(1) = %v, want > 0", got)
		}
	}
}
