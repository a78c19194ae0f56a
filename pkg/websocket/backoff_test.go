package websocket

import (
	"testing"
	"time"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 400*time.Millisecond, 2.0)

	// Jitter adds at most 20% on top of the scheduled delay.
	wantBase := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond,
	}

	for i, base := range wantBase {
		got := b.Next()
		max := time.Duration(float64(base) * 1.2)
		if got < base || got > max {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", i, got, base, max)
		}
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, 2.0)

	b.Next()
	b.Next()
	b.Reset()

	got := b.Next()
	if got < 100*time.Millisecond || got > 120*time.Millisecond {
		t.Errorf("delay after reset = %v, want ~100ms", got)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	b := NewBackoff(0, 0, 0)

	if b.initial != time.Second {
		t.Errorf("initial = %v, want 1s", b.initial)
	}
	if b.max != 30*time.Second {
		t.Errorf("max = %v, want 30s", b.max)
	}
	if b.mult != 2.0 {
		t.Errorf("mult = %v, want 2.0", b.mult)
	}
}
