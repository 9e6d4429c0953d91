package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffRamp(t *testing.T) {
	b := NewBackoff(BackoffConfig{Jitter: -1})

	expected := []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, b.Next(), "attempt %d", i+1)
	}
	assert.Equal(t, len(expected), b.Attempts())
}

func TestBackoffCustomRamp(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        time.Second,
		Multiplier: 3,
		Jitter:     -1,
	})

	assert.Equal(t, 100*time.Millisecond, b.Next())
	assert.Equal(t, 300*time.Millisecond, b.Next())
	assert.Equal(t, 900*time.Millisecond, b.Next())
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoffJitterBounds(t *testing.T) {
	// Pin the base at one second so every sample draws jitter on the
	// same delay.
	b := NewBackoff(BackoffConfig{Initial: time.Second, Max: time.Second})

	samples := make([]time.Duration, 10)
	for i := range samples {
		samples[i] = b.Next()
	}

	allSame := true
	for i, s := range samples {
		assert.GreaterOrEqual(t, s, time.Second, "sample %d", i)
		assert.LessOrEqual(t, s, 1250*time.Millisecond, "sample %d", i)
		if s != samples[0] {
			allSame = false
		}
	}
	assert.False(t, allSame, "jitter should vary between samples")
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(BackoffConfig{Jitter: -1})

	b.Next()
	b.Next()
	b.Next()
	assert.Equal(t, 3, b.Attempts())

	b.Reset()
	assert.Equal(t, 0, b.Attempts())
	assert.Equal(t, 500*time.Millisecond, b.Next(), "ramp restarts at the initial delay")
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff(BackoffConfig{})

	first := b.Next()
	assert.GreaterOrEqual(t, first, DefaultInitialDelay)
	assert.LessOrEqual(t, first, 625*time.Millisecond)
}
