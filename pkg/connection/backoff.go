package connection

import (
	"math/rand"
	"sync"
	"time"
)

// Recovery pacing defaults. The radio side of an attempt is cheap, so
// the ramp starts well under a second; the cap keeps a long outage
// from stalling recovery once the glasses reappear.
const (
	// DefaultInitialDelay is the delay before the first retry.
	DefaultInitialDelay = 500 * time.Millisecond

	// DefaultMaxDelay caps the ramp.
	DefaultMaxDelay = 30 * time.Second

	// DefaultMultiplier grows the delay after each failed attempt.
	DefaultMultiplier = 2.0

	// DefaultJitter spreads retries by up to this fraction of the
	// base delay.
	DefaultJitter = 0.25
)

// BackoffConfig shapes the recovery ramp. Zero fields take the
// defaults; Jitter may be set negative to disable jitter entirely.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = DefaultInitialDelay
	}
	if c.Max <= 0 {
		c.Max = DefaultMaxDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.Jitter == 0 {
		c.Jitter = DefaultJitter
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Backoff produces the jittered delay ramp for link recovery. The
// delay for attempt n is Initial * Multiplier^(n-1), capped at Max,
// plus up to Jitter of that as random spread.
type Backoff struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a Backoff. Zero config fields take the defaults.
func NewBackoff(cfg BackoffConfig) *Backoff {
	return &Backoff{
		cfg: cfg.withDefaults(),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the upcoming attempt and counts it.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	base := b.cfg.Initial
	for i := 0; i < b.attempts && base < b.cfg.Max; i++ {
		base = time.Duration(float64(base) * b.cfg.Multiplier)
	}
	if base > b.cfg.Max {
		base = b.cfg.Max
	}
	b.attempts++

	if b.cfg.Jitter > 0 {
		base += time.Duration(float64(base) * b.cfg.Jitter * b.rng.Float64())
	}
	return base
}

// Attempts returns the number of delays handed out since the last
// Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Reset restarts the ramp. Call it once the link is up again.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}
