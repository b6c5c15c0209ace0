package sse

import (
	"math"
	"math/rand"
	"time"
)

const (
	// DefaultJitterRatio is the largest fraction of a computed delay that jitter may remove.
	DefaultJitterRatio = 0.5
	// DefaultBackoffResetInterval is how long a connection must stay up for the next failure to
	// start over from the initial delay.
	DefaultBackoffResetInterval = time.Minute
	// DefaultInitialReconnectDelay is the delay before the first reconnect attempt.
	DefaultInitialReconnectDelay = time.Second
	// DefaultMaxReconnectDelay is the upper bound on any reconnect delay.
	DefaultMaxReconnectDelay = 30 * time.Second
)

// Backoff computes jittered exponential reconnect delays.
//
// The attempt counter starts at zero, so the first delay is the initial delay. Each Fail increments
// it, unless the connection had been up for longer than the reset interval since the last Succeed,
// in which case it starts over. A Backoff is not safe for concurrent use.
type Backoff struct {
	initial       time.Duration
	max           time.Duration
	maxExponent   uint64
	attempt       uint64
	jitterRatio   float64
	resetInterval time.Duration
	activeSince   time.Time
	random        func(ratio float64) float64
	now           func() time.Time
}

// NewBackoff creates a Backoff with the default jitter ratio and reset interval.
func NewBackoff(initial, max time.Duration) *Backoff {
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // jitter, not security
	return NewBackoffWithOptions(initial, max, DefaultJitterRatio, DefaultBackoffResetInterval,
		func(ratio float64) float64 { return rng.Float64() * ratio })
}

// NewBackoffWithOptions creates a Backoff with full control over its parameters. The random
// function must return a value between 0 and its ratio argument.
func NewBackoffWithOptions(
	initial, max time.Duration,
	jitterRatio float64,
	resetInterval time.Duration,
	random func(ratio float64) float64,
) *Backoff {
	return &Backoff{
		initial:       initial,
		max:           max,
		maxExponent:   computeMaxExponent(initial, max),
		jitterRatio:   jitterRatio,
		resetInterval: resetInterval,
		random:        random,
		now:           time.Now,
	}
}

// Delay returns the delay to wait before the next attempt.
func (b *Backoff) Delay() time.Duration {
	return jitter(computeDelay(b.initial, b.max, b.attempt, b.maxExponent), b.jitterRatio, b.random)
}

// Fail records a failed or ended connection.
func (b *Backoff) Fail() {
	if !b.activeSince.IsZero() && b.now().Sub(b.activeSince) > b.resetInterval {
		b.attempt = 0
	} else {
		b.attempt++
	}
	b.activeSince = time.Time{}
}

// Succeed records that a connection was established.
func (b *Backoff) Succeed() {
	b.activeSince = b.now()
}

// Attempt returns the current attempt counter.
func (b *Backoff) Attempt() uint64 {
	return b.attempt
}

// The exponent is bounded so that initial * 2^exponent can neither overflow nor be needlessly
// large; anything past it would be clamped to max anyway.
func computeMaxExponent(initial, max time.Duration) uint64 {
	base := initial.Milliseconds()
	if base < 1 {
		base = 1
	}
	ratio := float64(max.Milliseconds()) / float64(base)
	if ratio <= 1 {
		return 0
	}
	return uint64(math.Ceil(math.Log2(ratio)))
}

func computeDelay(initial, max time.Duration, attempt, maxExponent uint64) time.Duration {
	exponent := attempt
	if exponent > maxExponent {
		exponent = maxExponent
	}
	delay := initial * time.Duration(uint64(1)<<exponent)
	if delay > max || delay < 0 {
		return max
	}
	return delay
}

func jitter(base time.Duration, ratio float64, random func(float64) float64) time.Duration {
	if ratio <= 0 || random == nil {
		return base
	}
	return base - time.Duration(random(ratio)*float64(base))
}
