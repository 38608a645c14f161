package avatar3d

import (
	"math"
	"math/rand"
	"time"
)

// Blink timing defaults.
const (
	DefaultBlinkInterval = 2500 * time.Millisecond
	DefaultBlinkJitter   = 3000 * time.Millisecond
	DefaultBlinkDuration = 200 * time.Millisecond
)

// BlinkScheduler is a two-timer state machine for eyelid closure. A blink
// fires when now passes nextBlinkAt; that same instant sets the end of the
// blink window and draws the next blink time.
type BlinkScheduler struct {
	rng *rand.Rand

	interval time.Duration
	jitter   time.Duration
	duration time.Duration

	nextBlinkAt time.Time
	blinkEndAt  time.Time
}

// NewBlinkScheduler creates a scheduler whose first blink is drawn from now.
// A nil rng is seeded from the clock.
func NewBlinkScheduler(now time.Time, rng *rand.Rand) *BlinkScheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	b := &BlinkScheduler{
		rng:      rng,
		interval: DefaultBlinkInterval,
		jitter:   DefaultBlinkJitter,
		duration: DefaultBlinkDuration,
	}
	b.nextBlinkAt = b.draw(now)
	return b
}

// SetTiming changes the blink gap and pulse width. It applies from the next
// draw; a blink already scheduled keeps its time.
func (b *BlinkScheduler) SetTiming(interval, jitter, duration time.Duration) {
	if interval >= 0 {
		b.interval = interval
	}
	if jitter >= 0 {
		b.jitter = jitter
	}
	if duration > 0 {
		b.duration = duration
	}
}

func (b *BlinkScheduler) draw(now time.Time) time.Time {
	gap := b.interval
	if b.jitter > 0 {
		gap += time.Duration(b.rng.Int63n(int64(b.jitter)))
	}
	return now.Add(gap)
}

// Update advances the state machine to now and returns eyelid closure in
// [0,1]: a half-sine pulse over the blink window, 0 outside it.
func (b *BlinkScheduler) Update(now time.Time) float64 {
	if !now.Before(b.nextBlinkAt) {
		b.blinkEndAt = now.Add(b.duration)
		b.nextBlinkAt = b.draw(now)
	}
	return b.Value(now)
}

// Value returns the closure at now without advancing the timers.
func (b *BlinkScheduler) Value(now time.Time) float64 {
	if !now.Before(b.blinkEndAt) {
		return 0
	}
	p := float64(b.blinkEndAt.Sub(now)) / float64(b.duration)
	return clamp01(math.Sin(p * math.Pi))
}

// Trigger forces a blink at now and redraws the next one.
func (b *BlinkScheduler) Trigger(now time.Time) {
	b.nextBlinkAt = now
	b.Update(now)
}

func (b *BlinkScheduler) NextBlinkAt() time.Time { return b.nextBlinkAt }
func (b *BlinkScheduler) BlinkEndAt() time.Time  { return b.blinkEndAt }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
