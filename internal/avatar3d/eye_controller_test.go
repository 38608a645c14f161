package avatar3d

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestBlinkFirstDrawAtConstruction(t *testing.T) {
	b := NewBlinkScheduler(epoch, rand.New(rand.NewSource(1)))

	next := b.NextBlinkAt()
	assert.False(t, next.Before(epoch.Add(2500*time.Millisecond)))
	assert.True(t, next.Before(epoch.Add(5500*time.Millisecond)))
	assert.Zero(t, b.Update(epoch), "no blink before the first draw")
}

func TestBlinkPulseShape(t *testing.T) {
	b := NewBlinkScheduler(epoch, rand.New(rand.NewSource(2)))
	fire := b.NextBlinkAt()

	b.Update(fire)
	end := b.BlinkEndAt()
	require.Equal(t, fire.Add(200*time.Millisecond), end)

	assert.InDelta(t, 1.0, b.Update(end.Add(-100*time.Millisecond)), 1e-9)
	assert.InDelta(t, 0.7071, b.Update(end.Add(-50*time.Millisecond)), 1e-4)
	assert.Equal(t, 0.0, b.Update(end))
	assert.Equal(t, 0.0, b.Update(end.Add(time.Millisecond)))
}

func TestBlinkRedrawRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	b := NewBlinkScheduler(epoch, rng)

	for i := 0; i < 200; i++ {
		now := b.NextBlinkAt().Add(time.Duration(i%7) * time.Millisecond)
		b.Update(now)

		next := b.NextBlinkAt()
		assert.False(t, next.Before(now.Add(2500*time.Millisecond)), "draw %d too early", i)
		assert.True(t, next.Before(now.Add(5500*time.Millisecond)), "draw %d too late", i)
		assert.Equal(t, now.Add(200*time.Millisecond), b.BlinkEndAt())
	}
}

func TestBlinkOutputBounded(t *testing.T) {
	b := NewBlinkScheduler(epoch, rand.New(rand.NewSource(4)))
	for now := epoch; now.Before(epoch.Add(30 * time.Second)); now = now.Add(7 * time.Millisecond) {
		v := b.Update(now)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestBlinkSeededIsReproducible(t *testing.T) {
	a := NewBlinkScheduler(epoch, rand.New(rand.NewSource(42)))
	b := NewBlinkScheduler(epoch, rand.New(rand.NewSource(42)))
	assert.Equal(t, a.NextBlinkAt(), b.NextBlinkAt())
}

func TestBlinkTriggerAndTiming(t *testing.T) {
	b := NewBlinkScheduler(epoch, rand.New(rand.NewSource(5)))
	b.SetTiming(time.Second, 0, 100*time.Millisecond)

	b.Trigger(epoch)
	assert.Equal(t, epoch.Add(100*time.Millisecond), b.BlinkEndAt())
	assert.Equal(t, epoch.Add(time.Second), b.NextBlinkAt())
	assert.InDelta(t, 1.0, b.Value(epoch.Add(50*time.Millisecond)), 1e-9)
}
