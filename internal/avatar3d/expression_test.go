package avatar3d

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMouthOpenWhileSpeaking(t *testing.T) {
	e := NewExpressionDriver()

	assert.True(t, e.Speaking(0.5))
	assert.InDelta(t, 0.9, e.MouthOpen(0.5, time.Second), 1e-12)
	assert.Equal(t, 1.0, e.MouthOpen(0.8, 0), "capped at 1")
	assert.False(t, e.Speaking(0.02), "threshold is exclusive")
}

func TestMouthOpenIdleStaysSmall(t *testing.T) {
	e := NewExpressionDriver()

	for ms := 0; ms < 20000; ms += 13 {
		v := e.MouthOpen(0.01, time.Duration(ms)*time.Millisecond)
		assert.GreaterOrEqual(t, v, 0.02)
		assert.LessOrEqual(t, v, 0.04)
	}
	assert.InDelta(t, 0.03, e.MouthOpen(0, 0), 1e-12)
}
