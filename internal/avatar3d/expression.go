package avatar3d

import (
	"math"
	"time"
)

// ExpressionDriver maps loudness onto the mouth-open channel. Above the
// speaking threshold the mouth follows loudness with a gain; below it the
// mouth keeps a small slow oscillation so it never looks frozen.
type ExpressionDriver struct {
	Threshold float64
	Gain      float64

	IdleBase  float64
	IdleSwing float64
	IdleRate  float64 // radians per millisecond
}

// NewExpressionDriver returns a driver with the default tuning.
func NewExpressionDriver() ExpressionDriver {
	return ExpressionDriver{
		Threshold: 0.02,
		Gain:      1.8,
		IdleBase:  0.03,
		IdleSwing: 0.01,
		IdleRate:  0.002,
	}
}

// Speaking reports whether level counts as speech.
func (e ExpressionDriver) Speaking(level float64) bool {
	return level > e.Threshold
}

// MouthOpen returns the mouth-open value for level at elapsed time.
func (e ExpressionDriver) MouthOpen(level float64, elapsed time.Duration) float64 {
	if e.Speaking(level) {
		return math.Min(1, level*e.Gain)
	}
	ms := float64(elapsed) / float64(time.Millisecond)
	return e.IdleBase + math.Sin(ms*e.IdleRate)*e.IdleSwing
}
