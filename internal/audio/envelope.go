package audio

import (
	dsptime "github.com/cwbudde/algo-dsp/stats/time"
)

// Default envelope coefficients: fast attack, slow release.
const (
	DefaultAttack  = 0.6
	DefaultRelease = 0.15
)

// Follower tracks the loudness of successive sample windows with asymmetric
// exponential smoothing and publishes the result into a Loudness.
type Follower struct {
	Attack  float64
	Release float64

	out *Loudness
}

// NewFollower creates a follower writing into out, seeded from its value.
func NewFollower(out *Loudness) *Follower {
	if out == nil {
		out = &Loudness{}
	}
	return &Follower{Attack: DefaultAttack, Release: DefaultRelease, out: out}
}

// Process folds one window into the envelope and returns the new value.
// Samples are expected in [-1,1]; an empty window counts as silence.
func (f *Follower) Process(samples []float64) float64 {
	prev := f.out.Load()
	rms := RMS(samples)

	coef := f.Release
	if rms > prev {
		coef = f.Attack
	}
	next := clamp01(prev*(1-coef) + rms*coef)
	f.out.Store(next)
	return next
}

// Level returns the last published value.
func (f *Follower) Level() float64 {
	return f.out.Load()
}

// Loudness returns the scalar the follower writes to.
func (f *Follower) Loudness() *Loudness {
	return f.out
}

// RMS computes the root-mean-square of samples, 0 for an empty slice.
func RMS(samples []float64) float64 {
	return dsptime.RMS(samples)
}
