package audio

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// DefaultCutoff keeps vowel energy and drops sibilance before analysis.
const DefaultCutoff = 1400.0

// LowPass is the analysis pre-stage: one RBJ low-pass biquad section.
type LowPass struct {
	*biquad.Section
	sampleRate float64
}

// NewLowPass designs a low-pass at cutoff Hz for the given sample rate. A
// non-positive q selects a Butterworth response. The cutoff is clamped
// below Nyquist.
func NewLowPass(cutoff, q float64, sampleRate int) *LowPass {
	if q <= 0 {
		q = 1 / math.Sqrt2
	}
	fs := float64(sampleRate)
	if cutoff >= fs/2 {
		cutoff = fs/2 - 1
	}
	if cutoff <= 0 {
		cutoff = 1
	}
	return &LowPass{
		Section:    biquad.NewSection(design.Lowpass(cutoff, q, fs)),
		sampleRate: fs,
	}
}

// Tick filters one sample.
func (f *LowPass) Tick(x float64) float64 {
	return f.ProcessSample(x)
}

// ProcessInPlace filters buf in place, carrying state across calls.
func (f *LowPass) ProcessInPlace(buf []float64) {
	f.ProcessBlock(buf)
}

// MagnitudeAt returns the filter's gain at freq Hz.
func (f *LowPass) MagnitudeAt(freq float64) float64 {
	return math.Sqrt(f.Coefficients.MagnitudeSquared(freq, f.sampleRate))
}
