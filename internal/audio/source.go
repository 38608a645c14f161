package audio

import (
	"sync"
	"time"

	"github.com/normanking/interviewavatar/internal/frame"
)

// Source supplies fixed-size windows of already low-passed samples.
type Source interface {
	// Snapshot fills dst with the most recent samples and reports false
	// once playback has finished.
	Snapshot(dst []float64) bool
	Close() error
}

// ClipSource plays a decoded clip against a clock. The playback cursor is
// derived from the time since Play, so analysis stays in step with the
// clock rather than with how often Snapshot is called.
type ClipSource struct {
	clock frame.Clock

	mu       sync.Mutex
	samples  []float64
	rate     int
	started  time.Time
	playing  bool
	closed   bool
	finished bool
}

// NewClipSource low-passes clip at cutoff Hz and prepares it for playback.
// A non-positive cutoff leaves the samples untouched.
func NewClipSource(clip *Clip, cutoff, q float64, clock frame.Clock) *ClipSource {
	if clock == nil {
		clock = frame.SystemClock{}
	}
	samples := make([]float64, len(clip.Samples))
	copy(samples, clip.Samples)
	if cutoff > 0 {
		NewLowPass(cutoff, q, clip.SampleRate).ProcessInPlace(samples)
	}
	return &ClipSource{clock: clock, samples: samples, rate: clip.SampleRate}
}

// Play starts the playback cursor. Calling it again restarts the clip.
func (s *ClipSource) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.started = s.clock.Now()
	s.playing = true
	s.finished = false
}

// Position returns how far playback has advanced.
func (s *ClipSource) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position()
}

func (s *ClipSource) position() time.Duration {
	if !s.playing {
		return 0
	}
	return s.clock.Now().Sub(s.started)
}

func (s *ClipSource) Snapshot(dst []float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range dst {
		dst[i] = 0
	}
	if s.closed || !s.playing || s.rate <= 0 {
		return !s.closed && !s.finished
	}

	cursor := int(s.position().Seconds() * float64(s.rate))
	if cursor >= len(s.samples) {
		s.finished = true
		return false
	}

	// Window ends at the cursor; the part before the clip start is silence.
	start := cursor - len(dst)
	for i := range dst {
		j := start + i
		if j >= 0 && j < len(s.samples) {
			dst[i] = s.samples[j]
		}
	}
	return true
}

func (s *ClipSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.playing = false
	s.samples = nil
	return nil
}

var _ Source = (*ClipSource)(nil)
