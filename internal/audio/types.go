// Package audio turns speech clips into the smoothed loudness signal that
// drives the avatar: it fetches and decodes clips, low-passes them, follows
// their envelope and gates speech on and off.
package audio

import (
	"errors"
	"math"
	"sync/atomic"
)

// Common errors
var (
	ErrInvalidFormat     = errors.New("invalid audio format")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyClip         = errors.New("audio clip has no samples")
	ErrClipTooLarge      = errors.New("audio clip too large")
	ErrSessionClosed     = errors.New("audio session closed")
	ErrNoURL             = errors.New("audio url is empty")
)

// AudioFormat represents audio encoding format
type AudioFormat string

const (
	FormatWAV AudioFormat = "wav"
	FormatMP3 AudioFormat = "mp3"
)

// SessionState is the lifecycle state of a playback session
type SessionState string

const (
	StateIdle    SessionState = "idle"
	StatePlaying SessionState = "playing"
	StateEnded   SessionState = "ended"
	StateClosed  SessionState = "closed"
)

// DefaultWindowSize is the snapshot length handed to the follower.
const DefaultWindowSize = 1024

// Loudness is the smoothed envelope shared between the analysis tick and
// the animation tick. It has one writer and any number of readers.
type Loudness struct {
	bits atomic.Uint64
}

// Load returns the current value in [0,1].
func (l *Loudness) Load() float64 {
	return math.Float64frombits(l.bits.Load())
}

// Store sets the value, clamped to [0,1].
func (l *Loudness) Store(v float64) {
	l.bits.Store(math.Float64bits(clamp01(v)))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
