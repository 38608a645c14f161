package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/normanking/interviewavatar/internal/bus"
	"github.com/normanking/interviewavatar/internal/frame"
	"github.com/rs/zerolog"
)

// Options configures clip analysis
type Options struct {
	WindowSize int
	Cutoff     float64
	Q          float64
	Attack     float64
	Release    float64
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		WindowSize: DefaultWindowSize,
		Cutoff:     DefaultCutoff,
		Attack:     DefaultAttack,
		Release:    DefaultRelease,
	}
}

// Manager owns the single active audio session and the loudness value it
// feeds. Starting a session always tears the previous one down first, so at
// most one analysis tick ever writes the loudness.
type Manager struct {
	fetcher  *Fetcher
	sched    frame.Scheduler
	clock    frame.Clock
	gate     *SpeechGate
	eventBus *bus.EventBus
	logger   zerolog.Logger
	loudness Loudness

	startMu sync.Mutex

	mu      sync.Mutex
	opts    Options
	current *Session
}

// NewManager creates a new audio manager. gate and eventBus may be nil.
func NewManager(opts Options, fetcher *Fetcher, sched frame.Scheduler, clock frame.Clock, gate *SpeechGate, eventBus *bus.EventBus, logger zerolog.Logger) *Manager {
	if fetcher == nil {
		fetcher = NewFetcher("", 0)
	}
	if clock == nil {
		clock = frame.SystemClock{}
	}
	return &Manager{
		opts:     opts,
		fetcher:  fetcher,
		sched:    sched,
		clock:    clock,
		gate:     gate,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "audio").Logger(),
	}
}

// Loudness returns the shared envelope value. It outlives sessions: a
// failed start leaves the last value in place.
func (m *Manager) Loudness() *Loudness {
	return &m.loudness
}

// Level returns the current loudness
func (m *Manager) Level() float64 {
	return m.loudness.Load()
}

// StartSession fetches and decodes url, then starts playing it.
func (m *Manager) StartSession(ctx context.Context, url string) (*Session, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.stopLocked("replaced")

	data, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, m.fail(url, err)
	}
	clip, err := Decode(data)
	if err != nil {
		return nil, m.fail(url, fmt.Errorf("failed to decode %s: %w", url, err))
	}
	return m.play(url, clip), nil
}

// StartClip plays an already decoded clip.
func (m *Manager) StartClip(label string, clip *Clip) (*Session, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.stopLocked("replaced")

	if clip == nil || len(clip.Samples) == 0 {
		return nil, m.fail(label, ErrEmptyClip)
	}
	return m.play(label, clip), nil
}

func (m *Manager) play(url string, clip *Clip) *Session {
	m.mu.Lock()
	opts := m.opts
	m.mu.Unlock()

	follower := NewFollower(&m.loudness)
	follower.Attack = opts.Attack
	follower.Release = opts.Release

	src := NewClipSource(clip, opts.Cutoff, opts.Q, m.clock)
	sess := newSession(url, src, follower, m.gate, m.sched, opts.WindowSize, m.eventBus, m.logger)
	sess.Duration = clip.Duration()

	src.Play()
	sess.start()

	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	m.logger.Info().
		Str("session", sess.ID).
		Str("url", url).
		Str("format", string(clip.Format)).
		Int("sample_rate", clip.SampleRate).
		Dur("duration", sess.Duration).
		Msg("Audio session started")
	m.eventBus.Publish(bus.Event{
		Type: bus.EventTypeSessionStarted,
		Data: map[string]any{
			"session_id":  sess.ID,
			"url":         url,
			"duration_ms": sess.Duration.Milliseconds(),
		},
	})
	return sess
}

func (m *Manager) fail(url string, err error) error {
	m.logger.Error().Err(err).Str("url", url).Msg("Audio session failed")
	m.eventBus.Publish(bus.Event{
		Type: bus.EventTypeSessionFailed,
		Data: map[string]any{"url": url, "error": err.Error()},
	})
	return err
}

// StopSession tears down the active session, if any.
func (m *Manager) StopSession() {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.stopLocked("stopped")
}

func (m *Manager) stopLocked(reason string) {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.mu.Unlock()

	if sess == nil {
		return
	}
	sess.Close()
	if m.gate != nil {
		m.gate.Reset()
	}
	m.logger.Info().Str("session", sess.ID).Str("reason", reason).Msg("Audio session stopped")
	m.eventBus.Publish(bus.Event{
		Type: bus.EventTypeSessionStopped,
		Data: map[string]any{"session_id": sess.ID, "reason": reason},
	})
}

// Current returns the active session or nil
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetOptions changes analysis options for sessions started afterwards.
func (m *Manager) SetOptions(opts Options) {
	m.mu.Lock()
	m.opts = opts
	m.mu.Unlock()
}

// Stop tears down the active session
func (m *Manager) Stop() {
	m.StopSession()
	m.logger.Info().Msg("Audio manager stopped")
}
