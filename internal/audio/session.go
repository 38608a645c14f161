package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/normanking/interviewavatar/internal/bus"
	"github.com/normanking/interviewavatar/internal/frame"
	"github.com/rs/zerolog"
)

// Session is one clip being played and analysed. Its analysis tick runs
// once per frame on the scheduler until Close.
type Session struct {
	ID       string
	URL      string
	Duration time.Duration

	source   Source
	follower *Follower
	gate     *SpeechGate
	sched    frame.Scheduler
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu     sync.Mutex
	buf    []float64
	handle frame.Handle
	state  SessionState
	ticks  uint64
}

func newSession(url string, src Source, follower *Follower, gate *SpeechGate, sched frame.Scheduler, windowSize int, eventBus *bus.EventBus, logger zerolog.Logger) *Session {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	id := uuid.NewString()
	return &Session{
		ID:       id,
		URL:      url,
		source:   src,
		follower: follower,
		gate:     gate,
		sched:    sched,
		eventBus: eventBus,
		logger:   logger.With().Str("session", id).Logger(),
		buf:      make([]float64, windowSize),
		state:    StateIdle,
	}
}

func (s *Session) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StatePlaying
	s.handle = s.sched.RequestFrame(s.tick)
}

// tick analyses one window. After the clip ends it keeps feeding silence so
// the envelope releases back towards zero.
func (s *Session) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}

	playing := s.source.Snapshot(s.buf)
	level := s.follower.Process(s.buf)
	if s.gate != nil {
		s.gate.Update(level, now)
	}
	s.ticks++

	if !playing && s.state == StatePlaying {
		s.state = StateEnded
		s.logger.Info().Uint64("ticks", s.ticks).Msg("Audio clip ended")
		s.eventBus.Publish(bus.Event{
			Type: bus.EventTypeSessionStopped,
			Data: map[string]any{"session_id": s.ID, "reason": "ended"},
		})
	}

	s.handle = s.sched.RequestFrame(s.tick)
}

// State returns the session state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ticks returns how many analysis ticks have run
func (s *Session) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Close stops the analysis tick and releases the source. It never fails;
// release errors are logged. Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.sched.CancelFrame(s.handle)

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn().Interface("panic", r).Msg("Audio source panicked on close")
			}
		}()
		if err := s.source.Close(); err != nil && !errors.Is(err, ErrSessionClosed) {
			s.logger.Warn().Err(err).Msg("Failed to release audio source")
		}
	}()
	s.logger.Debug().Msg("Audio session closed")
}
