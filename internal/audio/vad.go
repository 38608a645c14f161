package audio

import (
	"sync"
	"time"

	"github.com/normanking/interviewavatar/internal/bus"
	"github.com/rs/zerolog"
)

// SpeechGate turns the loudness envelope into speech start/end events. It
// opens when loudness reaches the open threshold and closes once loudness
// has stayed under the close threshold for longer than the hangover.
type SpeechGate struct {
	config   GateConfig
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu        sync.Mutex
	active    bool
	startedAt time.Time
	lastAbove time.Time
}

// GateConfig holds the gate thresholds
type GateConfig struct {
	Open     float64       `json:"open"`
	Close    float64       `json:"close"`
	Hangover time.Duration `json:"hangover"`
}

// DefaultGateConfig returns sensible defaults
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Open:     0.05,
		Close:    0.02,
		Hangover: 300 * time.Millisecond,
	}
}

// NewSpeechGate creates a gate publishing on eventBus, which may be nil.
func NewSpeechGate(config GateConfig, eventBus *bus.EventBus, logger zerolog.Logger) *SpeechGate {
	return &SpeechGate{
		config:   config,
		eventBus: eventBus,
		logger:   logger.With().Str("component", "speech_gate").Logger(),
	}
}

// Update feeds one loudness value observed at now and reports whether
// speech is active afterwards.
func (g *SpeechGate) Update(level float64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		if level >= g.config.Open {
			g.active = true
			g.startedAt = now
			g.lastAbove = now
			g.logger.Debug().Float64("level", level).Msg("Speech started")
			g.eventBus.Publish(bus.Event{
				Type: bus.EventTypeSpeechStart,
				Data: map[string]any{"level": level},
			})
		}
		return g.active
	}

	if level >= g.config.Close {
		g.lastAbove = now
		return true
	}

	if now.Sub(g.lastAbove) > g.config.Hangover {
		g.active = false
		duration := g.lastAbove.Sub(g.startedAt)
		g.logger.Debug().Dur("duration", duration).Msg("Speech ended")
		g.eventBus.Publish(bus.Event{
			Type: bus.EventTypeSpeechEnd,
			Data: map[string]any{"duration_ms": duration.Milliseconds()},
		})
	}
	return g.active
}

// IsActive returns whether speech is currently detected
func (g *SpeechGate) IsActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Reset closes the gate without publishing
func (g *SpeechGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = false
}

// UpdateConfig replaces the thresholds
func (g *SpeechGate) UpdateConfig(config GateConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config = config
}
