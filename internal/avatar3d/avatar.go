// Package avatar3d drives a rigged avatar from a loudness signal: blinks,
// mouth movement and a light upper-body sway, applied once per frame.
package avatar3d

import (
	"math/rand"
	"sync"
	"time"

	"github.com/normanking/interviewavatar/internal/bus"
	"github.com/normanking/interviewavatar/internal/config"
	"github.com/normanking/interviewavatar/internal/frame"
	"github.com/normanking/interviewavatar/internal/rig"
	"github.com/rs/zerolog"
)

// LevelSource supplies the current smoothed loudness in [0,1].
type LevelSource interface {
	Load() float64
}

// Host renders a frame once all procedural state has been applied.
type Host interface {
	Render(f Frame)
}

// HostFunc adapts a function to Host.
type HostFunc func(f Frame)

func (fn HostFunc) Render(f Frame) { fn(f) }

// Frame describes what one tick wrote to the rig.
type Frame struct {
	Seq       uint64        `json:"seq"`
	Elapsed   time.Duration `json:"elapsed"`
	DT        float64       `json:"dt"`
	Level     float64       `json:"level"`
	Speaking  bool          `json:"speaking"`
	MouthOpen float64       `json:"mouth_open"`
	Blink     float64       `json:"blink"`
	Amplitude float64       `json:"amplitude"`
	Mode      string        `json:"mode"`
	Offsets   Offsets       `json:"offsets"`
	Pose      *rig.Pose     `json:"-"`
}

// Binding modes reported in Frame.Mode.
const (
	ModeBound    = "bound"
	ModeUnbound  = "unbound"
	ModeDetached = "detached"
)

// Tuning holds the adjustable animation constants.
type Tuning struct {
	SpeakingThreshold float64
	MouthGain         float64
	BlinkInterval     time.Duration
	BlinkJitter       time.Duration
	BlinkDuration     time.Duration
	PoseBase          float64
	PoseGain          float64
	PoseMaxExtra      float64
	RelaxArms         bool
}

// DefaultTuning returns the stock animation constants.
func DefaultTuning() Tuning {
	return TuningFromConfig(config.DefaultConfig().Animation)
}

// TuningFromConfig extracts the driver tuning from the animation section.
func TuningFromConfig(c config.AnimationConfig) Tuning {
	return Tuning{
		SpeakingThreshold: c.SpeakingThreshold,
		MouthGain:         c.MouthGain,
		BlinkInterval:     c.BlinkInterval,
		BlinkJitter:       c.BlinkJitter,
		BlinkDuration:     c.BlinkDuration,
		PoseBase:          c.PoseBase,
		PoseGain:          c.PoseGain,
		PoseMaxExtra:      c.PoseMaxExtra,
		RelaxArms:         c.RelaxArms,
	}
}

// Options configures a Driver. Scheduler and Level are required.
type Options struct {
	Scheduler frame.Scheduler
	Clock     frame.Clock
	Level     LevelSource
	Host      Host
	Rand      *rand.Rand
	Tuning    Tuning
	EventBus  *bus.EventBus
	Logger    zerolog.Logger
}

// Driver is the per-frame animation clock. Each tick reads the loudness,
// runs blink, expression and pose in that order, finalizes the rig, renders
// and schedules the next tick.
type Driver struct {
	sched    frame.Scheduler
	clock    frame.Clock
	level    LevelSource
	host     Host
	eventBus *bus.EventBus
	logger   zerolog.Logger

	mu      sync.Mutex
	blink   *BlinkScheduler
	expr    ExpressionDriver
	pose    PoseSynthesizer
	relax   bool
	rig     rig.Rig
	binding rig.Binding
	start   time.Time
	last    time.Time
	handle  frame.Handle
	running bool
	seq     uint64
	gen     uint64 // bumped by Stop
}

// NewDriver creates a stopped driver. Its clock starts now.
func NewDriver(opts Options) *Driver {
	clock := opts.Clock
	if clock == nil {
		clock = frame.SystemClock{}
	}
	host := opts.Host
	if host == nil {
		host = HostFunc(func(Frame) {})
	}
	now := clock.Now()

	d := &Driver{
		sched:    opts.Scheduler,
		clock:    clock,
		level:    opts.Level,
		host:     host,
		eventBus: opts.EventBus,
		logger:   opts.Logger.With().Str("component", "avatar3d").Logger(),
		blink:    NewBlinkScheduler(now, opts.Rand),
		expr:     NewExpressionDriver(),
		pose:     NewPoseSynthesizer(),
		binding:  rig.Detached{},
		start:    now,
		last:     now,
	}
	d.applyTuning(opts.Tuning)
	return d
}

func (d *Driver) applyTuning(t Tuning) {
	if t == (Tuning{}) {
		t = DefaultTuning()
	}
	d.expr.Threshold = t.SpeakingThreshold
	d.expr.Gain = t.MouthGain
	d.pose.Base = t.PoseBase
	d.pose.Gain = t.PoseGain
	d.pose.MaxExtra = t.PoseMaxExtra
	d.blink.SetTiming(t.BlinkInterval, t.BlinkJitter, t.BlinkDuration)
	d.relax = t.RelaxArms
}

// Start schedules the first tick. Starting a running driver does nothing.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.handle = d.sched.RequestFrame(d.tick)
	d.logger.Info().Msg("Animation driver started")
}

// Stop cancels the pending tick and releases the rig. A tick already in
// progress finishes first.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.running = false
	d.gen++
	d.sched.CancelFrame(d.handle)
	d.rig = nil
	d.binding = rig.Detached{}
	d.logger.Info().Uint64("frames", d.seq).Msg("Animation driver stopped")
}

// Bind attaches r between ticks. The arm relax pose is applied once here.
// A bind still queued when Stop is called is dropped.
func (d *Driver) Bind(r rig.Rig) {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	d.sched.Post(func() {
		d.mu.Lock()
		if d.gen != gen {
			d.mu.Unlock()
			d.logger.Debug().Msg("Dropped bind queued before stop")
			return
		}
		d.rig = r
		d.binding = rig.Bind(r)
		if d.relax {
			RelaxArms(r)
		}
		mode := modeOf(d.binding)
		d.mu.Unlock()

		d.logger.Info().Str("mode", mode).Msg("Rig bound")
		d.eventBus.Publish(bus.Event{
			Type: bus.EventTypeRigBound,
			Data: map[string]any{"mode": mode},
		})
	})
}

// Unbind detaches the rig between ticks.
func (d *Driver) Unbind() {
	d.sched.Post(func() {
		d.mu.Lock()
		d.rig = nil
		d.binding = rig.Detached{}
		d.mu.Unlock()

		d.logger.Info().Msg("Rig unbound")
		d.eventBus.Publish(bus.Event{Type: bus.EventTypeRigUnbound})
	})
}

// SetTuning replaces the animation constants between ticks.
func (d *Driver) SetTuning(t Tuning) {
	d.sched.Post(func() {
		d.mu.Lock()
		d.applyTuning(t)
		d.mu.Unlock()
		d.logger.Debug().Msg("Animation tuning updated")
	})
}

// Running reports whether ticks are scheduled.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Mode reports the current binding mode.
func (d *Driver) Mode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return modeOf(d.binding)
}

func (d *Driver) tick(now time.Time) {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()
	defer d.reschedule(gen)

	f, ok := d.step(now)
	if !ok {
		return
	}
	d.host.Render(f)
}

// reschedule requests the next tick unless the driver was stopped since
// the tick for gen began.
func (d *Driver) reschedule(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running && d.gen == gen {
		d.handle = d.sched.RequestFrame(d.tick)
	}
}

// step applies one frame of procedural state to the rig.
func (d *Driver) step(now time.Time) (Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return Frame{}, false
	}

	dt := now.Sub(d.last).Seconds()
	if dt < 0 {
		dt = 0
	}
	d.last = now
	elapsed := now.Sub(d.start)

	level := 0.0
	if d.level != nil {
		level = d.level.Load()
	}
	speaking := d.expr.Speaking(level)

	blink := d.blink.Update(now)
	mouth := d.expr.MouthOpen(level, elapsed)
	if d.rig != nil {
		d.rig.SetExpression(rig.Blink, blink)
		d.rig.SetExpression(rig.MouthOpen, mouth)
	}

	amp := d.pose.Amplitude(level, speaking)
	offsets := d.pose.Apply(d.binding, elapsed.Seconds(), amp)

	f := Frame{
		Seq:       d.seq,
		Elapsed:   elapsed,
		DT:        dt,
		Level:     level,
		Speaking:  speaking,
		MouthOpen: mouth,
		Blink:     blink,
		Amplitude: amp,
		Mode:      modeOf(d.binding),
		Offsets:   offsets,
	}
	d.seq++

	if d.rig != nil {
		d.rig.Update(dt)
		if p, ok := d.rig.(interface{ Pose() rig.Pose }); ok {
			pose := p.Pose()
			f.Pose = &pose
		}
	}
	return f, true
}

func modeOf(b rig.Binding) string {
	switch b.(type) {
	case rig.Bound:
		return ModeBound
	case rig.Unbound:
		return ModeUnbound
	default:
		return ModeDetached
	}
}
