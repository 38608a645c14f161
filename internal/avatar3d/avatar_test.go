package avatar3d

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/normanking/interviewavatar/internal/bus"
	"github.com/normanking/interviewavatar/internal/frame"
	"github.com/normanking/interviewavatar/internal/rig"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frameStep = 16 * time.Millisecond

type fixedLevel float64

func (l fixedLevel) Load() float64 { return float64(l) }

type harness struct {
	clock  *frame.ManualClock
	sched  *frame.Manual
	frames []Frame
	driver *Driver
}

func newHarness(t *testing.T, level LevelSource) *harness {
	t.Helper()
	h := &harness{clock: frame.NewManualClock(epoch)}
	h.sched = frame.NewManual(h.clock)
	h.driver = NewDriver(Options{
		Scheduler: h.sched,
		Clock:     h.clock,
		Level:     level,
		Host:      HostFunc(func(f Frame) { h.frames = append(h.frames, f) }),
		Rand:      rand.New(rand.NewSource(9)),
		Logger:    zerolog.Nop(),
	})
	return h
}

func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.sched.Step(frameStep)
	}
}

func TestHeadOnlyRigEndToEnd(t *testing.T) {
	h := newHarness(t, fixedLevel(0.5))

	r := rig.NewHandle("head-only", nil)
	head := rig.NewNode("Head", 7, mgl64.QuatIdent())
	r.AddBone(rig.Head, head)
	r.AddChannel(rig.MouthOpen)

	h.driver.Bind(r)
	h.driver.Start()
	require.NotPanics(t, func() { h.step(1) })
	require.Empty(t, h.sched.Panics())

	mouth, ok := r.Expression(rig.MouthOpen)
	require.True(t, ok)
	assert.InDelta(t, 0.9, mouth, 1e-12)

	_, ok = r.Expression(rig.Blink)
	assert.False(t, ok, "blink channel absent")

	tSec := frameStep.Seconds()
	amp := 0.4 + 0.6
	assert.InDelta(t, mgl64.DegToRad(math.Sin(2*tSec)*1.6*amp), head.Yaw(), 1e-12)
	assert.InDelta(t, mgl64.DegToRad(math.Sin(3*tSec)*0.9*amp), head.Pitch(), 1e-12)
	assert.Zero(t, head.Roll())

	require.Len(t, h.frames, 1)
	f := h.frames[0]
	assert.Equal(t, ModeBound, f.Mode)
	assert.True(t, f.Speaking)
	assert.InDelta(t, 1.0, f.Amplitude, 1e-12)
	assert.InDelta(t, tSec, f.DT, 1e-12)
	assert.Zero(t, f.Offsets.ChestYaw)
	require.NotNil(t, f.Pose)
	assert.Contains(t, f.Pose.Bones, rig.Head)
	assert.Equal(t, uint64(1), r.Updates())
}

func TestUnboundRootSwayStaysSmall(t *testing.T) {
	h := newHarness(t, fixedLevel(0))
	root := rig.NewNode("scene", 0, mgl64.QuatIdent())

	h.driver.Bind(rig.NewHandle("geometry", root))
	h.driver.Start()

	for i := 0; i < 900; i++ {
		h.step(1)
		assert.LessOrEqual(t, math.Abs(root.Yaw()), 0.02*0.4+1e-12)
		assert.LessOrEqual(t, math.Abs(root.Pitch()), 0.015*0.4+1e-12)
	}
	assert.Equal(t, ModeUnbound, h.driver.Mode())
	assert.Equal(t, 0.4, h.frames[len(h.frames)-1].Amplitude)
}

func TestDetachedDriverKeepsRendering(t *testing.T) {
	h := newHarness(t, nil)
	h.driver.Start()
	h.driver.Start()
	h.step(3)

	require.Len(t, h.frames, 3)
	for i, f := range h.frames {
		assert.Equal(t, uint64(i), f.Seq)
		assert.Equal(t, ModeDetached, f.Mode)
		assert.Nil(t, f.Pose)
		assert.GreaterOrEqual(t, f.MouthOpen, 0.02)
	}
	assert.Equal(t, time.Duration(3)*frameStep, h.frames[2].Elapsed)
}

// orderRig records the calls the driver makes in one tick.
type orderRig struct {
	head  *rig.Node
	calls []string
}

func (r *orderRig) Bone(name rig.BoneName) (*rig.Node, bool) {
	if name == rig.Head {
		return r.head, true
	}
	return nil, false
}

func (r *orderRig) SetExpression(c rig.Channel, v float64) bool {
	r.calls = append(r.calls, "expr:"+c.String())
	return true
}

func (r *orderRig) Root() (*rig.Node, bool) { return nil, false }

func (r *orderRig) Update(dt float64) {
	if r.head.Yaw() != 0 {
		r.calls = append(r.calls, "pose")
	}
	r.calls = append(r.calls, "update")
}

func TestTickOrder(t *testing.T) {
	r := &orderRig{head: rig.NewNode("head", 0, mgl64.QuatIdent())}
	h := newHarness(t, fixedLevel(0.3))
	h.driver.host = HostFunc(func(Frame) { r.calls = append(r.calls, "render") })

	h.driver.Bind(r)
	h.driver.Start()
	h.step(1)

	assert.Equal(t, []string{"expr:blink", "expr:mouthOpen", "pose", "update", "render"}, r.calls)
}

func TestStopCancelsAndReleasesRig(t *testing.T) {
	h := newHarness(t, fixedLevel(0.2))
	r := rig.NewHandle("r", rig.NewNode("root", 0, mgl64.QuatIdent()))

	h.driver.Bind(r)
	h.driver.Start()
	h.step(2)
	require.True(t, h.driver.Running())

	h.driver.Stop()
	h.driver.Stop()
	assert.False(t, h.driver.Running())
	assert.Zero(t, h.sched.Pending())
	assert.Equal(t, ModeDetached, h.driver.Mode())

	h.step(3)
	assert.Len(t, h.frames, 2)
	assert.Equal(t, uint64(2), r.Updates())
}

func TestStopFromHostDuringTick(t *testing.T) {
	h := newHarness(t, nil)
	h.driver.host = HostFunc(func(f Frame) {
		h.frames = append(h.frames, f)
		if f.Seq == 1 {
			h.driver.Stop()
		}
	})
	h.driver.Start()
	h.step(5)
	assert.Len(t, h.frames, 2)
	assert.Zero(t, h.sched.Pending())
}

func TestBindAppliesRelaxOnceAndPublishes(t *testing.T) {
	h := newHarness(t, nil)
	eventBus := bus.NewEventBus()
	got := make(chan bus.Event, 2)
	eventBus.Subscribe(bus.EventTypeRigBound, func(e bus.Event) { got <- e })
	h.driver.eventBus = eventBus

	r := armRig()
	h.driver.Bind(r)
	h.driver.Start()
	h.step(1)

	left, _ := r.Bone(rig.LeftUpperArm)
	assert.Equal(t, -1.28, left.Roll())

	select {
	case e := <-got:
		assert.Equal(t, ModeDetached, e.Data["mode"], "arms alone do not make a bound rig")
	case <-time.After(2 * time.Second):
		t.Fatal("no rig.bound event")
	}

	h.driver.Unbind()
	h.step(1)
	assert.Equal(t, ModeDetached, h.driver.Mode())
}

func TestSetTuningBetweenTicks(t *testing.T) {
	h := newHarness(t, fixedLevel(0.3))
	r := rig.NewHandle("r", nil)
	r.AddChannel(rig.MouthOpen)
	h.driver.Bind(r)
	h.driver.Start()

	h.step(1)
	first, _ := r.Expression(rig.MouthOpen)
	assert.InDelta(t, 0.54, first, 1e-12)

	tuning := DefaultTuning()
	tuning.MouthGain = 3
	tuning.RelaxArms = false
	h.driver.SetTuning(tuning)
	h.step(1)

	second, _ := r.Expression(rig.MouthOpen)
	assert.InDelta(t, 0.9, second, 1e-12)
}

// panicRig fails on every expression write.
type panicRig struct{ orderRig }

func (r *panicRig) SetExpression(rig.Channel, float64) bool { panic("rig exploded") }

func TestRigPanicKeepsDriverTicking(t *testing.T) {
	h := newHarness(t, fixedLevel(0.3))
	h.driver.Bind(&panicRig{orderRig{head: rig.NewNode("head", 0, mgl64.QuatIdent())}})
	h.driver.Start()
	h.step(3)

	assert.Len(t, h.sched.Panics(), 3)
	assert.True(t, h.driver.Running())
	assert.Equal(t, 1, h.sched.Pending())

	h.driver.Unbind()
	h.step(1)
	require.Len(t, h.frames, 1)
	assert.Equal(t, ModeDetached, h.frames[0].Mode)
}

func TestBindQueuedBeforeStopIsDropped(t *testing.T) {
	h := newHarness(t, fixedLevel(0.2))
	h.driver.Start()
	h.step(1)

	r := rig.NewHandle("late", rig.NewNode("root", 0, mgl64.QuatIdent()))
	h.driver.Bind(r)
	h.driver.Stop()
	h.step(1)

	assert.Equal(t, ModeDetached, h.driver.Mode())
	assert.Zero(t, r.Updates())

	// A bind issued after Stop still applies.
	h.driver.Bind(r)
	h.step(1)
	assert.Equal(t, ModeUnbound, h.driver.Mode())
	assert.Empty(t, h.sched.Panics())
}
