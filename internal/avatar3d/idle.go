package avatar3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/normanking/interviewavatar/internal/rig"
)

// Arm relax pose applied once when a rig is bound.
const (
	ArmRelaxAngle      = 1.28
	ShoulderRelaxAngle = 5.0 // degrees
)

// PoseSynthesizer produces the small head and chest sway layered over the
// rest pose, or a whole-body sway from the root when no bones are bound.
// Frequencies differ per axis so the motion never lines up into a visible
// loop.
type PoseSynthesizer struct {
	Base     float64
	Gain     float64
	MaxExtra float64
}

// Offsets are the procedural rotations written in one tick, in radians.
type Offsets struct {
	HeadYaw    float64 `json:"head_yaw"`
	HeadPitch  float64 `json:"head_pitch"`
	ChestYaw   float64 `json:"chest_yaw"`
	ChestPitch float64 `json:"chest_pitch"`
	RootYaw    float64 `json:"root_yaw"`
	RootPitch  float64 `json:"root_pitch"`
}

// NewPoseSynthesizer returns a synthesizer with the default tuning.
func NewPoseSynthesizer() PoseSynthesizer {
	return PoseSynthesizer{Base: 0.4, Gain: 1.2, MaxExtra: 0.8}
}

// Amplitude scales the sway: always Base, plus extra while speaking.
func (p PoseSynthesizer) Amplitude(level float64, speaking bool) float64 {
	if !speaking {
		return p.Base
	}
	return p.Base + math.Min(p.MaxExtra, level*p.Gain)
}

// Bound computes head and chest offsets at t seconds.
func (p PoseSynthesizer) Bound(t, amp float64) Offsets {
	return Offsets{
		HeadYaw:    mgl64.DegToRad(math.Sin(t*2.0) * 1.6 * amp),
		HeadPitch:  mgl64.DegToRad(math.Sin(t*3.0) * 0.9 * amp),
		ChestYaw:   mgl64.DegToRad(math.Sin(t*1.3) * 0.5 * amp),
		ChestPitch: mgl64.DegToRad(math.Sin(t*1.7) * 0.4 * amp),
	}
}

// Unbound computes the root sway at t seconds.
func (p PoseSynthesizer) Unbound(t, amp float64) Offsets {
	return Offsets{
		RootYaw:   math.Sin(t*0.6) * 0.02 * amp,
		RootPitch: math.Sin(t*0.9) * 0.015 * amp,
	}
}

// Apply writes the sway for binding and returns what it wrote. Missing
// bones are skipped.
func (p PoseSynthesizer) Apply(binding rig.Binding, t, amp float64) Offsets {
	switch b := binding.(type) {
	case rig.Bound:
		o := p.Bound(t, amp)
		if b.Head != nil {
			b.Head.SetYaw(o.HeadYaw)
			b.Head.SetPitch(o.HeadPitch)
		} else {
			o.HeadYaw, o.HeadPitch = 0, 0
		}
		if b.Chest != nil {
			b.Chest.SetYaw(o.ChestYaw)
			b.Chest.SetPitch(o.ChestPitch)
		} else {
			o.ChestYaw, o.ChestPitch = 0, 0
		}
		return o
	case rig.Unbound:
		if b.Root == nil {
			return Offsets{}
		}
		o := p.Unbound(t, amp)
		b.Root.SetYaw(o.RootYaw)
		b.Root.SetPitch(o.RootPitch)
		return o
	default:
		return Offsets{}
	}
}

// RelaxArms lowers the upper arms from the bind pose towards the body and
// turns the shoulders slightly in. It sets absolute angles, so applying it
// again changes nothing.
func RelaxArms(r rig.Rig) {
	if r == nil {
		return
	}
	if n, ok := r.Bone(rig.LeftUpperArm); ok {
		n.SetRoll(-ArmRelaxAngle)
	}
	if n, ok := r.Bone(rig.RightUpperArm); ok {
		n.SetRoll(ArmRelaxAngle)
	}
	if n, ok := r.Bone(rig.LeftShoulder); ok {
		n.SetYaw(mgl64.DegToRad(ShoulderRelaxAngle))
	}
	if n, ok := r.Bone(rig.RightShoulder); ok {
		n.SetYaw(-mgl64.DegToRad(ShoulderRelaxAngle))
	}
}
