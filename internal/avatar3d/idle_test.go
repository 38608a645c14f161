package avatar3d

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/normanking/interviewavatar/internal/rig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmplitude(t *testing.T) {
	p := NewPoseSynthesizer()
	assert.Equal(t, 0.4, p.Amplitude(0, false))
	assert.Equal(t, 0.4, p.Amplitude(0.5, false))
	assert.InDelta(t, 1.0, p.Amplitude(0.5, true), 1e-12)
	assert.InDelta(t, 1.2, p.Amplitude(1, true), 1e-12, "extra is capped")
}

func TestBoundOffsets(t *testing.T) {
	p := NewPoseSynthesizer()

	assert.Equal(t, Offsets{}, p.Bound(0, 0.4))

	tPeak := math.Pi / 4 // sin(2t) = 1
	o := p.Bound(tPeak, 0.4)
	assert.InDelta(t, mgl64.DegToRad(1.6*0.4), o.HeadYaw, 1e-12)
	assert.InDelta(t, mgl64.DegToRad(math.Sin(3*tPeak)*0.9*0.4), o.HeadPitch, 1e-12)
	assert.InDelta(t, mgl64.DegToRad(math.Sin(1.3*tPeak)*0.5*0.4), o.ChestYaw, 1e-12)
	assert.InDelta(t, mgl64.DegToRad(math.Sin(1.7*tPeak)*0.4*0.4), o.ChestPitch, 1e-12)
}

func TestApplySkipsMissingBones(t *testing.T) {
	p := NewPoseSynthesizer()
	chest := rig.NewNode("upperChest", 1, mgl64.QuatIdent())

	o := p.Apply(rig.Bound{Chest: chest}, 1.0, 0.4)
	assert.Zero(t, o.HeadYaw)
	assert.Zero(t, o.HeadPitch)
	assert.InDelta(t, mgl64.DegToRad(math.Sin(1.3)*0.5*0.4), chest.Yaw(), 1e-12)
	assert.InDelta(t, mgl64.DegToRad(math.Sin(1.7)*0.4*0.4), chest.Pitch(), 1e-12)
	assert.Zero(t, chest.Roll())

	assert.Equal(t, Offsets{}, p.Apply(rig.Detached{}, 1.0, 0.4))
	assert.Equal(t, Offsets{}, p.Apply(rig.Unbound{}, 1.0, 0.4))
}

func TestApplyUnbound(t *testing.T) {
	p := NewPoseSynthesizer()
	root := rig.NewNode("root", 0, mgl64.QuatIdent())

	o := p.Apply(rig.Unbound{Root: root}, 2.0, 0.4)
	assert.InDelta(t, math.Sin(1.2)*0.02*0.4, root.Yaw(), 1e-12)
	assert.InDelta(t, math.Sin(1.8)*0.015*0.4, root.Pitch(), 1e-12)
	assert.Equal(t, root.Yaw(), o.RootYaw)
}

func armRig() *rig.Handle {
	h := rig.NewHandle("arms", nil)
	for _, b := range []rig.BoneName{rig.LeftUpperArm, rig.RightUpperArm, rig.LeftShoulder, rig.RightShoulder} {
		h.AddBone(b, rig.NewNode(string(b), -1, mgl64.QuatIdent()))
	}
	return h
}

func TestRelaxArmsIsIdempotent(t *testing.T) {
	h := armRig()

	RelaxArms(h)
	once := map[rig.BoneName]mgl64.Quat{}
	for _, b := range h.Bones() {
		n, _ := h.Bone(b)
		once[b] = n.Rotation()
	}

	RelaxArms(h)
	for _, b := range h.Bones() {
		n, _ := h.Bone(b)
		assert.True(t, once[b].ApproxEqual(n.Rotation()), string(b))
	}

	left, _ := h.Bone(rig.LeftUpperArm)
	right, _ := h.Bone(rig.RightUpperArm)
	assert.Equal(t, -1.28, left.Roll())
	assert.Equal(t, 1.28, right.Roll())

	ls, _ := h.Bone(rig.LeftShoulder)
	rs, _ := h.Bone(rig.RightShoulder)
	assert.InDelta(t, 5*math.Pi/180, ls.Yaw(), 1e-12)
	assert.InDelta(t, -5*math.Pi/180, rs.Yaw(), 1e-12)
}

func TestRelaxArmsToleratesMissingBones(t *testing.T) {
	h := rig.NewHandle("partial", nil)
	left := rig.NewNode("leftUpperArm", -1, mgl64.QuatIdent())
	h.AddBone(rig.LeftUpperArm, left)

	require.NotPanics(t, func() {
		RelaxArms(h)
		RelaxArms(nil)
		var typedNil *rig.Handle
		RelaxArms(typedNil)
	})
	assert.Equal(t, -1.28, left.Roll())
}
