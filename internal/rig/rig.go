// Package rig models the animatable parts of a humanoid avatar: named bone
// nodes, a fixed set of expression channels and a root transform. Any of
// them may be missing; lookups report absence instead of failing.
package rig

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Rig is what the animation driver needs from a loaded avatar.
type Rig interface {
	// Bone returns the node bound to name, if the rig has one.
	Bone(name BoneName) (*Node, bool)
	// SetExpression writes a channel value and reports whether the rig
	// exposes that channel.
	SetExpression(c Channel, value float64) bool
	// Root returns the transform used for whole-body sway.
	Root() (*Node, bool)
	// Update finalizes the pose once per tick after all procedural writes.
	Update(dt float64)
}

// Pose is a snapshot of a rig taken by Update.
type Pose struct {
	Bones       map[BoneName]mgl64.Quat
	Root        *mgl64.Quat
	Expressions map[string]float64
	Elapsed     float64
}

// Handle is the concrete Rig built by the asset loader. It is not safe for
// concurrent use; the frame scheduler serializes access.
type Handle struct {
	Name string

	bones    map[BoneName]*Node
	root     *Node
	present  [ChannelCount]bool
	weights  Weights
	elapsed  float64
	updates  uint64
	lastPose Pose
}

// NewHandle creates an empty rig. root may be nil.
func NewHandle(name string, root *Node) *Handle {
	return &Handle{
		Name:  name,
		bones: make(map[BoneName]*Node),
		root:  root,
	}
}

// AddBone binds a node to a bone name, replacing any earlier binding.
func (h *Handle) AddBone(name BoneName, n *Node) {
	if n == nil {
		return
	}
	h.bones[name] = n
}

// AddChannel marks an expression channel as available.
func (h *Handle) AddChannel(c Channel) {
	if c >= 0 && c < ChannelCount {
		h.present[c] = true
	}
}

// SetRoot replaces the root transform.
func (h *Handle) SetRoot(n *Node) {
	h.root = n
}

// Bone and the other Rig methods treat a nil *Handle as an empty rig.
func (h *Handle) Bone(name BoneName) (*Node, bool) {
	if h == nil {
		return nil, false
	}
	n, ok := h.bones[name]
	return n, ok
}

func (h *Handle) Root() (*Node, bool) {
	if h == nil {
		return nil, false
	}
	return h.root, h.root != nil
}

func (h *Handle) SetExpression(c Channel, value float64) bool {
	if h == nil || c < 0 || c >= ChannelCount || !h.present[c] {
		return false
	}
	h.weights.Set(c, value)
	return true
}

// Expression reads back a channel value.
func (h *Handle) Expression(c Channel) (float64, bool) {
	if h == nil || c < 0 || c >= ChannelCount || !h.present[c] {
		return 0, false
	}
	return h.weights.Get(c), true
}

// Bones lists the bound bone names in sorted order.
func (h *Handle) Bones() []BoneName {
	names := make([]BoneName, 0, len(h.bones))
	for name := range h.bones {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Channels lists the available expression channels.
func (h *Handle) Channels() []Channel {
	var out []Channel
	for c := Channel(0); c < ChannelCount; c++ {
		if h.present[c] {
			out = append(out, c)
		}
	}
	return out
}

// Update advances the rig clock and snapshots the composed pose.
func (h *Handle) Update(dt float64) {
	if h == nil {
		return
	}
	if dt > 0 {
		h.elapsed += dt
	}
	h.updates++

	pose := Pose{
		Bones:       make(map[BoneName]mgl64.Quat, len(h.bones)),
		Expressions: make(map[string]float64),
		Elapsed:     h.elapsed,
	}
	for name, n := range h.bones {
		pose.Bones[name] = n.Rotation()
	}
	if h.root != nil {
		q := h.root.Rotation()
		pose.Root = &q
	}
	for _, c := range h.Channels() {
		pose.Expressions[c.String()] = h.weights.Get(c)
	}
	h.lastPose = pose
}

// Pose returns the snapshot taken by the last Update.
func (h *Handle) Pose() Pose {
	if h == nil {
		return Pose{}
	}
	return h.lastPose
}

// Updates returns how many times Update has run.
func (h *Handle) Updates() uint64 {
	if h == nil {
		return 0
	}
	return h.updates
}

var _ Rig = (*Handle)(nil)
