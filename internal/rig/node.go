package rig

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Node is a transform the animation layer can rotate. The procedural
// offset is layered on top of the rest rotation read from the asset and is
// the only part the driver writes.
type Node struct {
	Name  string
	Index int // scene node index, -1 for nodes not backed by an asset

	Rest        mgl64.Quat
	Translation mgl64.Vec3

	// Offset holds Euler angles in radians: X pitch, Y yaw, Z roll.
	Offset mgl64.Vec3
}

// NewNode creates a node at rest with no offset.
func NewNode(name string, index int, rest mgl64.Quat) *Node {
	if rest.Len() == 0 {
		rest = mgl64.QuatIdent()
	}
	return &Node{Name: name, Index: index, Rest: rest}
}

func (n *Node) Pitch() float64 { return n.Offset[0] }
func (n *Node) Yaw() float64   { return n.Offset[1] }
func (n *Node) Roll() float64  { return n.Offset[2] }

func (n *Node) SetPitch(rad float64) { n.Offset[0] = rad }
func (n *Node) SetYaw(rad float64)   { n.Offset[1] = rad }
func (n *Node) SetRoll(rad float64)  { n.Offset[2] = rad }

// ResetOffset returns the node to its rest rotation.
func (n *Node) ResetOffset() {
	n.Offset = mgl64.Vec3{}
}

// Rotation composes the rest rotation with the procedural offset.
func (n *Node) Rotation() mgl64.Quat {
	off := mgl64.AnglesToQuat(n.Offset[0], n.Offset[1], n.Offset[2], mgl64.XYZ)
	return n.Rest.Mul(off).Normalize()
}
