package constraint

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ContactBody is one side of a voxel to voxel contact: the voxel, its material and
// the radius of its collision envelope.
type ContactBody struct {
	End
	Radius float64
}

// Contact is a penalty spring between two non-adjacent voxels whose collision
// envelopes overlap. The force is recomputed every step from the current positions.
type Contact struct {
	A, B int

	// Normal points from A to B
	Normal      mgl64.Vec3
	Penetration float64

	// force acting on A, world frame
	force mgl64.Vec3
}

func NewContact(a, b int) *Contact {
	return &Contact{A: a, B: b}
}

// Update recomputes the penetration and the force. Separated envelopes produce no force;
// otherwise the push is k·depth plus c times the approach speed, never pulling.
func (c *Contact) Update(a, b ContactBody) {
	delta := b.Voxel.Position().Sub(a.Voxel.Position())
	distance := delta.Len()

	c.Penetration = a.Radius + b.Radius - distance
	if c.Penetration <= 0 {
		c.Penetration = 0
		c.force = mgl64.Vec3{}
		return
	}

	if distance > 0 {
		c.Normal = delta.Mul(1 / distance)
	} else {
		c.Normal = mgl64.Vec3{0, 0, 1}
	}

	stiffness := CombineStiffness(a.Material, b.Material)
	damping := CombineDamping(a.Material, b.Material)
	approachSpeed := a.Voxel.Velocity.Sub(b.Voxel.Velocity).Dot(c.Normal)

	magnitude := stiffness*c.Penetration + damping*approachSpeed
	if magnitude < 0 {
		magnitude = 0
	}
	c.force = c.Normal.Mul(-magnitude)
}

// IsTouching reports whether the envelopes overlapped at the last update
func (c *Contact) IsTouching() bool {
	return c.Penetration > 0
}

// ForceOn returns the world-space force on voxel, zero if it is not part of the contact
func (c *Contact) ForceOn(voxel int) mgl64.Vec3 {
	switch voxel {
	case c.A:
		return c.force
	case c.B:
		return c.force.Mul(-1)
	default:
		return mgl64.Vec3{}
	}
}
