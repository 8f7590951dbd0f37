package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of a voxel envelope
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
)

// ShapeInterface is implemented by the envelopes used for contact
type ShapeInterface interface {
	Type() ShapeType
	// ComputeAABB calculates the axis-aligned bounding box for the shape
	// at the given transform
	ComputeAABB(transform Transform)
	GetAABB() AABB
	// Support returns the farthest local point along direction
	Support(direction mgl64.Vec3) mgl64.Vec3
}

// Box is the cube of a voxel, defined by its half-extents
type Box struct {
	HalfExtents mgl64.Vec3
	aabb        AABB
}

// NewCube creates a box of edge size
func NewCube(size float64) *Box {
	h := size / 2
	return &Box{HalfExtents: mgl64.Vec3{h, h, h}}
}

func (b *Box) Type() ShapeType {
	return ShapeTypeBox
}

func (b *Box) ComputeAABB(transform Transform) {
	corners := b.Corners()

	worldCorner := transform.Apply(corners[0])
	min := worldCorner
	max := worldCorner

	for i := 1; i < 8; i++ {
		worldCorner = transform.Apply(corners[i])

		min[0] = math.Min(min[0], worldCorner[0])
		min[1] = math.Min(min[1], worldCorner[1])
		min[2] = math.Min(min[2], worldCorner[2])

		max[0] = math.Max(max[0], worldCorner[0])
		max[1] = math.Max(max[1], worldCorner[1])
		max[2] = math.Max(max[2], worldCorner[2])
	}

	b.aabb = AABB{Min: min, Max: max}
}

func (b *Box) GetAABB() AABB {
	return b.aabb
}

// Corners returns the 8 local corners, indexed like Corner
func (b *Box) Corners() [8]mgl64.Vec3 {
	var corners [8]mgl64.Vec3
	for c := Corner(0); c < 8; c++ {
		s := c.Signs()
		corners[c] = mgl64.Vec3{s.X() * b.HalfExtents.X(), s.Y() * b.HalfExtents.Y(), s.Z() * b.HalfExtents.Z()}
	}
	return corners
}

func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	if direction.X() < 0 {
		hx = -hx
	}
	if direction.Y() < 0 {
		hy = -hy
	}
	if direction.Z() < 0 {
		hz = -hz
	}

	return mgl64.Vec3{hx, hy, hz}
}

// Sphere is the collision envelope of a voxel
type Sphere struct {
	Radius float64
	aabb   AABB
}

func (s *Sphere) Type() ShapeType {
	return ShapeTypeSphere
}

// ComputeAABB calculates the axis-aligned bounding box for the sphere
func (s *Sphere) ComputeAABB(transform Transform) {
	// Sphere AABB is not affected by rotation, only by position
	radiusVec := mgl64.Vec3{s.Radius, s.Radius, s.Radius}

	s.aabb = AABB{
		Min: transform.Position.Sub(radiusVec),
		Max: transform.Position.Add(radiusVec),
	}
}

func (s *Sphere) GetAABB() AABB {
	return s.aabb
}

func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	l := direction.Len()
	if l == 0 {
		return mgl64.Vec3{}
	}
	return direction.Mul(s.Radius / l)
}

// Plane is the floor. It is defined by the equation Normal · p + Distance = 0,
// Normal pointing out of the ground (must be normalized).
type Plane struct {
	Normal   mgl64.Vec3
	Distance float64
}

// NewFloor creates the horizontal ground plane z = height
func NewFloor(height float64) *Plane {
	return &Plane{Normal: mgl64.Vec3{0, 0, 1}, Distance: -height}
}

// SignedDistance of a point above the plane
func (p *Plane) SignedDistance(point mgl64.Vec3) float64 {
	return p.Normal.Dot(point) + p.Distance
}

// Penetration returns how deep a shape at transform sinks below the plane.
// Negative values are the clearance.
func (p *Plane) Penetration(shape ShapeInterface, transform Transform) float64 {
	lowest := transform.Apply(shape.Support(transform.ToLocal(p.Normal.Mul(-1))))
	return -p.SignedDistance(lowest)
}

// Tangential removes the normal component of v
func (p *Plane) Tangential(v mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(p.Normal.Mul(v.Dot(p.Normal)))
}
