package sponge

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/constraint"
	"github.com/akmonengine/sponge/geom"
)

func (l *Lattice) VoxelCount() int {
	return len(l.voxels)
}

func (l *Lattice) LinkCount() int {
	return len(l.links)
}

// Voxel returns voxel i
func (l *Lattice) Voxel(i int) (*actor.Voxel, bool) {
	if i < 0 || i >= len(l.voxels) {
		return nil, false
	}
	return l.voxels[i], true
}

// VoxelAt returns the voxel at a lattice coordinate
func (l *Lattice) VoxelAt(idx geom.Index3D) (*actor.Voxel, bool) {
	i, ok := l.voxelIndex[idx]
	if !ok {
		return nil, false
	}
	return l.voxels[i], true
}

// Valid reports whether a voxel occupies the lattice coordinate
func (l *Lattice) Valid(idx geom.Index3D) bool {
	_, ok := l.voxelIndex[idx]
	return ok
}

// VoxelIndex returns the index of the voxel at a lattice coordinate
func (l *Lattice) VoxelIndex(idx geom.Index3D) (int, bool) {
	i, ok := l.voxelIndex[idx]
	return i, ok
}

func (l *Lattice) Link(i int) (*constraint.Link, bool) {
	if i < 0 || i >= len(l.links) {
		return nil, false
	}
	return l.links[i], true
}

// LinkBetween returns the index of the link joining the voxels at a and b
func (l *Lattice) LinkBetween(a, b geom.Index3D) (int, bool) {
	ia, ok := l.voxelIndex[a]
	if !ok {
		return -1, false
	}
	for _, d := range geom.Directions {
		if a.Neighbor(d) != b {
			continue
		}
		li := l.voxels[ia].Links[d]
		return li, li != actor.NoLink
	}
	return -1, false
}

// External returns the boundary conditions of the voxel at idx, creating an empty one
// on first access.
func (l *Lattice) External(idx geom.Index3D) (*actor.External, error) {
	i, ok := l.voxelIndex[idx]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoVoxel, idx)
	}
	v := l.voxels[i]
	if v.External == nil {
		v.External = &actor.External{}
	}
	return v.External, nil
}

// Bounds is the box around the current voxel positions, padded by half a voxel.
// It is empty when there are no voxels.
func (l *Lattice) Bounds() (actor.AABB, bool) {
	if len(l.voxels) == 0 {
		return actor.AABB{}, false
	}

	half := l.voxelSize / 2
	pad := mgl64.Vec3{half, half, half}
	var bounds actor.AABB
	for i, v := range l.voxels {
		box := actor.AABB{Min: v.Position().Sub(pad), Max: v.Position().Add(pad)}
		if i == 0 {
			bounds = box
			continue
		}
		bounds = bounds.Union(box)
	}
	return bounds, true
}

// Strain returns the engineering strain of voxel i along each axis. With poisson set,
// the axes not held in tension report the Poisson contraction.
func (l *Lattice) Strain(i int, poisson bool) (mgl64.Vec3, bool) {
	if i < 0 || i >= len(l.voxels) {
		return mgl64.Vec3{}, false
	}
	return l.voxelStrain(i, poisson), true
}

// VolumetricStrain is the trace of the strain of voxel i
func (l *Lattice) VolumetricStrain(i int) (float64, bool) {
	s, ok := l.Strain(i, false)
	if !ok {
		return 0, false
	}
	return s.X() + s.Y() + s.Z(), true
}

// Pressure is the engineering internal pressure of voxel i (Pa), positive in compression
func (l *Lattice) Pressure(i int) (float64, bool) {
	volumetric, ok := l.VolumetricStrain(i)
	if !ok {
		return 0, false
	}
	mat := &l.materials[l.voxels[i].Material].voxel
	return -mat.YoungsModulus * volumetric / (3 * (1 - 2*mat.PoissonsRatio)), true
}

// CornerOffset is the position of a corner of the deformed voxel i, in its local frame.
// Each half edge stretches with the half of the link on that side.
func (l *Lattice) CornerOffset(i int, corner actor.Corner) (mgl64.Vec3, bool) {
	if i < 0 || i >= len(l.voxels) {
		return mgl64.Vec3{}, false
	}

	v := l.voxels[i]
	signs := corner.Signs()
	var scale mgl64.Vec3
	for axis := geom.AxisX; axis <= geom.AxisZ; axis++ {
		positive := corner.IsPositive(axis)
		d := geom.Direction(2 * axis)
		if !positive {
			d = d.Opposite()
		}

		scale[axis] = signs[axis]
		if li := v.Links[d]; li != actor.NoLink && !l.links[li].IsFailed() {
			// on the positive face this voxel is the negative end of the link
			scale[axis] *= 1 + l.links[li].AxialStrainAt(!positive)
		}
	}

	half := 0.5 * v.BaseSize(&l.materials[v.Material].voxel)
	return scale.Mul(half), true
}

// CornerPosition is the world position of a corner of the deformed voxel i
func (l *Lattice) CornerPosition(i int, corner actor.Corner) (mgl64.Vec3, bool) {
	offset, ok := l.CornerOffset(i, corner)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return l.voxels[i].CornerPosition(offset), true
}

// IsValid reports whether every voxel state is finite and no link strain ran away
func (l *Lattice) IsValid() bool {
	for _, link := range l.links {
		if link.IsDiverged() {
			return false
		}
	}
	return l.voxelsValid()
}

// AngularDisplacement is the rotation angle of voxel i from its lattice orientation
func (l *Lattice) AngularDisplacement(i int) (float64, bool) {
	if i < 0 || i >= len(l.voxels) {
		return 0, false
	}
	return math.Abs(geom.Angle(l.voxels[i].Orientation())), true
}
