package actor

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/sponge/geom"
)

// DOF is a bitmask of the six degrees of freedom of a voxel
type DOF uint8

const (
	XTranslate DOF = 1 << iota
	YTranslate
	ZTranslate
	XRotate
	YRotate
	ZRotate

	TranslateAll = XTranslate | YTranslate | ZTranslate
	RotateAll    = XRotate | YRotate | ZRotate
	FixedAll     = TranslateAll | RotateAll
)

// TranslateDOF returns the translation DOF of an axis
func TranslateDOF(axis geom.Axis) DOF {
	return XTranslate << axis
}

// RotateDOF returns the rotation DOF of an axis
func RotateDOF(axis geom.Axis) DOF {
	return XRotate << axis
}

// External holds the boundary conditions of a voxel: fixed degrees of freedom with
// their prescribed displacements, and applied loads.
//
// Translation is in meters from the lattice position, Rotation a rotation vector in radians.
type External struct {
	Fixed       DOF
	Translation mgl64.Vec3
	Rotation    mgl64.Vec3
	Force       mgl64.Vec3
	Moment      mgl64.Vec3
}

func (e *External) IsFixed(dof DOF) bool {
	return e.Fixed&dof == dof
}

func (e *External) IsFixedAll() bool {
	return e.Fixed&FixedAll == FixedAll
}

func (e *External) IsFixedAllTranslation() bool {
	return e.Fixed&TranslateAll == TranslateAll
}

func (e *External) IsFixedAllRotation() bool {
	return e.Fixed&RotateAll == RotateAll
}

func (e *External) IsFixedAnyTranslation() bool {
	return e.Fixed&TranslateAll != 0
}

func (e *External) IsFixedAnyRotation() bool {
	return e.Fixed&RotateAll != 0
}

// SetFixed fixes every DOF in dof with a prescribed displacement value
// (meters for translations, radians for rotations).
func (e *External) SetFixed(dof DOF, value float64) {
	e.Fixed |= dof
	for axis := geom.AxisX; axis <= geom.AxisZ; axis++ {
		if dof&TranslateDOF(axis) != 0 {
			e.Translation[axis] = value
		}
		if dof&RotateDOF(axis) != 0 {
			e.Rotation[axis] = value
		}
	}
}

// SetDisplacement fixes all translations at a prescribed offset
func (e *External) SetDisplacement(translation mgl64.Vec3) {
	e.Fixed |= TranslateAll
	e.Translation = translation
}

// SetRotation fixes all rotations at a prescribed rotation vector
func (e *External) SetRotation(rotation mgl64.Vec3) {
	e.Fixed |= RotateAll
	e.Rotation = rotation
}

// Clear frees every DOF in dof and resets its prescribed displacement
func (e *External) Clear(dof DOF) {
	e.Fixed &^= dof
	for axis := geom.AxisX; axis <= geom.AxisZ; axis++ {
		if dof&TranslateDOF(axis) != 0 {
			e.Translation[axis] = 0
		}
		if dof&RotateDOF(axis) != 0 {
			e.Rotation[axis] = 0
		}
	}
}

// Reset removes every constraint and load
func (e *External) Reset() {
	*e = External{}
}

// IsEmpty reports whether the external has no effect on its voxel
func (e *External) IsEmpty() bool {
	return e.Fixed == 0 && e.Force == (mgl64.Vec3{}) && e.Moment == (mgl64.Vec3{})
}

// RotationQuat is the prescribed orientation
func (e *External) RotationQuat() mgl64.Quat {
	return geom.QuatFromRotationVector(e.Rotation)
}
