package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/sponge/geom"
	"github.com/akmonengine/sponge/material"
)

// NoLink marks an empty slot of the link table
const NoLink = -1

// Corner indexes the 8 corners of a voxel: bit 2 is +X, bit 1 is +Y, bit 0 is +Z
type Corner uint8

const (
	CornerNNN Corner = iota
	CornerNNP
	CornerNPN
	CornerNPP
	CornerPNN
	CornerPNP
	CornerPPN
	CornerPPP
)

// IsPositive reports whether the corner is on the positive side of axis
func (c Corner) IsPositive(axis geom.Axis) bool {
	return c&(1<<(2-axis)) != 0
}

// Signs returns ±1 per axis
func (c Corner) Signs() mgl64.Vec3 {
	var s mgl64.Vec3
	for axis := geom.AxisX; axis <= geom.AxisZ; axis++ {
		s[axis] = -1
		if c.IsPositive(axis) {
			s[axis] = 1
		}
	}
	return s
}

// StepEnv is the part of the simulation context a voxel needs to integrate
type StepEnv struct {
	Gravity mgl64.Vec3
	// Floor is nil when floor contact is disabled
	Floor *Plane
}

// Voxel is a cubic mass element of the lattice
type Voxel struct {
	Index    geom.Index3D
	Material int
	// Links holds the index of the link in each geom.Direction, NoLink if none
	Links [6]int

	Transform       Transform
	Velocity        mgl64.Vec3 // m/s
	AngularVelocity mgl64.Vec3 // rad/s

	External    *External
	Temperature float64 // relative to the temperature at which the lattice was built

	// accumulators, cleared at the start of each step
	linkForce    mgl64.Vec3 // local frame
	linkMoment   mgl64.Vec3 // local frame
	contactForce mgl64.Vec3 // world frame

	// totals of the last step, used for reactions
	lastForce  mgl64.Vec3
	lastMoment mgl64.Vec3

	floorStaticFriction bool
	onFloor             bool
	previousDt          float64
	poissonStrain       mgl64.Vec3

	failed  bool
	yielded bool
}

// NewVoxel creates a voxel of material at idx, resting at its lattice position
func NewVoxel(idx geom.Index3D, material int, size float64) *Voxel {
	v := &Voxel{
		Index:    idx,
		Material: material,
	}
	for i := range v.Links {
		v.Links[i] = NoLink
	}
	v.Reset(size)

	return v
}

// Reset returns the voxel to its lattice position at rest
func (v *Voxel) Reset(size float64) {
	v.Transform = NewTransform(v.OriginalPosition(size))
	v.HaltMotion()
	v.ClearForces()
	v.lastForce = mgl64.Vec3{}
	v.lastMoment = mgl64.Vec3{}
	v.floorStaticFriction = true
	v.onFloor = false
	v.Temperature = 0
	v.previousDt = 0
	v.poissonStrain = mgl64.Vec3{}
	v.failed = false
	v.yielded = false
}

// HaltMotion zeroes both velocities
func (v *Voxel) HaltMotion() {
	v.Velocity = mgl64.Vec3{}
	v.AngularVelocity = mgl64.Vec3{}
}

// ReplaceMaterial switches material. Velocities are kept.
func (v *Voxel) ReplaceMaterial(material int) {
	v.Material = material
	v.floorStaticFriction = false
}

// OriginalPosition is the center of the lattice cell of the voxel. Cell (0,0,0) spans
// [0, size] on every axis.
func (v *Voxel) OriginalPosition(size float64) mgl64.Vec3 {
	return mgl64.Vec3{
		(float64(v.Index.X) + 0.5) * size,
		(float64(v.Index.Y) + 0.5) * size,
		(float64(v.Index.Z) + 0.5) * size,
	}
}

// BaseSize is the zero-stress edge length accounting for thermal expansion
func (v *Voxel) BaseSize(mat *material.VoxelMaterial) float64 {
	return mat.Size * (1 + v.Temperature*mat.CTE)
}

func (v *Voxel) Position() mgl64.Vec3 {
	return v.Transform.Position
}

func (v *Voxel) Orientation() mgl64.Quat {
	return v.Transform.Rotation
}

// Displacement from the lattice position
func (v *Voxel) Displacement(size float64) mgl64.Vec3 {
	return v.Transform.Position.Sub(v.OriginalPosition(size))
}

func (v *Voxel) VelocityMagnitude() float64 {
	return v.Velocity.Len()
}

func (v *Voxel) AngularVelocityMagnitude() float64 {
	return v.AngularVelocity.Len()
}

// KineticEnergy sums the translational and rotational energies
func (v *Voxel) KineticEnergy(mat *material.VoxelMaterial) float64 {
	return 0.5 * (mat.Mass*v.Velocity.LenSqr() + mat.Inertia*v.AngularVelocity.LenSqr())
}

// IsInterior reports whether every face of the voxel carries a link
func (v *Voxel) IsInterior() bool {
	for _, l := range v.Links {
		if l == NoLink {
			return false
		}
	}
	return true
}

func (v *Voxel) IsSurface() bool {
	return !v.IsInterior()
}

func (v *Voxel) IsFloorStaticFriction() bool {
	return v.floorStaticFriction
}

// IsOnFloor reports whether the voxel touched the floor during the last step
func (v *Voxel) IsOnFloor() bool {
	return v.onFloor
}

// IsFailed reports whether any link of the voxel has failed
func (v *Voxel) IsFailed() bool {
	return v.failed
}

// IsYielded reports whether any link of the voxel has yielded
func (v *Voxel) IsYielded() bool {
	return v.yielded
}

// SetLinkStates records the failure and yield flags of the attached links
func (v *Voxel) SetLinkStates(failed, yielded bool) {
	v.failed = failed
	v.yielded = yielded
}

// DampingMultiplier is 2√m·ζ/dt of the last step, zero before the first one
func (v *Voxel) DampingMultiplier(mat *material.VoxelMaterial) float64 {
	return mat.DampingMultiplier(v.previousDt)
}

// PoissonStrain returns the strains used for transverse effects, as set by SetPoissonStrain
func (v *Voxel) PoissonStrain() mgl64.Vec3 {
	return v.poissonStrain
}

func (v *Voxel) SetPoissonStrain(strain mgl64.Vec3) {
	v.poissonStrain = strain
}

// TransverseArea is the deformed cross-section normal to axis
func (v *Voxel) TransverseArea(axis geom.Axis, mat *material.VoxelMaterial) float64 {
	size := mat.Size
	if mat.PoissonsRatio == 0 {
		return size * size
	}
	a, b := transverseAxes(axis)
	return size * size * (1 + v.poissonStrain[a]) * (1 + v.poissonStrain[b])
}

// TransverseStrainSum sums the strains of the two axes normal to axis
func (v *Voxel) TransverseStrainSum(axis geom.Axis, mat *material.VoxelMaterial) float64 {
	if mat.PoissonsRatio == 0 {
		return 0
	}
	a, b := transverseAxes(axis)
	return v.poissonStrain[a] + v.poissonStrain[b]
}

func transverseAxes(axis geom.Axis) (geom.Axis, geom.Axis) {
	switch axis {
	case geom.AxisX:
		return geom.AxisY, geom.AxisZ
	case geom.AxisY:
		return geom.AxisX, geom.AxisZ
	default:
		return geom.AxisX, geom.AxisY
	}
}

// CornerPosition maps a local corner offset to world space
func (v *Voxel) CornerPosition(offset mgl64.Vec3) mgl64.Vec3 {
	return v.Transform.Apply(offset)
}

// ============================================================================
// Force accumulation
// ============================================================================

// AddLinkForce accumulates the force and moment of a link, in the voxel frame
func (v *Voxel) AddLinkForce(force, moment mgl64.Vec3) {
	v.linkForce = v.linkForce.Add(force)
	v.linkMoment = v.linkMoment.Add(moment)
}

// AddContactForce accumulates a collision force acting on the voxel, in world space
func (v *Voxel) AddContactForce(force mgl64.Vec3) {
	v.contactForce = v.contactForce.Add(force)
}

func (v *Voxel) ClearForces() {
	v.linkForce = mgl64.Vec3{}
	v.linkMoment = mgl64.Vec3{}
	v.contactForce = mgl64.Vec3{}
}

// Force is the net force without floor contact: links, external load, global damping,
// gravity and collisions.
func (v *Voxel) Force(mat *material.VoxelMaterial, gravity mgl64.Vec3) mgl64.Vec3 {
	total := v.Transform.ToWorld(v.linkForce)
	if v.External != nil {
		total = total.Add(v.External.Force)
	}
	total = total.Sub(v.Velocity.Mul(mat.GlobalDampingTranslateC))
	total = total.Add(gravity.Mul(mat.Mass))
	total = total.Add(v.contactForce)

	return total
}

// Moment is the net moment: links, external load and global damping
func (v *Voxel) Moment(mat *material.VoxelMaterial) mgl64.Vec3 {
	total := v.Transform.ToWorld(v.linkMoment)
	if v.External != nil {
		total = total.Add(v.External.Moment)
	}
	return total.Sub(v.AngularVelocity.Mul(mat.GlobalDampingRotateC))
}

// ExternalReaction returns the load applied by the external: the prescribed force on
// free DOFs and the reaction on fixed ones.
func (v *Voxel) ExternalReaction() (force, moment mgl64.Vec3) {
	if v.External == nil {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}

	force, moment = v.External.Force, v.External.Moment
	for axis := geom.AxisX; axis <= geom.AxisZ; axis++ {
		if v.External.IsFixed(TranslateDOF(axis)) {
			force[axis] = -v.lastForce[axis]
		}
		if v.External.IsFixed(RotateDOF(axis)) {
			moment[axis] = -v.lastMoment[axis]
		}
	}
	return force, moment
}

// ============================================================================
// Integration
// ============================================================================

// TimeStep advances the voxel by dt with symplectic Euler from the accumulated forces.
func (v *Voxel) TimeStep(dt float64, mat *material.VoxelMaterial, env StepEnv) {
	v.previousDt = dt
	if dt == 0 {
		return
	}

	force := v.Force(mat, env.Gravity)
	moment := v.Moment(mat)
	v.lastForce, v.lastMoment = force, moment

	if v.External != nil && v.External.IsFixedAll() {
		v.Transform.Position = v.OriginalPosition(mat.Size).Add(v.External.Translation)
		v.Transform.Rotation = v.External.RotationQuat()
		v.HaltMotion()
		return
	}

	// translation
	floorForce := mgl64.Vec3{}
	penetration := math.Inf(-1)
	if env.Floor != nil {
		penetration = env.Floor.Penetration(NewCube(v.BaseSize(mat)), v.Transform)
		floorForce = v.floorForce(penetration, force, mat, env.Floor)
	}
	force = force.Add(floorForce)

	v.Velocity = v.Velocity.Add(force.Mul(dt * mat.InverseMass))
	translate := v.Velocity.Mul(dt)

	v.onFloor = env.Floor != nil && penetration >= 0
	if v.onFloor {
		// a slowing voxel reverses direction under kinetic friction: switch to static
		tangentialVelocity := env.Floor.Tangential(v.Velocity)
		work := env.Floor.Tangential(floorForce).Dot(env.Floor.Tangential(translate))
		tangentialEnergy := 0.5 * mat.Mass * tangentialVelocity.LenSqr()
		if tangentialEnergy+work <= 0 {
			v.floorStaticFriction = true
		}

		if v.floorStaticFriction {
			v.Velocity = v.Velocity.Sub(tangentialVelocity)
			translate = translate.Sub(env.Floor.Tangential(translate))
		}
	} else {
		v.floorStaticFriction = false
	}

	v.Transform.Position = v.Transform.Position.Add(translate)

	// rotation
	v.AngularVelocity = v.AngularVelocity.Add(moment.Mul(dt * mat.InverseInertia))
	v.Transform.Rotation = geom.IntegrateOrientation(v.Transform.Rotation, v.AngularVelocity, dt)

	if v.External != nil {
		v.applyFixed(mat.Size)
	}
}

// floorForce returns the normal penalty and kinetic friction of the floor.
// force is the net force without floor contact.
func (v *Voxel) floorForce(penetration float64, force mgl64.Vec3, mat *material.VoxelMaterial, floor *Plane) mgl64.Vec3 {
	if penetration < 0 {
		v.floorStaticFriction = false
		return mgl64.Vec3{}
	}

	normalSpeed := v.Velocity.Dot(floor.Normal)
	normalForce := mat.PenetrationStiffness * penetration
	result := floor.Normal.Mul(normalForce - mat.CollisionDampingTranslateC*normalSpeed)

	if v.floorStaticFriction {
		lateral := floor.Tangential(force)
		limit := mat.StaticFriction * normalForce
		if lateral.LenSqr() > limit*limit {
			// breaking away, this step moves with the unopposed force
			v.floorStaticFriction = false
		}
		return result
	}

	tangentialVelocity := floor.Tangential(v.Velocity)
	friction := geom.NormalizeSafe(tangentialVelocity).Mul(mat.KineticFriction * normalForce)
	return result.Sub(friction)
}

// applyFixed snaps the fixed DOFs back to their prescribed values
func (v *Voxel) applyFixed(size float64) {
	ext := v.External
	original := v.OriginalPosition(size)
	for axis := geom.AxisX; axis <= geom.AxisZ; axis++ {
		if ext.IsFixed(TranslateDOF(axis)) {
			v.Transform.Position[axis] = original[axis] + ext.Translation[axis]
			v.Velocity[axis] = 0
		}
	}

	if !ext.IsFixedAnyRotation() {
		return
	}
	if ext.IsFixedAllRotation() {
		v.Transform.Rotation = ext.RotationQuat()
		v.AngularVelocity = mgl64.Vec3{}
		return
	}

	rotation := geom.ToRotationVector(v.Transform.Rotation)
	for axis := geom.AxisX; axis <= geom.AxisZ; axis++ {
		if ext.IsFixed(RotateDOF(axis)) {
			rotation[axis] = ext.Rotation[axis]
			v.AngularVelocity[axis] = 0
		}
	}
	v.Transform.Rotation = geom.QuatFromRotationVector(rotation)
}

// IsValid reports whether the voxel state is finite
func (v *Voxel) IsValid() bool {
	return geom.IsValid(v.Transform.Position) && geom.QuatIsValid(v.Transform.Rotation) &&
		geom.IsValid(v.Velocity) && geom.IsValid(v.AngularVelocity)
}
