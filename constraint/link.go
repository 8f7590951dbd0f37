package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/sponge/geom"
	"github.com/akmonengine/sponge/material"
)

const (
	// a link enters the small angle regime below both thresholds...
	smallAngleBendRad    = 0.05
	smallAngleExtendPerc = 0.50
	// ...and leaves it above both thresholds scaled by this factor
	hysteresisFactor = 1.2

	// DivergenceStrain is the axial strain beyond which a link is considered blown up.
	DivergenceStrain = 100.0
)

// Link is a beam joining two face adjacent voxels. Neg is always the voxel on the
// negative side along Axis. Forces and moments are computed in a frame where the link
// lies along +X and handed back in the local frame of each voxel.
type Link struct {
	Neg, Pos int
	Axis     geom.Axis
	// Material is the handle of the combined link material
	Material int

	pos2             mgl64.Vec3
	angle1v, angle2v mgl64.Vec3
	angle1, angle2   mgl64.Quat

	forceNeg, forcePos   mgl64.Vec3
	momentNeg, momentPos mgl64.Vec3

	strain       float64
	maxStrain    float64
	strainOffset float64
	stress       float64
	// E of the negative voxel over E of the positive voxel
	strainRatio float64

	restLength          float64
	transverseArea      float64
	transverseStrainSum float64

	smallAngle         bool
	localVelocityValid bool
	failed             bool
	yielded            bool
}

// NewLink joins voxel a at index ia and voxel b at index ib. The pair is reordered so
// that Neg is on the negative side.
func NewLink(a, b int, ia, ib geom.Index3D, mat int) (*Link, error) {
	axis, positive, ok := geom.Adjacency(ia, ib)
	if !ok {
		return nil, ErrNotAdjacent
	}

	l := &Link{Neg: a, Pos: b, Axis: axis, Material: mat}
	if !positive {
		l.Neg, l.Pos = b, a
	}
	l.angle1 = mgl64.QuatIdent()
	l.angle2 = mgl64.QuatIdent()
	l.smallAngle = true

	return l, nil
}

// Reset clears the deformation history and recomputes the rest geometry from both ends.
func (l *Link) Reset(neg, pos End) {
	l.pos2 = mgl64.Vec3{}
	l.angle1v = mgl64.Vec3{}
	l.angle2v = mgl64.Vec3{}
	l.angle1 = mgl64.QuatIdent()
	l.angle2 = mgl64.QuatIdent()
	l.forceNeg = mgl64.Vec3{}
	l.forcePos = mgl64.Vec3{}
	l.momentNeg = mgl64.Vec3{}
	l.momentPos = mgl64.Vec3{}
	l.strain = 0
	l.maxStrain = 0
	l.strainOffset = 0
	l.stress = 0
	l.smallAngle = true
	l.localVelocityValid = false
	l.failed = false
	l.yielded = false

	l.UpdateMaterial(neg, pos)
	l.updateRestLength(neg, pos)
	l.updateTransverseInfo(neg, pos)
}

// UpdateMaterial refreshes the stiffness ratio of the two ends after a material change.
func (l *Link) UpdateMaterial(neg, pos End) {
	// E_neg / E_pos: the stiffer half strains less under the shared stress
	l.strainRatio = 1
	if pos.Material.YoungsModulus > 0 {
		l.strainRatio = neg.Material.YoungsModulus / pos.Material.YoungsModulus
	}
	l.localVelocityValid = false
}

func (l *Link) updateRestLength(neg, pos End) {
	l.restLength = 0.5 * (neg.Voxel.BaseSize(neg.Material) + pos.Voxel.BaseSize(pos.Material))
}

func (l *Link) updateTransverseInfo(neg, pos End) {
	l.transverseArea = 0.5 * (neg.Voxel.TransverseArea(l.Axis, neg.Material) + pos.Voxel.TransverseArea(l.Axis, pos.Material))
	l.transverseStrainSum = 0.5 * (neg.Voxel.TransverseStrainSum(l.Axis, neg.Material) + pos.Voxel.TransverseStrainSum(l.Axis, pos.Material))
}

// ============================================================================
// Axis mapping
// ============================================================================

func (l *Link) toAxisX(v mgl64.Vec3) mgl64.Vec3 {
	switch l.Axis {
	case geom.AxisY:
		return mgl64.Vec3{v.Y(), -v.X(), v.Z()}
	case geom.AxisZ:
		return mgl64.Vec3{v.Z(), v.Y(), -v.X()}
	default:
		return v
	}
}

func (l *Link) quatToAxisX(q mgl64.Quat) mgl64.Quat {
	switch l.Axis {
	case geom.AxisY:
		return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.V.Y(), -q.V.X(), q.V.Z()}}
	case geom.AxisZ:
		return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.V.Z(), q.V.Y(), -q.V.X()}}
	default:
		return q
	}
}

func (l *Link) toAxisOriginal(v mgl64.Vec3) mgl64.Vec3 {
	switch l.Axis {
	case geom.AxisY:
		return mgl64.Vec3{-v.Y(), v.X(), v.Z()}
	case geom.AxisZ:
		return mgl64.Vec3{-v.Z(), v.Y(), v.X()}
	default:
		return v
	}
}

// orientLink expresses the relative pose of the positive voxel in the +X link frame,
// updating pos2, the two angles and the small angle regime.
func (l *Link) orientLink(neg, pos End) {
	l.pos2 = l.toAxisX(pos.Voxel.Position().Sub(neg.Voxel.Position()))
	l.angle1 = l.quatToAxisX(neg.Voxel.Orientation())
	l.angle2 = l.quatToAxisX(pos.Voxel.Orientation())

	totalRot := l.angle1.Conjugate()
	l.pos2 = totalRot.Rotate(l.pos2)
	l.angle2 = totalRot.Mul(l.angle2)
	l.angle1 = mgl64.QuatIdent()

	smallTurn := math.Inf(1)
	if l.pos2.X() > 0 {
		smallTurn = (math.Abs(l.pos2.Z()) + math.Abs(l.pos2.Y())) / l.pos2.X()
	}
	extendPerc := math.Abs(1 - l.pos2.X()/l.restLength)

	if !l.smallAngle && smallTurn < smallAngleBendRad && extendPerc < smallAngleExtendPerc {
		l.smallAngle = true
		l.localVelocityValid = false
	} else if l.smallAngle && (smallTurn > hysteresisFactor*smallAngleBendRad || extendPerc > hysteresisFactor*smallAngleExtendPerc) {
		l.smallAngle = false
		l.localVelocityValid = false
	}

	if l.smallAngle {
		l.pos2[0] -= l.restLength
	} else {
		// corotate so the positive voxel lies on +X
		l.angle1 = geom.FromAngleToPosX(l.pos2)
		l.angle2 = l.angle1.Mul(l.angle2)
		l.pos2 = mgl64.Vec3{l.pos2.Len() - l.restLength, 0, 0}
	}

	l.angle1v = geom.ToRotationVector(l.angle1)
	l.angle2v = geom.ToRotationVector(l.angle2)
}

// ============================================================================
// Force evaluation
// ============================================================================

// UpdateForces recomputes the forces and moments of the link from the current pose of
// both ends. Both voxels are only read.
func (l *Link) UpdateForces(neg, pos End, mat *material.LinkMaterial) {
	oldPos2, oldAngle1v, oldAngle2v := l.pos2, l.angle1v, l.angle2v

	l.updateRestLength(neg, pos)
	l.orientLink(neg, pos)

	// the velocity at the center of the link is half the relative one
	dPos2 := l.pos2.Sub(oldPos2).Mul(0.5)
	dAngle1 := l.angle1v.Sub(oldAngle1v).Mul(0.5)
	dAngle2 := l.angle2v.Sub(oldAngle2v).Mul(0.5)

	// a non-zero strain sum catches Poisson's ratio being switched off mid-run
	if !mat.IsXYZIndependent() || l.transverseStrainSum != 0 {
		l.updateTransverseInfo(neg, pos)
	}

	l.stress = l.updateStrain(l.pos2.X()/l.restLength, mat)
	l.failed = mat.IsFailed(l.maxStrain)
	l.yielded = mat.IsYielded(l.maxStrain)
	if l.failed {
		l.forceNeg = mgl64.Vec3{}
		l.forcePos = mgl64.Vec3{}
		l.momentNeg = mgl64.Vec3{}
		l.momentPos = mgl64.Vec3{}
		return
	}

	b1, b2, b3, a2 := mat.B1, mat.B2, mat.B3, mat.A2
	p, a1v, a2v := l.pos2, l.angle1v, l.angle2v

	// the axial term uses the stress rather than A1·x to follow non-linear curves
	l.forceNeg = mgl64.Vec3{
		l.stress * l.transverseArea,
		b1*p.Y() - b2*(a1v.Z()+a2v.Z()),
		b1*p.Z() + b2*(a1v.Y()+a2v.Y()),
	}
	l.forcePos = l.forceNeg.Mul(-1)

	l.momentNeg = mgl64.Vec3{
		a2 * (a2v.X() - a1v.X()),
		-b2*p.Z() - b3*(2*a1v.Y()+a2v.Y()),
		b2*p.Y() - b3*(2*a1v.Z()+a2v.Z()),
	}
	l.momentPos = mgl64.Vec3{
		a2 * (a1v.X() - a2v.X()),
		-b2*p.Z() - b3*(a1v.Y()+2*a2v.Y()),
		b2*p.Y() - b3*(a1v.Z()+2*a2v.Z()),
	}

	if l.localVelocityValid {
		l.applyDamping(neg, pos, mat, dPos2, dAngle1, dAngle2)
	} else {
		// the next step has a valid previous pose to difference against
		l.localVelocityValid = true
	}

	if !l.smallAngle {
		l.forceNeg = geom.RotateInv(l.angle1, l.forceNeg)
		l.momentNeg = geom.RotateInv(l.angle1, l.momentNeg)
	}
	l.forcePos = geom.RotateInv(l.angle2, l.forcePos)
	l.momentPos = geom.RotateInv(l.angle2, l.momentPos)

	l.forceNeg = l.toAxisOriginal(l.forceNeg)
	l.forcePos = l.toAxisOriginal(l.forcePos)
	l.momentNeg = l.toAxisOriginal(l.momentNeg)
	l.momentPos = l.toAxisOriginal(l.momentPos)
}

func (l *Link) applyDamping(neg, pos End, mat *material.LinkMaterial, dPos2, dAngle1, dAngle2 mgl64.Vec3) {
	sqA1, sqA2xIp, sqB1, sqB2xFMp, sqB3xIp := mat.SqA1, mat.SqA2xIp, mat.SqB1, mat.SqB2xFMp, mat.SqB3xIp
	negMult := neg.Voxel.DampingMultiplier(neg.Material)
	posMult := pos.Voxel.DampingMultiplier(pos.Material)

	posCalc := mgl64.Vec3{
		sqA1 * dPos2.X(),
		sqB1*dPos2.Y() - sqB2xFMp*(dAngle1.Z()+dAngle2.Z()),
		sqB1*dPos2.Z() + sqB2xFMp*(dAngle1.Y()+dAngle2.Y()),
	}
	l.forceNeg = l.forceNeg.Add(posCalc.Mul(negMult))
	l.forcePos = l.forcePos.Sub(posCalc.Mul(posMult))

	l.momentNeg = l.momentNeg.Sub(mgl64.Vec3{
		-sqA2xIp * (dAngle2.X() - dAngle1.X()),
		sqB2xFMp*dPos2.Z() + sqB3xIp*(2*dAngle1.Y()+dAngle2.Y()),
		-sqB2xFMp*dPos2.Y() + sqB3xIp*(2*dAngle1.Z()+dAngle2.Z()),
	}.Mul(0.5 * negMult))
	l.momentPos = l.momentPos.Sub(mgl64.Vec3{
		sqA2xIp * (dAngle2.X() - dAngle1.X()),
		sqB2xFMp*dPos2.Z() + sqB3xIp*(dAngle1.Y()+2*dAngle2.Y()),
		-sqB2xFMp*dPos2.Y() + sqB3xIp*(dAngle1.Z()+2*dAngle2.Z()),
	}.Mul(0.5 * posMult))
}

// updateStrain records the axial strain and returns the stress. Once a non-linear
// material has been pushed past a strain, backing off follows the elastic line offset
// by the plastic strain.
func (l *Link) updateStrain(axialStrain float64, mat *material.LinkMaterial) float64 {
	l.strain = axialStrain

	if mat.IsLinear() {
		if axialStrain > l.maxStrain {
			l.maxStrain = axialStrain
		}
		return mat.Stress(axialStrain, l.transverseStrainSum, false)
	}

	nu := mat.PoissonsRatio()
	if axialStrain > l.maxStrain {
		l.maxStrain = axialStrain
		stress := mat.Stress(axialStrain, l.transverseStrainSum, false)
		if nu != 0 {
			l.strainOffset = l.maxStrain - mat.Stress(axialStrain, 0, false)/(mat.EHat()*(1-nu))
		} else {
			l.strainOffset = l.maxStrain - stress/mat.YoungsModulus()
		}
		return stress
	}

	relativeStrain := axialStrain - l.strainOffset
	if nu != 0 {
		return mat.Stress(relativeStrain, l.transverseStrainSum, true)
	}
	return mat.YoungsModulus() * relativeStrain
}

// ============================================================================
// Queries
// ============================================================================

// Force returns the force on one end, in the local frame of that voxel
func (l *Link) Force(positiveEnd bool) mgl64.Vec3 {
	if positiveEnd {
		return l.forcePos
	}
	return l.forceNeg
}

// Moment returns the moment on one end, in the local frame of that voxel
func (l *Link) Moment(positiveEnd bool) mgl64.Vec3 {
	if positiveEnd {
		return l.momentPos
	}
	return l.momentNeg
}

// AxialStrain is the strain of the whole link
func (l *Link) AxialStrain() float64 {
	return l.strain
}

// AxialStrainAt splits the strain between the two halves in inverse proportion to
// their stiffness.
func (l *Link) AxialStrainAt(positiveEnd bool) float64 {
	if positiveEnd {
		return 2.0 * l.strain * l.strainRatio / (1.0 + l.strainRatio)
	}
	return 2.0 * l.strain / (1.0 + l.strainRatio)
}

func (l *Link) AxialStress() float64 {
	return l.stress
}

// MaxStrain is the largest axial strain seen since the last reset
func (l *Link) MaxStrain() float64 {
	return l.maxStrain
}

func (l *Link) IsFailed() bool {
	return l.failed
}

func (l *Link) IsYielded() bool {
	return l.yielded
}

func (l *Link) IsSmallAngle() bool {
	return l.smallAngle
}

// IsDiverged reports a strain or force no real deformation can reach.
func (l *Link) IsDiverged() bool {
	if math.Abs(l.strain) > DivergenceStrain || math.IsNaN(l.strain) {
		return true
	}
	return !geom.IsValid(l.forceNeg) || !geom.IsValid(l.forcePos) ||
		!geom.IsValid(l.momentNeg) || !geom.IsValid(l.momentPos)
}

func (l *Link) RestLength() float64 {
	return l.restLength
}

// AxialStiffness is the current axial spring constant, accounting for the deformed
// cross-section when Poisson's ratio is non-zero.
func (l *Link) AxialStiffness(mat *material.LinkMaterial) float64 {
	if mat.IsXYZIndependent() || l.restLength == 0 {
		return mat.A1
	}
	return mat.EHat() * l.transverseArea / ((l.strain + 1) * l.restLength)
}

// StrainEnergy sums the tensile, torsion and bending energies stored in the link
func (l *Link) StrainEnergy(mat *material.LinkMaterial) float64 {
	fn, mn, mp := l.forceNeg, l.momentNeg, l.momentPos
	return fn.X()*fn.X()/(2.0*mat.A1) +
		mn.X()*mn.X()/(2.0*mat.A2) +
		(mn.Z()*mn.Z()-mn.Z()*mp.Z()+mp.Z()*mp.Z())/(3.0*mat.B3) +
		(mn.Y()*mn.Y()-mn.Y()*mp.Y()+mp.Y()*mp.Y())/(3.0*mat.B3)
}
