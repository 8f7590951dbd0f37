package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DiscardAngleRad is the rotation angle below which a rotation counts as none.
	DiscardAngleRad = 1e-7
	// SmallAngleRad bounds the angles that get small angle approximations
	// (1e-4 relative error on atan(t)/t).
	SmallAngleRad = 1.732e-2
	// SmallAngleW is the quaternion W matching SmallAngleRad, cos(SmallAngleRad/2).
	SmallAngleW = 0.9999625

	// below this squared vector length acos(w) is replaced by sqrt(2-2w)
	acosSqrtThreshold = 2.4e-3
	// 24*DBL_EPSILON, 4th order Taylor term cutoff
	taylorThreshold = 5.328e-15
)

// QuatFromRotationVector returns the rotation of |v| radians about the axis v.
// Tiny vectors use the Taylor expansion of sin and cos.
func QuatFromRotationVector(v mgl64.Vec3) mgl64.Quat {
	theta := v.Mul(0.5)
	thetaMag2 := theta.LenSqr()

	var w, s float64
	if thetaMag2*thetaMag2 < taylorThreshold {
		w = 1.0 - 0.5*thetaMag2
		s = 1.0 - thetaMag2/6.0
	} else {
		thetaMag := math.Sqrt(thetaMag2)
		w = math.Cos(thetaMag)
		s = math.Sin(thetaMag) / thetaMag
	}

	return mgl64.Quat{W: w, V: theta.Mul(s)}
}

// ToRotationVector returns the axis of q scaled by its rotation angle.
func ToRotationVector(q mgl64.Quat) mgl64.Vec3 {
	if q.W >= 1.0 || q.W <= -1.0 {
		return mgl64.Vec3{}
	}

	squareLength := 1.0 - q.W*q.W
	if squareLength < acosSqrtThreshold {
		return q.V.Mul(2.0 * math.Sqrt((2-2*q.W)/squareLength))
	}
	return q.V.Mul(2.0 * math.Acos(q.W) / math.Sqrt(squareLength))
}

// FromAngleToPosX returns the rotation that brings the direction from onto +X.
// The rotation axis always lies in the YZ plane so no twist about X is introduced.
func FromAngleToPosX(from mgl64.Vec3) mgl64.Quat {
	if from == (mgl64.Vec3{}) {
		return mgl64.QuatIdent()
	}

	if from.X() > 0 {
		yOverX := from.Y() / from.X()
		zOverX := from.Z() / from.X()
		if math.Abs(yOverX) < SmallAngleRad && math.Abs(zOverX) < SmallAngleRad {
			y := 0.5 * zOverX
			z := -0.5 * yOverX
			return mgl64.Quat{W: 1 + 0.5*(-y*y-z*z), V: mgl64.Vec3{0, y, z}}
		}
	}

	n := from.Normalize()
	theta := math.Acos(mgl64.Clamp(n.X(), -1, 1))
	if theta > math.Pi-DiscardAngleRad {
		// pointing down -X: half turn about Y
		return mgl64.Quat{W: 0, V: mgl64.Vec3{0, 1, 0}}
	}

	axisMagInv := 1.0 / math.Sqrt(n.Z()*n.Z()+n.Y()*n.Y())
	a := 0.5 * theta
	s := math.Sin(a)
	return mgl64.Quat{W: math.Cos(a), V: mgl64.Vec3{0, n.Z() * axisMagInv * s, -n.Y() * axisMagInv * s}}
}

// IsSmallAngle reports whether q is a candidate for small angle approximations.
func IsSmallAngle(q mgl64.Quat) bool {
	return q.W > SmallAngleW
}

// IsNegligibleAngle reports whether the rotation of q can be treated as zero.
func IsNegligibleAngle(q mgl64.Quat) bool {
	return 2.0*math.Acos(math.Min(q.W, 1)) < DiscardAngleRad
}

// Angle returns the rotation angle of q in radians.
func Angle(q mgl64.Quat) float64 {
	return 2.0 * math.Acos(mgl64.Clamp(q.W, -1, 1))
}

// RotateInv rotates v by the inverse of the unit quaternion q.
func RotateInv(q mgl64.Quat, v mgl64.Vec3) mgl64.Vec3 {
	return q.Conjugate().Rotate(v)
}

// IntegrateOrientation advances the orientation q by the angular velocity omega over dt.
// The incremental rotation is composed in the world frame and the result is renormalized.
func IntegrateOrientation(q mgl64.Quat, omega mgl64.Vec3, dt float64) mgl64.Quat {
	return QuatFromRotationVector(omega.Mul(dt)).Mul(q).Normalize()
}
