// Package geom holds the vector, quaternion and lattice index helpers shared by the
// simulation packages. Vectors and quaternions are plain mgl64 values.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// IsNear reports whether a and b are closer than tolerance.
func IsNear(a, b mgl64.Vec3, tolerance float64) bool {
	return a.Sub(b).LenSqr() < tolerance*tolerance
}

// IsValid reports whether every component of v is finite.
func IsValid(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// QuatIsValid reports whether every component of q is finite.
func QuatIsValid(q mgl64.Quat) bool {
	return IsValid(q.V) && !math.IsNaN(q.W) && !math.IsInf(q.W, 0)
}

// NormalizeSafe returns the unit vector of v, or the zero vector when v has no length.
func NormalizeSafe(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l == 0 {
		return mgl64.Vec3{}
	}
	return v.Mul(1.0 / l)
}
