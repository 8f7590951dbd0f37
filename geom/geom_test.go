package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-9

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func vec3AlmostEqual(a, b mgl64.Vec3, tolerance float64) bool {
	return almostEqual(a.X(), b.X(), tolerance) &&
		almostEqual(a.Y(), b.Y(), tolerance) &&
		almostEqual(a.Z(), b.Z(), tolerance)
}

// =============================================================================
// Vectors
// =============================================================================

func TestIsNear(t *testing.T) {
	a := mgl64.Vec3{1, 2, 3}
	if !IsNear(a, mgl64.Vec3{1, 2, 3.05}, 0.1) {
		t.Errorf("expected vectors within 0.1 to be near")
	}
	if IsNear(a, mgl64.Vec3{1, 2, 3.2}, 0.1) {
		t.Errorf("expected vectors 0.2 apart not to be near")
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		v        mgl64.Vec3
		expected bool
	}{
		{"finite", mgl64.Vec3{1, -2, 3}, true},
		{"nan", mgl64.Vec3{math.NaN(), 0, 0}, false},
		{"inf", mgl64.Vec3{0, math.Inf(1), 0}, false},
		{"negative inf", mgl64.Vec3{0, 0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.v); got != tt.expected {
				t.Errorf("IsValid(%v) = %v, want %v", tt.v, got, tt.expected)
			}
		})
	}
}

func TestNormalizeSafe(t *testing.T) {
	if got := NormalizeSafe(mgl64.Vec3{}); got != (mgl64.Vec3{}) {
		t.Errorf("NormalizeSafe(0) = %v, want zero", got)
	}
	if got := NormalizeSafe(mgl64.Vec3{0, 3, 4}); !vec3AlmostEqual(got, mgl64.Vec3{0, 0.6, 0.8}, epsilon) {
		t.Errorf("NormalizeSafe = %v", got)
	}
}

// =============================================================================
// Quaternions
// =============================================================================

func TestRotationVectorRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    mgl64.Vec3
	}{
		{"zero", mgl64.Vec3{0, 0, 0}},
		{"tiny", mgl64.Vec3{1e-6, 0, 0}},
		{"small", mgl64.Vec3{0.01, -0.02, 0.005}},
		{"large", mgl64.Vec3{0.3, -0.2, 0.5}},
		{"near half turn", mgl64.Vec3{0, 3.0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := QuatFromRotationVector(tt.v)
			if !almostEqual(q.Len(), 1, 1e-9) {
				t.Errorf("quaternion not unit: %v", q.Len())
			}
			// the acos shortcut near identity trades 1e-4 relative accuracy
			got := ToRotationVector(q)
			if !vec3AlmostEqual(got, tt.v, 1e-4*tt.v.Len()+1e-8) {
				t.Errorf("ToRotationVector(QuatFromRotationVector(%v)) = %v", tt.v, got)
			}
		})
	}
}

func TestQuatFromRotationVectorMatchesAxisAngle(t *testing.T) {
	axis := mgl64.Vec3{1, 2, -1}.Normalize()
	angle := 0.8

	got := QuatFromRotationVector(axis.Mul(angle))
	want := mgl64.QuatRotate(angle, axis)

	if !almostEqual(got.W, want.W, epsilon) || !vec3AlmostEqual(got.V, want.V, epsilon) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFromAngleToPosX(t *testing.T) {
	tests := []struct {
		name string
		v    mgl64.Vec3
		tol  float64
	}{
		{"already aligned", mgl64.Vec3{2, 0, 0}, epsilon},
		{"small angle", mgl64.Vec3{1, 0.001, -0.002}, 1e-6},
		{"oblique", mgl64.Vec3{1, 2, 3}, 1e-9},
		{"backward", mgl64.Vec3{-1, 0, 0}, 1e-9},
		{"backward tilted", mgl64.Vec3{-1, 0.01, 0}, 1e-9},
		{"perpendicular", mgl64.Vec3{0, 0, 1}, 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := FromAngleToPosX(tt.v)
			got := q.Rotate(tt.v)
			want := mgl64.Vec3{tt.v.Len(), 0, 0}
			if !vec3AlmostEqual(got, want, tt.tol*tt.v.Len()) {
				t.Errorf("rotated %v to %v, want %v", tt.v, got, want)
			}
			if !almostEqual(q.V.X(), 0, epsilon) {
				t.Errorf("rotation should not twist about X, got %v", q)
			}
		})
	}
}

func TestSmallAndNegligibleAngles(t *testing.T) {
	if !IsSmallAngle(QuatFromRotationVector(mgl64.Vec3{0.01, 0, 0})) {
		t.Errorf("0.01 rad should be a small angle")
	}
	if IsSmallAngle(QuatFromRotationVector(mgl64.Vec3{0.1, 0, 0})) {
		t.Errorf("0.1 rad should not be a small angle")
	}
	if !IsNegligibleAngle(mgl64.QuatIdent()) {
		t.Errorf("identity should be negligible")
	}
	if IsNegligibleAngle(QuatFromRotationVector(mgl64.Vec3{0, 0, 1e-3})) {
		t.Errorf("1e-3 rad should not be negligible")
	}
}

func TestRotateInv(t *testing.T) {
	q := mgl64.QuatRotate(math.Pi/3, mgl64.Vec3{0, 1, 0})
	v := mgl64.Vec3{1, 2, 3}
	if got := RotateInv(q, q.Rotate(v)); !vec3AlmostEqual(got, v, epsilon) {
		t.Errorf("RotateInv(q, q*v) = %v, want %v", got, v)
	}
}

func TestIntegrateOrientation(t *testing.T) {
	t.Run("quarter turn about Z", func(t *testing.T) {
		q := IntegrateOrientation(mgl64.QuatIdent(), mgl64.Vec3{0, 0, math.Pi / 2}, 1.0)
		got := q.Rotate(mgl64.Vec3{1, 0, 0})
		if !vec3AlmostEqual(got, mgl64.Vec3{0, 1, 0}, 1e-9) {
			t.Errorf("rotated X to %v, want Y", got)
		}
	})

	t.Run("many small steps match one large rotation", func(t *testing.T) {
		omega := mgl64.Vec3{0.2, -0.4, 0.7}
		q := mgl64.QuatIdent()
		for i := 0; i < 1000; i++ {
			q = IntegrateOrientation(q, omega, 1e-3)
		}
		want := QuatFromRotationVector(omega)
		if !almostEqual(q.W, want.W, 1e-9) || !vec3AlmostEqual(q.V, want.V, 1e-9) {
			t.Errorf("got %v, want %v", q, want)
		}
	})

	t.Run("stays normalized", func(t *testing.T) {
		q := mgl64.QuatIdent()
		for i := 0; i < 10000; i++ {
			q = IntegrateOrientation(q, mgl64.Vec3{3, 1, -2}, 1e-2)
		}
		if !almostEqual(q.Len(), 1, 1e-9) {
			t.Errorf("|q| = %v, want 1", q.Len())
		}
	})

	t.Run("zero step keeps orientation", func(t *testing.T) {
		start := mgl64.QuatRotate(0.5, mgl64.Vec3{1, 0, 0})
		q := IntegrateOrientation(start, mgl64.Vec3{1, 2, 3}, 0)
		if !almostEqual(q.W, start.W, epsilon) || !vec3AlmostEqual(q.V, start.V, epsilon) {
			t.Errorf("got %v, want %v", q, start)
		}
	})
}

// =============================================================================
// Lattice indices
// =============================================================================

func TestDirections(t *testing.T) {
	origin := Index3D{0, 0, 0}
	for _, d := range Directions {
		n := origin.Neighbor(d)
		back := n.Neighbor(d.Opposite())
		if back != origin {
			t.Errorf("direction %d and its opposite do not cancel", d)
		}

		axis, positive, ok := Adjacency(origin, n)
		if !ok {
			t.Fatalf("neighbor in direction %d not adjacent", d)
		}
		if axis != d.Axis() {
			t.Errorf("direction %d: axis %d, want %d", d, axis, d.Axis())
		}
		if positive == d.IsNegative() {
			t.Errorf("direction %d: positive = %v", d, positive)
		}
	}
}

func TestAdjacency(t *testing.T) {
	tests := []struct {
		name string
		a, b Index3D
		ok   bool
	}{
		{"x neighbor", Index3D{0, 0, 0}, Index3D{1, 0, 0}, true},
		{"z neighbor below", Index3D{2, 2, 2}, Index3D{2, 2, 1}, true},
		{"same", Index3D{1, 1, 1}, Index3D{1, 1, 1}, false},
		{"two apart", Index3D{0, 0, 0}, Index3D{2, 0, 0}, false},
		{"diagonal", Index3D{0, 0, 0}, Index3D{1, 1, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, ok := Adjacency(tt.a, tt.b); ok != tt.ok {
				t.Errorf("Adjacency(%v, %v) ok = %v, want %v", tt.a, tt.b, ok, tt.ok)
			}
		})
	}
}
