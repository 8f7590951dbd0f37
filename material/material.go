// Package material models the stress-strain, damping and friction behavior of a
// homogeneous substance, and derives the per-voxel and per-link constants the solver
// consumes from it.
package material

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultYoungsModulus = 1e6 // Pa
	DefaultDensity       = 1e3 // kg/m³

	// NoFailure marks a model without a failure point, and a yield point that could not be found.
	NoFailure = -1.0

	// StandardGravity in m/s².
	StandardGravity = 9.80665

	// dummy failure stress of a linear model created without one
	linearDummyStress = 1e6
	// offset of the yield line, in percent strain
	yieldOffsetPercent = 0.2
	maxPoissonsRatio   = 0.5 - 1e-7
)

var (
	// ErrInvalidModel indicates stress-strain data that cannot describe a material.
	ErrInvalidModel = errors.New("material: invalid stress-strain model")

	// ErrInvalidParameter indicates a material parameter outside its valid range.
	ErrInvalidParameter = errors.New("material: parameter out of valid bounds")
)

// Material is a homogeneous substance. The stress-strain relation is piecewise linear
// through the origin; the first segment defines Young's modulus.
//
// Every mutation bumps Version so that cached derived constants can be invalidated.
type Material struct {
	Name string

	youngsModulus    float64
	poissonsRatio    float64
	density          float64
	cte              float64
	staticFriction   float64
	kineticFriction  float64
	internalDamping  float64
	globalDamping    float64
	collisionDamping float64

	linear        bool
	yieldStress   float64
	failureStress float64
	yieldStrain   float64
	failureStrain float64

	// strainData[0] and stressData[0] are always the origin
	strainData []float64
	stressData []float64

	eHat    float64
	version uint64
}

// New creates a linear material that never fails. Non-positive arguments fall back
// to DefaultYoungsModulus and DefaultDensity.
func New(youngsModulus, density float64) *Material {
	if youngsModulus <= 0 {
		youngsModulus = DefaultYoungsModulus
	}
	if density <= 0 {
		density = DefaultDensity
	}

	m := &Material{
		density:         density,
		internalDamping: 1.0,
	}
	// cannot fail: E is positive and there is no failure stress
	_ = m.SetModelLinear(youngsModulus, NoFailure)

	return m
}

// Clone returns a deep copy of m.
func (m *Material) Clone() *Material {
	c := *m
	c.strainData = append([]float64(nil), m.strainData...)
	c.stressData = append([]float64(nil), m.stressData...)
	return &c
}

// Version changes whenever the material is mutated.
func (m *Material) Version() uint64 {
	return m.version
}

func (m *Material) updateDerived() {
	m.eHat = m.youngsModulus / ((1 - 2*m.poissonsRatio) * (1 + m.poissonsRatio))
	m.version++
}

// ============================================================================
// Stress-strain models
// ============================================================================

// SetModelLinear makes the material linear elastic with modulus youngsModulus, failing
// at failureStress, or never when failureStress is NoFailure. Yield and failure coincide.
func (m *Material) SetModelLinear(youngsModulus, failureStress float64) error {
	if youngsModulus <= 0 {
		return fmt.Errorf("%w: Young's modulus must be positive", ErrInvalidModel)
	}
	if failureStress != NoFailure && failureStress <= 0 {
		return fmt.Errorf("%w: failure stress must be positive", ErrInvalidModel)
	}

	tmpFailureStress := failureStress
	if tmpFailureStress == NoFailure {
		tmpFailureStress = linearDummyStress
	}
	tmpFailureStrain := tmpFailureStress / youngsModulus

	m.strainData = []float64{0, tmpFailureStrain}
	m.stressData = []float64{0, tmpFailureStress}
	m.linear = true
	m.youngsModulus = youngsModulus
	m.yieldStress = failureStress
	m.failureStress = failureStress
	if failureStress == NoFailure {
		m.yieldStrain = NoFailure
		m.failureStrain = NoFailure
	} else {
		m.yieldStrain = tmpFailureStrain
		m.failureStrain = tmpFailureStrain
	}

	m.updateDerived()
	return nil
}

// SetModelBilinear makes the material elastic up to yieldStress with slope youngsModulus,
// then plastic with slope plasticModulus up to failureStress (NoFailure for none).
func (m *Material) SetModelBilinear(youngsModulus, plasticModulus, yieldStress, failureStress float64) error {
	if youngsModulus <= 0 {
		return fmt.Errorf("%w: Young's modulus must be positive", ErrInvalidModel)
	}
	if plasticModulus <= 0 || plasticModulus >= youngsModulus {
		return fmt.Errorf("%w: plastic modulus must be positive but less than Young's modulus", ErrInvalidModel)
	}
	if yieldStress <= 0 {
		return fmt.Errorf("%w: yield stress must be positive", ErrInvalidModel)
	}
	if failureStress != NoFailure && failureStress <= yieldStress {
		return fmt.Errorf("%w: failure stress must be greater than the yield stress", ErrInvalidModel)
	}

	yieldStrain := yieldStress / youngsModulus
	tmpFailureStress := failureStress
	if tmpFailureStress == NoFailure {
		tmpFailureStress = 3 * yieldStress
	}

	// plastic line y = mx + b through the yield point
	b := yieldStress - plasticModulus*yieldStrain
	tmpFailureStrain := (tmpFailureStress - b) / plasticModulus

	m.strainData = []float64{0, yieldStrain, tmpFailureStrain}
	m.stressData = []float64{0, yieldStress, tmpFailureStress}
	m.linear = false
	m.youngsModulus = youngsModulus
	m.yieldStress = yieldStress
	m.yieldStrain = yieldStrain
	m.failureStress = failureStress
	m.failureStrain = NoFailure
	if failureStress != NoFailure {
		m.failureStrain = tmpFailureStrain
	}

	m.updateDerived()
	return nil
}

// SetModel defines the material by stress-strain data points, strains strictly increasing.
// A leading (0, 0) point is optional. The first segment sets Young's modulus, the last point
// the failure. One point gives a linear model, two a bilinear one yielding at the first
// point; longer curves yield at the 0.2% strain offset.
func (m *Material) SetModel(strain, stress []float64) error {
	if len(strain) != len(stress) {
		return fmt.Errorf("%w: %d strain values for %d stress values", ErrInvalidModel, len(strain), len(stress))
	}
	if len(strain) > 0 && strain[0] == 0 && stress[0] == 0 {
		strain, stress = strain[1:], stress[1:]
	}
	if len(strain) == 0 {
		return fmt.Errorf("%w: not enough data points", ErrInvalidModel)
	}
	if strain[0] <= 0 || stress[0] <= 0 {
		return fmt.Errorf("%w: first stress and strain data points must be positive", ErrInvalidModel)
	}

	firstSlope := stress[0] / strain[0]
	sweepStrain, sweepStress := 0.0, 0.0
	for i := range strain {
		if strain[i] <= sweepStrain {
			return fmt.Errorf("%w: out of order strain data at point %d", ErrInvalidModel, i)
		}
		if i > 0 && (stress[i]-sweepStress)/(strain[i]-sweepStrain) > firstSlope*(1+1e-9) {
			return fmt.Errorf("%w: segment %d is steeper than Young's modulus", ErrInvalidModel, i)
		}
		sweepStrain, sweepStress = strain[i], stress[i]
	}

	m.strainData = append([]float64{0}, strain...)
	m.stressData = append([]float64{0}, stress...)
	count := len(strain)

	m.youngsModulus = m.stressData[1] / m.strainData[1]
	m.failureStress = m.stressData[count]
	m.failureStrain = m.strainData[count]
	m.linear = count == 1

	if count <= 2 {
		m.yieldStress = m.stressData[1]
		m.yieldStrain = m.strainData[1]
	} else {
		m.setYieldFromData(yieldOffsetPercent)
	}

	m.updateDerived()
	return nil
}

// setYieldFromData intersects the offset line of slope E with the curve segments.
// The failure point is the yield point when no intersection exists.
func (m *Material) setYieldFromData(percentStrainOffset float64) {
	m.yieldStress = m.failureStress
	m.yieldStrain = m.failureStrain

	oM := m.youngsModulus
	oB := -percentStrainOffset / 100 * oM

	for i := 1; i < len(m.strainData)-1; i++ {
		x1, x2 := m.strainData[i], m.strainData[i+1]
		y1, y2 := m.stressData[i], m.stressData[i+1]

		tM := (y2 - y1) / (x2 - x1)
		tB := y1 - tM*x1
		if oM == tM {
			continue
		}

		xIntersect := (tB - oB) / (oM - tM)
		if xIntersect > x1 && xIntersect <= x2 {
			perc := (xIntersect - x1) / (x2 - x1)
			m.yieldStress = y1 + perc*(y2-y1)
			m.yieldStrain = xIntersect
			return
		}
	}
}

// ============================================================================
// Curve evaluation
// ============================================================================

// Stress returns the stress at strain. transverseStrainSum is the sum of the two
// transverse strains, used when Poisson's ratio is non-zero. forceLinear evaluates the
// elastic line regardless of the curve. A failed strain carries no stress.
func (m *Material) Stress(strain, transverseStrainSum float64, forceLinear bool) float64 {
	if m.IsFailed(strain) {
		return 0
	}

	nu := m.poissonsRatio
	if strain <= m.strainData[1] || m.linear || forceLinear {
		if nu == 0 {
			return m.youngsModulus * strain
		}
		return m.eHat * ((1-nu)*strain + nu*transverseStrainSum)
	}

	i := m.segment(strain)
	modulus := (m.stressData[i] - m.stressData[i-1]) / (m.strainData[i] - m.strainData[i-1])
	basicStress := m.stressData[i-1] + modulus*(strain-m.strainData[i-1])
	if nu == 0 {
		return basicStress
	}

	// volumetric effects on the equivalent linear line
	modulusHat := modulus / ((1 - 2*nu) * (1 + nu))
	effectiveStrain := basicStress / modulus
	effectiveTransverseStrainSum := transverseStrainSum * (effectiveStrain / strain)
	return modulusHat * ((1-nu)*effectiveStrain + nu*effectiveTransverseStrainSum)
}

// Modulus returns the tangent modulus at strain, zero once failed.
func (m *Material) Modulus(strain float64) float64 {
	if m.IsFailed(strain) {
		return 0
	}
	return m.tangent(strain)
}

func (m *Material) tangent(strain float64) float64 {
	if strain <= m.strainData[1] || m.linear {
		return m.youngsModulus
	}
	i := m.segment(strain)
	return (m.stressData[i] - m.stressData[i-1]) / (m.strainData[i] - m.strainData[i-1])
}

// segment returns the index of the end point of the segment holding strain,
// extrapolating the last segment.
func (m *Material) segment(strain float64) int {
	n := len(m.strainData)
	for i := 2; i < n; i++ {
		if strain <= m.strainData[i] {
			return i
		}
	}
	return n - 1
}

// Strain inverts the curve: the strain at which stress is reached.
func (m *Material) Strain(stress float64) float64 {
	if stress <= m.stressData[1] || m.linear {
		return stress / m.youngsModulus
	}

	n := len(m.stressData)
	for i := 2; i < n; i++ {
		if stress <= m.stressData[i] || i == n-1 {
			perc := (stress - m.stressData[i-1]) / (m.stressData[i] - m.stressData[i-1])
			return m.strainData[i-1] + perc*(m.strainData[i]-m.strainData[i-1])
		}
	}
	return 0
}

// IsYielded reports whether strain is past the yield point, if there is one.
func (m *Material) IsYielded(strain float64) bool {
	return m.yieldStrain != NoFailure && strain > m.yieldStrain
}

// IsFailed reports whether strain is past the failure point, if there is one.
func (m *Material) IsFailed(strain float64) bool {
	return m.failureStrain != NoFailure && strain > m.failureStrain
}

// ModelData returns copies of the curve points, origin included.
func (m *Material) ModelData() (strain, stress []float64) {
	return append([]float64(nil), m.strainData...), append([]float64(nil), m.stressData...)
}

// ============================================================================
// Properties
// ============================================================================

func (m *Material) YoungsModulus() float64    { return m.youngsModulus }
func (m *Material) PoissonsRatio() float64    { return m.poissonsRatio }
func (m *Material) Density() float64          { return m.density }
func (m *Material) CTE() float64              { return m.cte }
func (m *Material) StaticFriction() float64   { return m.staticFriction }
func (m *Material) KineticFriction() float64  { return m.kineticFriction }
func (m *Material) InternalDamping() float64  { return m.internalDamping }
func (m *Material) GlobalDamping() float64    { return m.globalDamping }
func (m *Material) CollisionDamping() float64 { return m.collisionDamping }
func (m *Material) YieldStress() float64      { return m.yieldStress }
func (m *Material) FailureStress() float64    { return m.failureStress }
func (m *Material) YieldStrain() float64      { return m.yieldStrain }
func (m *Material) FailureStrain() float64    { return m.failureStrain }
func (m *Material) IsLinear() bool            { return m.linear }

// EHat is the constrained modulus E/((1-2ν)(1+ν)).
func (m *Material) EHat() float64 { return m.eHat }

// IsXYZIndependent reports whether the axes deform independently (no Poisson effect).
func (m *Material) IsXYZIndependent() bool { return m.poissonsRatio == 0 }

// SetYoungsModulus makes the material linear with the given modulus, keeping its failure stress.
func (m *Material) SetYoungsModulus(youngsModulus float64) error {
	return m.SetModelLinear(youngsModulus, m.failureStress)
}

// SetPoissonsRatio clamps nu into [0, 0.5).
func (m *Material) SetPoissonsRatio(nu float64) {
	m.poissonsRatio = math.Min(math.Max(nu, 0), maxPoissonsRatio)
	m.updateDerived()
}

// SetDensity rejects non-positive densities.
func (m *Material) SetDensity(density float64) error {
	if density <= 0 {
		return fmt.Errorf("%w: density must be positive, got %g", ErrInvalidParameter, density)
	}
	m.density = density
	m.updateDerived()
	return nil
}

// SetCTE sets the coefficient of thermal expansion (strain per degree).
func (m *Material) SetCTE(cte float64) {
	m.cte = cte
	m.updateDerived()
}

func (m *Material) SetStaticFriction(mu float64) {
	m.staticFriction = math.Max(mu, 0)
	m.updateDerived()
}

func (m *Material) SetKineticFriction(mu float64) {
	m.kineticFriction = math.Max(mu, 0)
	m.updateDerived()
}

// SetInternalDamping sets the damping ratio of the links (1 is critical).
func (m *Material) SetInternalDamping(zeta float64) {
	m.internalDamping = math.Max(zeta, 0)
	m.updateDerived()
}

// SetGlobalDamping sets the damping ratio of each voxel relative to the ground.
func (m *Material) SetGlobalDamping(zeta float64) {
	m.globalDamping = math.Max(zeta, 0)
	m.updateDerived()
}

// SetCollisionDamping sets the damping ratio of floor and voxel contacts.
func (m *Material) SetCollisionDamping(zeta float64) {
	m.collisionDamping = math.Max(zeta, 0)
	m.updateDerived()
}
