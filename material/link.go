package material

import (
	"fmt"
	"math"
)

// LinkMaterial is the combination of the two materials joined by a link, evaluated for
// a beam of length Size. The embedded Material carries the combined stress-strain curve.
type LinkMaterial struct {
	*Material

	Size float64

	// beam constants
	A1 float64 // E·L, axial
	A2 float64 // E·L³/(12(1+ν)), torsion
	B1 float64 // E·L, bending shear
	B2 float64 // E·L²/2, bending moment from deflection
	B3 float64 // E·L³/6, bending moment from rotation

	// square roots used by the damping terms
	SqA1     float64
	SqA2xIp  float64
	SqB1     float64
	SqB2xFMp float64
	SqB3xIp  float64

	VersionA uint64
	VersionB uint64
}

// DeriveLink combines a and b into the material of a link of length size.
// Properties are averaged, moduli combined in series and the weaker failure stress kept.
func DeriveLink(a, b *Material, size float64) (*LinkMaterial, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: link size must be positive, got %g", ErrInvalidParameter, size)
	}

	c := &Material{
		density:          (a.density + b.density) / 2,
		cte:              (a.cte + b.cte) / 2,
		staticFriction:   (a.staticFriction + b.staticFriction) / 2,
		kineticFriction:  (a.kineticFriction + b.kineticFriction) / 2,
		internalDamping:  (a.internalDamping + b.internalDamping) / 2,
		globalDamping:    (a.globalDamping + b.globalDamping) / 2,
		collisionDamping: (a.collisionDamping + b.collisionDamping) / 2,
	}
	if a.Name == b.Name {
		c.Name = a.Name
	} else {
		c.Name = a.Name + "+" + b.Name
	}

	var failureStress float64
	switch {
	case a.failureStress == NoFailure:
		failureStress = b.failureStress
	case b.failureStress == NoFailure:
		failureStress = a.failureStress
	default:
		failureStress = math.Min(a.failureStress, b.failureStress)
	}

	if a.linear && b.linear {
		if err := c.SetModelLinear(seriesModulus(a.youngsModulus, b.youngsModulus), failureStress); err != nil {
			return nil, err
		}
	} else {
		strain, stress := mergeCurves(a, b)
		if err := c.SetModel(strain, stress); err != nil {
			return nil, fmt.Errorf("combining %q and %q: %w", a.Name, b.Name, err)
		}
		c.failureStress = failureStress
		c.failureStrain = NoFailure
		if failureStress != NoFailure {
			c.failureStrain = c.Strain(failureStress)
		}
	}

	// Poisson's ratio from the series constrained modulus
	if a.poissonsRatio != 0 || b.poissonsRatio != 0 {
		eHat := seriesModulus(a.eHat, b.eHat)
		c2 := (eHat-c.youngsModulus)/(2*eHat) + 0.0625
		c.poissonsRatio = math.Min(math.Max(math.Sqrt(c2)-0.25, 0), maxPoissonsRatio)
	}
	c.updateDerived()

	lm := &LinkMaterial{
		Material: c,
		Size:     size,
		VersionA: a.version,
		VersionB: b.version,
	}
	lm.updateBeamConstants()

	return lm, nil
}

func (lm *LinkMaterial) updateBeamConstants() {
	E := lm.youngsModulus
	L := lm.Size
	nu := lm.poissonsRatio

	lm.A1 = E * L
	lm.A2 = E * L * L * L / (12 * (1 + nu))
	lm.B1 = E * L
	lm.B2 = E * L * L / 2
	lm.B3 = E * L * L * L / 6

	lm.SqA1 = math.Sqrt(lm.A1)
	lm.SqA2xIp = math.Sqrt(lm.A2 * L * L / 6)
	lm.SqB1 = math.Sqrt(lm.B1)
	lm.SqB2xFMp = math.Sqrt(lm.B2 * L / 2)
	lm.SqB3xIp = math.Sqrt(lm.B3 * L * L / 6)
}

// IsStale reports whether either source material changed since the link material was derived.
func (lm *LinkMaterial) IsStale(a, b *Material) bool {
	return lm.VersionA != a.version || lm.VersionB != b.version
}

func seriesModulus(e1, e2 float64) float64 {
	if e1+e2 == 0 {
		return 0
	}
	return 2 * e1 * e2 / (e1 + e2)
}

// mergeCurves walks the union of both strain breakpoints, combining the segment moduli
// in series. The merged curve ends with the shorter of the two.
func mergeCurves(a, b *Material) (strain, stress []float64) {
	lastStrain, lastStress := 0.0, 0.0
	i, j := 1, 1
	for i < len(a.strainData) && j < len(b.strainData) {
		s := math.Min(a.strainData[i], b.strainData[j])
		if s == a.strainData[i] {
			i++
		}
		if s == b.strainData[j] {
			j++
		}

		mid := (lastStrain + s) / 2
		modulus := seriesModulus(a.tangent(mid), b.tangent(mid))
		lastStress += modulus * (s - lastStrain)
		lastStrain = s

		strain = append(strain, lastStrain)
		stress = append(stress, lastStress)
	}
	return strain, stress
}
