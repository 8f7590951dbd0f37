package sponge

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StateInfoKind selects the quantity StateInfo aggregates
type StateInfoKind uint8

const (
	// link quantities
	StrainEnergy StateInfoKind = iota
	EngineeringStress
	EngineeringStrain

	// voxel quantities
	DisplacementMagnitude
	VelocityMagnitude
	KineticEnergy
	AngularDisplacementMagnitude
	AngularVelocityMagnitude
	Pressure
	Mass
)

func (k StateInfoKind) isLinkKind() bool {
	return k <= EngineeringStrain
}

// Aggregate reduces the per element values of StateInfo
type Aggregate uint8

const (
	Min Aggregate = iota
	Max
	Total
	Average
)

// StateInfo aggregates a quantity over every link or every voxel. It is 0 when the
// lattice holds no element of that kind.
func (l *Lattice) StateInfo(kind StateInfoKind, aggregate Aggregate) float64 {
	values := l.stateValues(kind)
	if len(values) == 0 {
		return 0
	}

	switch aggregate {
	case Min:
		return floats.Min(values)
	case Max:
		return floats.Max(values)
	case Total:
		return floats.Sum(values)
	case Average:
		return stat.Mean(values, nil)
	default:
		return 0
	}
}

func (l *Lattice) stateValues(kind StateInfoKind) []float64 {
	if kind.isLinkKind() {
		values := make([]float64, len(l.links))
		for i, link := range l.links {
			switch kind {
			case StrainEnergy:
				values[i] = link.StrainEnergy(l.linkMaterials[link.Material])
			case EngineeringStress:
				values[i] = link.AxialStress()
			case EngineeringStrain:
				values[i] = link.AxialStrain()
			}
		}
		return values
	}

	values := make([]float64, len(l.voxels))
	for i, v := range l.voxels {
		mat := &l.materials[v.Material].voxel
		switch kind {
		case DisplacementMagnitude:
			values[i] = v.Displacement(l.voxelSize).Len()
		case VelocityMagnitude:
			values[i] = v.VelocityMagnitude()
		case KineticEnergy:
			values[i] = v.KineticEnergy(mat)
		case AngularDisplacementMagnitude:
			values[i], _ = l.AngularDisplacement(i)
		case AngularVelocityMagnitude:
			values[i] = v.AngularVelocityMagnitude()
		case Pressure:
			values[i], _ = l.Pressure(i)
		case Mass:
			values[i] = mat.Mass
		}
	}
	return values
}
