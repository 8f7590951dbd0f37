package material

import "math"

// VoxelMaterial holds the constants of a material applied to a cube of edge Size.
// It is a snapshot: Version records the Material version it was derived from.
type VoxelMaterial struct {
	Size float64

	Mass           float64
	InverseMass    float64
	SqrtMass       float64
	Inertia        float64 // moment of inertia about any axis through the center
	InverseInertia float64
	FirstMoment    float64 // m·s/2, moment arm of the faces

	YoungsModulus   float64
	PoissonsRatio   float64
	CTE             float64
	StaticFriction  float64
	KineticFriction float64

	// damping ratios
	InternalDamping  float64
	GlobalDamping    float64
	CollisionDamping float64

	// damping coefficients, ζ·2√(m·E·s) for translation and ζ·2√(I·E·s³) for rotation
	InternalDampingTranslateC  float64
	InternalDampingRotateC     float64
	GlobalDampingTranslateC    float64
	GlobalDampingRotateC       float64
	CollisionDampingTranslateC float64
	CollisionDampingRotateC    float64

	// PenetrationStiffness is the spring constant of a voxel pressed into the floor or another voxel.
	PenetrationStiffness float64

	Version uint64
}

// DeriveVoxel computes the constants of m for cubes of edge size. A non-positive size
// yields a massless material with no stiffness.
func DeriveVoxel(m *Material, size float64) VoxelMaterial {
	vm := VoxelMaterial{
		Size:             size,
		YoungsModulus:    m.youngsModulus,
		PoissonsRatio:    m.poissonsRatio,
		CTE:              m.cte,
		StaticFriction:   m.staticFriction,
		KineticFriction:  m.kineticFriction,
		InternalDamping:  m.internalDamping,
		GlobalDamping:    m.globalDamping,
		CollisionDamping: m.collisionDamping,
		Version:          m.version,
	}
	if size <= 0 {
		return vm
	}

	vm.Mass = size * size * size * m.density
	if vm.Mass <= 0 {
		return vm
	}
	vm.InverseMass = 1 / vm.Mass
	vm.SqrtMass = math.Sqrt(vm.Mass)
	vm.Inertia = vm.Mass * size * size / 6
	vm.InverseInertia = 1 / vm.Inertia
	vm.FirstMoment = vm.Mass * size / 2

	translate := 2 * math.Sqrt(vm.Mass*m.youngsModulus*size)
	rotate := 2 * math.Sqrt(vm.Inertia*m.youngsModulus*size*size*size)
	vm.InternalDampingTranslateC = m.internalDamping * translate
	vm.InternalDampingRotateC = m.internalDamping * rotate
	vm.GlobalDampingTranslateC = m.globalDamping * translate
	vm.GlobalDampingRotateC = m.globalDamping * rotate
	vm.CollisionDampingTranslateC = m.collisionDamping * translate
	vm.CollisionDampingRotateC = m.collisionDamping * rotate

	vm.PenetrationStiffness = 2 * m.youngsModulus * size

	return vm
}

// DampingMultiplier scales velocity deltas of the links attached to this voxel:
// 2√m·ζ/dt. It is zero until a first step has set dt.
func (vm VoxelMaterial) DampingMultiplier(dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	return 2 * vm.SqrtMass * vm.InternalDamping / dt
}
