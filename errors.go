package sponge

import (
	"errors"
	"fmt"
)

// Lattice errors
var (
	// ErrInvalidMaterial indicates a material handle that the lattice does not own.
	ErrInvalidMaterial = errors.New("sponge: unknown material")

	// ErrDuplicateVoxel indicates a voxel already occupies the lattice coordinate.
	ErrDuplicateVoxel = errors.New("sponge: voxel already present at coordinate")

	// ErrNoVoxel indicates no voxel occupies the lattice coordinate.
	ErrNoVoxel = errors.New("sponge: no voxel at coordinate")

	// ErrTopologyLocked indicates a voxel was added or removed while stepping.
	ErrTopologyLocked = errors.New("sponge: topology cannot change while stepping")

	// ErrEmptyLattice indicates a step was requested on a lattice without voxels.
	ErrEmptyLattice = errors.New("sponge: lattice has no voxels")

	// ErrDiverged indicates a non-finite voxel state or a runaway link strain.
	ErrDiverged = errors.New("sponge: simulation diverged")

	// ErrStopped indicates the lattice was stopped and accepts no more steps.
	ErrStopped = errors.New("sponge: lattice stopped")

	// ErrFailedState indicates the lattice diverged and must be reset first.
	ErrFailedState = errors.New("sponge: lattice failed, reset required")

	// ErrInvalidVoxelSize indicates a non-positive voxel edge length.
	ErrInvalidVoxelSize = errors.New("sponge: voxel size must be positive")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%gs): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
