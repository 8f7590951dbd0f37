package constraint

import (
	"errors"
	"math"

	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/material"
)

// ErrNotAdjacent is returned when two voxels do not share a face.
var ErrNotAdjacent = errors.New("constraint: voxels are not face adjacent")

// End is one of the two voxels a constraint acts on, with the constants of its material.
type End struct {
	Voxel    *actor.Voxel
	Material *material.VoxelMaterial
}

// CombineStiffness keeps the stiffer of two penetration stiffnesses
func CombineStiffness(a, b *material.VoxelMaterial) float64 {
	return math.Max(a.PenetrationStiffness, b.PenetrationStiffness)
}

// CombineDamping averages the collision damping coefficients
func CombineDamping(a, b *material.VoxelMaterial) float64 {
	return (a.CollisionDampingTranslateC + b.CollisionDampingTranslateC) / 2.0
}
