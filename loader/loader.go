// Package loader reads and writes lattice documents: the voxels of a body, their
// materials, the environment and the boundary conditions, as YAML.
package loader

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/akmonengine/sponge"
	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/geom"
	"github.com/akmonengine/sponge/material"
)

// ErrInvalidDocument indicates a document that cannot describe a lattice.
var ErrInvalidDocument = errors.New("loader: invalid document")

const (
	ModelLinear   = "linear"
	ModelBilinear = "bilinear"
	ModelData     = "data"
)

type Document struct {
	VoxelSize   float64      `yaml:"voxel_size"`
	Environment *Environment `yaml:"environment,omitempty"`
	Materials   []Material   `yaml:"materials"`
	// Voxels are [x, y, z, material] rows
	Voxels    [][]int    `yaml:"voxels,flow"`
	Externals []External `yaml:"externals,omitempty"`
}

type Environment struct {
	Gravity            []float64 `yaml:"gravity,flow,omitempty"`
	AmbientTemperature float64   `yaml:"ambient_temperature,omitempty"`
	Floor              bool      `yaml:"floor,omitempty"`
	Collisions         bool      `yaml:"collisions,omitempty"`
}

// Material describes one substance. FailureStress 0 means the material never fails.
type Material struct {
	Name  string `yaml:"name,omitempty"`
	Model string `yaml:"model"`

	YoungsModulus  float64   `yaml:"youngs_modulus,omitempty"`
	PlasticModulus float64   `yaml:"plastic_modulus,omitempty"`
	YieldStress    float64   `yaml:"yield_stress,omitempty"`
	FailureStress  float64   `yaml:"failure_stress,omitempty"`
	Strain         []float64 `yaml:"strain,flow,omitempty"`
	Stress         []float64 `yaml:"stress,flow,omitempty"`

	Density          float64  `yaml:"density"`
	PoissonsRatio    float64  `yaml:"poissons_ratio,omitempty"`
	CTE              float64  `yaml:"cte,omitempty"`
	StaticFriction   float64  `yaml:"static_friction,omitempty"`
	KineticFriction  float64  `yaml:"kinetic_friction,omitempty"`
	InternalDamping  *float64 `yaml:"internal_damping,omitempty"`
	GlobalDamping    float64  `yaml:"global_damping,omitempty"`
	CollisionDamping float64  `yaml:"collision_damping,omitempty"`
}

// External applies the same boundary conditions to every listed voxel.
// Fixed holds the x, y, z translation then x, y, z rotation flags.
type External struct {
	Voxels    [][]int   `yaml:"voxels,flow"`
	Fixed     []bool    `yaml:"fixed,flow,omitempty"`
	Translate []float64 `yaml:"translate,flow,omitempty"`
	Rotate    []float64 `yaml:"rotate,flow,omitempty"`
	Force     []float64 `yaml:"force,flow,omitempty"`
	Moment    []float64 `yaml:"moment,flow,omitempty"`
}

// Parse decodes and validates a document.
func Parse(data []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Save(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the shape of the document. Material curves are checked when built.
func (d *Document) Validate() error {
	if d.VoxelSize <= 0 {
		return fmt.Errorf("%w: voxel_size must be positive, got %g", ErrInvalidDocument, d.VoxelSize)
	}
	if d.Environment != nil && d.Environment.Gravity != nil && len(d.Environment.Gravity) != 3 {
		return fmt.Errorf("%w: gravity needs 3 components", ErrInvalidDocument)
	}

	for i, m := range d.Materials {
		switch m.Model {
		case ModelLinear, ModelBilinear, ModelData:
		default:
			return fmt.Errorf("%w: material %d has unknown model %q", ErrInvalidDocument, i, m.Model)
		}
	}

	for i, row := range d.Voxels {
		if len(row) != 4 {
			return fmt.Errorf("%w: voxel %d needs [x, y, z, material], got %v", ErrInvalidDocument, i, row)
		}
		if row[3] < 0 || row[3] >= len(d.Materials) {
			return fmt.Errorf("%w: voxel %d references material %d", ErrInvalidDocument, i, row[3])
		}
	}

	for i, e := range d.Externals {
		for _, row := range e.Voxels {
			if len(row) != 3 {
				return fmt.Errorf("%w: external %d needs [x, y, z] voxels, got %v", ErrInvalidDocument, i, row)
			}
		}
		if e.Fixed != nil && len(e.Fixed) != 6 {
			return fmt.Errorf("%w: external %d needs 6 fixed flags", ErrInvalidDocument, i)
		}
		for _, v := range [][]float64{e.Translate, e.Rotate, e.Force, e.Moment} {
			if v != nil && len(v) != 3 {
				return fmt.Errorf("%w: external %d vectors need 3 components", ErrInvalidDocument, i)
			}
		}
	}
	return nil
}

// Build creates a lattice holding the document.
func Build(doc *Document) (*sponge.Lattice, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	l, err := sponge.NewLattice(doc.VoxelSize)
	if err != nil {
		return nil, err
	}
	if err := Populate(l, doc); err != nil {
		return nil, err
	}
	return l, nil
}

// Populate adds the document to an existing lattice, typically one built from a run
// configuration. The document voxel size and environment override the lattice ones.
func Populate(l *sponge.Lattice, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := l.SetVoxelSize(doc.VoxelSize); err != nil {
		return err
	}

	if env := doc.Environment; env != nil {
		if env.Gravity != nil {
			l.SetGravity(toVec3(env.Gravity))
		}
		l.SetAmbientTemperature(env.AmbientTemperature)
		l.EnableFloor(env.Floor)
		l.EnableCollisions(env.Collisions)
	}

	handles := make([]int, len(doc.Materials))
	for i, dm := range doc.Materials {
		m, err := dm.build()
		if err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
		if handles[i], err = l.AddMaterialFrom(m); err != nil {
			return err
		}
	}

	for _, row := range doc.Voxels {
		idx := geom.Index3D{X: row[0], Y: row[1], Z: row[2]}
		if _, err := l.AddVoxel(handles[row[3]], idx); err != nil {
			return err
		}
	}

	for _, e := range doc.Externals {
		for _, row := range e.Voxels {
			ext, err := l.External(geom.Index3D{X: row[0], Y: row[1], Z: row[2]})
			if err != nil {
				return err
			}
			e.applyTo(ext)
		}
	}
	return nil
}

func (dm Material) build() (*material.Material, error) {
	failure := dm.FailureStress
	if failure == 0 {
		failure = material.NoFailure
	}

	m := material.New(dm.YoungsModulus, dm.Density)
	m.Name = dm.Name

	var err error
	switch dm.Model {
	case ModelLinear:
		err = m.SetModelLinear(m.YoungsModulus(), failure)
	case ModelBilinear:
		err = m.SetModelBilinear(dm.YoungsModulus, dm.PlasticModulus, dm.YieldStress, failure)
	case ModelData:
		err = m.SetModel(dm.Strain, dm.Stress)
	}
	if err != nil {
		return nil, err
	}

	m.SetPoissonsRatio(dm.PoissonsRatio)
	m.SetCTE(dm.CTE)
	m.SetStaticFriction(dm.StaticFriction)
	m.SetKineticFriction(dm.KineticFriction)
	if dm.InternalDamping != nil {
		m.SetInternalDamping(*dm.InternalDamping)
	}
	m.SetGlobalDamping(dm.GlobalDamping)
	m.SetCollisionDamping(dm.CollisionDamping)
	return m, nil
}

func (e External) applyTo(ext *actor.External) {
	for i, fixed := range e.Fixed {
		if fixed {
			ext.Fixed |= actor.DOF(1 << i)
		}
	}
	if e.Translate != nil {
		ext.Translation = toVec3(e.Translate)
	}
	if e.Rotate != nil {
		ext.Rotation = toVec3(e.Rotate)
	}
	if e.Force != nil {
		ext.Force = toVec3(e.Force)
	}
	if e.Moment != nil {
		ext.Moment = toVec3(e.Moment)
	}
}

// ============================================================================
// Export
// ============================================================================

// FromLattice describes the current topology, materials and boundary conditions of l.
// Voxel positions and velocities are not part of a document.
func FromLattice(l *sponge.Lattice) *Document {
	env := l.Environment()
	doc := &Document{
		VoxelSize: l.VoxelSize(),
		Environment: &Environment{
			Gravity:            fromVec3(env.Gravity),
			AmbientTemperature: env.AmbientTemperature,
			Floor:              env.FloorEnabled,
			Collisions:         env.CollisionsEnabled,
		},
	}

	for h := 0; h < l.MaterialCount(); h++ {
		m, _ := l.Material(h)
		doc.Materials = append(doc.Materials, fromMaterial(m))
	}

	for i := 0; i < l.VoxelCount(); i++ {
		v, _ := l.Voxel(i)
		row := []int{v.Index.X, v.Index.Y, v.Index.Z, v.Material}
		doc.Voxels = append(doc.Voxels, row)

		if v.External == nil || v.External.IsEmpty() {
			continue
		}
		doc.Externals = append(doc.Externals, fromExternal(v.Index, v.External))
	}
	return doc
}

func fromMaterial(m *material.Material) Material {
	zeta := m.InternalDamping()
	dm := Material{
		Name:             m.Name,
		Density:          m.Density(),
		PoissonsRatio:    m.PoissonsRatio(),
		CTE:              m.CTE(),
		StaticFriction:   m.StaticFriction(),
		KineticFriction:  m.KineticFriction(),
		InternalDamping:  &zeta,
		GlobalDamping:    m.GlobalDamping(),
		CollisionDamping: m.CollisionDamping(),
	}

	failure := m.FailureStress()
	if failure == material.NoFailure {
		failure = 0
	}

	strain, stress := m.ModelData()
	switch {
	case m.IsLinear():
		dm.Model = ModelLinear
		dm.YoungsModulus = m.YoungsModulus()
		dm.FailureStress = failure
	case m.FailureStrain() == material.NoFailure:
		// only a bilinear model keeps running past its last point
		dm.Model = ModelBilinear
		dm.YoungsModulus = m.YoungsModulus()
		dm.PlasticModulus = (stress[2] - stress[1]) / (strain[2] - strain[1])
		dm.YieldStress = m.YieldStress()
	default:
		dm.Model = ModelData
		dm.Strain = strain[1:]
		dm.Stress = stress[1:]
	}
	return dm
}

func fromExternal(idx geom.Index3D, ext *actor.External) External {
	e := External{Voxels: [][]int{{idx.X, idx.Y, idx.Z}}}
	if ext.Fixed != 0 {
		e.Fixed = make([]bool, 6)
		for i := range e.Fixed {
			e.Fixed[i] = ext.IsFixed(actor.DOF(1 << i))
		}
	}
	if ext.Translation != (mgl64.Vec3{}) {
		e.Translate = fromVec3(ext.Translation)
	}
	if ext.Rotation != (mgl64.Vec3{}) {
		e.Rotate = fromVec3(ext.Rotation)
	}
	if ext.Force != (mgl64.Vec3{}) {
		e.Force = fromVec3(ext.Force)
	}
	if ext.Moment != (mgl64.Vec3{}) {
		e.Moment = fromVec3(ext.Moment)
	}
	return e
}

func toVec3(v []float64) mgl64.Vec3 {
	return mgl64.Vec3{v[0], v[1], v[2]}
}

func fromVec3(v mgl64.Vec3) []float64 {
	return []float64{v[0], v[1], v[2]}
}
