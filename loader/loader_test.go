package loader

import (
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/akmonengine/sponge"
	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/config"
	"github.com/akmonengine/sponge/geom"
	"github.com/akmonengine/sponge/material"
)

const beamDocument = `
voxel_size: 0.01
environment:
  gravity: [0, 0, -9.81]
  floor: true
materials:
  - name: rubber
    model: linear
    youngs_modulus: 1.0e+6
    density: 1000
    poissons_ratio: 0.35
    static_friction: 1
    kinetic_friction: 0.5
  - name: foam
    model: data
    strain: [0.01, 0.02, 0.03]
    stress: [1.0e+4, 1.5e+4, 1.8e+4]
    density: 50
    internal_damping: 0.5
voxels:
  - [0, 0, 0, 0]
  - [1, 0, 0, 0]
  - [2, 0, 0, 1]
externals:
  - voxels: [[0, 0, 0]]
    fixed: [true, true, true, true, true, true]
  - voxels: [[2, 0, 0]]
    force: [0, 0, -0.1]
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(beamDocument))
	require.NoError(t, err)

	assert.Equal(t, 0.01, doc.VoxelSize)
	require.Len(t, doc.Materials, 2)
	assert.Equal(t, "rubber", doc.Materials[0].Name)
	assert.Equal(t, ModelData, doc.Materials[1].Model)
	require.NotNil(t, doc.Materials[1].InternalDamping)
	assert.Equal(t, 0.5, *doc.Materials[1].InternalDamping)
	assert.Nil(t, doc.Materials[0].InternalDamping)
	assert.Len(t, doc.Voxels, 3)
	assert.Len(t, doc.Externals, 2)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		document string
	}{
		{"not yaml", "voxel_size: [1"},
		{"missing voxel size", "materials: []"},
		{"short gravity", "voxel_size: 0.01\nenvironment:\n  gravity: [0, 0]"},
		{"unknown model", "voxel_size: 0.01\nmaterials:\n  - model: rubbery\n    density: 1"},
		{"short voxel row", "voxel_size: 0.01\nmaterials:\n  - model: linear\n    density: 1\nvoxels:\n  - [0, 0, 0]"},
		{"unknown material", "voxel_size: 0.01\nmaterials:\n  - model: linear\n    density: 1\nvoxels:\n  - [0, 0, 0, 1]"},
		{"short external voxel", "voxel_size: 0.01\nexternals:\n  - voxels: [[0, 0]]"},
		{"fixed flags", "voxel_size: 0.01\nexternals:\n  - voxels: [[0, 0, 0]]\n    fixed: [true]"},
		{"short force", "voxel_size: 0.01\nexternals:\n  - voxels: [[0, 0, 0]]\n    force: [1, 2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.document))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestBuild(t *testing.T) {
	doc, err := Parse([]byte(beamDocument))
	require.NoError(t, err)

	l, err := Build(doc)
	require.NoError(t, err)

	assert.Equal(t, 0.01, l.VoxelSize())
	assert.Equal(t, 3, l.VoxelCount())
	assert.Equal(t, 2, l.LinkCount())
	assert.Equal(t, 2, l.MaterialCount())

	env := l.Environment()
	assert.True(t, env.FloorEnabled)
	assert.False(t, env.CollisionsEnabled)
	assert.Equal(t, mgl64.Vec3{0, 0, -9.81}, env.Gravity)

	rubber, ok := l.Material(0)
	require.True(t, ok)
	assert.Equal(t, 1e6, rubber.YoungsModulus())
	assert.InDelta(t, 0.35, rubber.PoissonsRatio(), 1e-12)
	assert.Equal(t, 0.5, rubber.KineticFriction())
	assert.Equal(t, material.NoFailure, rubber.FailureStress())

	foam, ok := l.Material(1)
	require.True(t, ok)
	assert.False(t, foam.IsLinear())
	assert.InDelta(t, 1e6, foam.YoungsModulus(), 1e-6)
	assert.Equal(t, 1.8e4, foam.FailureStress())
	assert.Equal(t, 0.5, foam.InternalDamping())

	fixed, ok := l.VoxelAt(geom.Index3D{})
	require.True(t, ok)
	require.NotNil(t, fixed.External)
	assert.True(t, fixed.External.IsFixedAll())

	tip, ok := l.VoxelAt(geom.Index3D{X: 2})
	require.True(t, ok)
	require.NotNil(t, tip.External)
	assert.Equal(t, mgl64.Vec3{0, 0, -0.1}, tip.External.Force)
	assert.Equal(t, 1, tip.Material)

	free, ok := l.VoxelAt(geom.Index3D{X: 1})
	require.True(t, ok)
	assert.Nil(t, free.External)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("bad curve", func(t *testing.T) {
		doc := &Document{
			VoxelSize: 0.01,
			Materials: []Material{{Model: ModelData, Strain: []float64{0.2, 0.1}, Stress: []float64{1e5, 2e5}, Density: 1}},
		}
		_, err := Build(doc)
		assert.ErrorIs(t, err, material.ErrInvalidModel)
	})

	t.Run("duplicate voxel", func(t *testing.T) {
		doc := &Document{
			VoxelSize: 0.01,
			Materials: []Material{{Model: ModelLinear, YoungsModulus: 1e6, Density: 1e3}},
			Voxels:    [][]int{{0, 0, 0, 0}, {0, 0, 0, 0}},
		}
		_, err := Build(doc)
		assert.ErrorIs(t, err, sponge.ErrDuplicateVoxel)
	})

	t.Run("external without voxel", func(t *testing.T) {
		doc := &Document{
			VoxelSize: 0.01,
			Externals: []External{{Voxels: [][]int{{4, 4, 4}}, Force: []float64{1, 0, 0}}},
		}
		_, err := Build(doc)
		assert.ErrorIs(t, err, sponge.ErrNoVoxel)
	})
}

func TestBuild_Steps(t *testing.T) {
	doc, err := Parse([]byte(beamDocument))
	require.NoError(t, err)
	// the beam rests on the floor otherwise, and the tip bounces off it
	doc.Environment.Floor = false
	l, err := Build(doc)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		status, err := l.DoTimeStep(-1)
		require.NoError(t, err)
		require.Equal(t, sponge.StepOK, status)
	}

	tip, _ := l.VoxelAt(geom.Index3D{X: 2})
	assert.Less(t, tip.Displacement(l.VoxelSize()).Z(), 0.0, "the loaded tip bends down")
}

func TestPopulate_OverridesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workers = 2
	l, err := sponge.NewLatticeFromConfig(cfg)
	require.NoError(t, err)

	doc, err := Parse([]byte(beamDocument))
	require.NoError(t, err)
	require.NoError(t, Populate(l, doc))

	assert.Equal(t, 2, l.Workers)
	assert.Equal(t, 0.01, l.VoxelSize())
	assert.Equal(t, 3, l.VoxelCount())
	assert.True(t, l.Environment().FloorEnabled)
}

func TestFromLattice(t *testing.T) {
	l, err := sponge.NewLattice(0.002)
	require.NoError(t, err)

	linear := material.New(2e6, 1200)
	linear.Name = "linear"
	require.NoError(t, linear.SetModelLinear(2e6, 1e5))
	linear.SetCTE(1e-4)

	bilinear := material.New(1e6, 1000)
	bilinear.Name = "bilinear"
	require.NoError(t, bilinear.SetModelBilinear(1e6, 1e5, 1e4, material.NoFailure))
	bilinear.SetCollisionDamping(0.8)

	hl, err := l.AddMaterialFrom(linear)
	require.NoError(t, err)
	hb, err := l.AddMaterialFrom(bilinear)
	require.NoError(t, err)

	_, err = l.AddVoxel(hl, geom.Index3D{})
	require.NoError(t, err)
	_, err = l.AddVoxel(hb, geom.Index3D{Z: 1})
	require.NoError(t, err)

	ext, err := l.External(geom.Index3D{})
	require.NoError(t, err)
	ext.Fixed = actor.TranslateAll
	ext.Translation = mgl64.Vec3{0, 0, 0.0001}

	doc := FromLattice(l)

	assert.Equal(t, 0.002, doc.VoxelSize)
	assert.Equal(t, [][]int{{0, 0, 0, 0}, {0, 0, 1, 1}}, doc.Voxels)
	require.Len(t, doc.Materials, 2)

	assert.Equal(t, ModelLinear, doc.Materials[0].Model)
	assert.Equal(t, 2e6, doc.Materials[0].YoungsModulus)
	assert.Equal(t, 1e5, doc.Materials[0].FailureStress)
	assert.Equal(t, 1e-4, doc.Materials[0].CTE)

	assert.Equal(t, ModelBilinear, doc.Materials[1].Model)
	assert.InDelta(t, 1e5, doc.Materials[1].PlasticModulus, 1e-3)
	assert.Equal(t, 1e4, doc.Materials[1].YieldStress)
	assert.Zero(t, doc.Materials[1].FailureStress)
	assert.Equal(t, 0.8, doc.Materials[1].CollisionDamping)

	require.Len(t, doc.Externals, 1)
	assert.Equal(t, []bool{true, true, true, false, false, false}, doc.Externals[0].Fixed)
	assert.Equal(t, []float64{0, 0, 0.0001}, doc.Externals[0].Translate)
	assert.Nil(t, doc.Externals[0].Force)
}

func TestRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(beamDocument))
	require.NoError(t, err)
	l, err := Build(doc)
	require.NoError(t, err)

	data, err := yaml.Marshal(FromLattice(l))
	require.NoError(t, err)
	again, err := Parse(data)
	require.NoError(t, err)

	rebuilt, err := Build(again)
	require.NoError(t, err)
	assert.Equal(t, l.VoxelCount(), rebuilt.VoxelCount())
	assert.Equal(t, l.LinkCount(), rebuilt.LinkCount())
	assert.Equal(t, doc.Voxels, again.Voxels)
	assert.Equal(t, doc.Materials[1].Strain, again.Materials[1].Strain)
	assert.Equal(t, doc.Materials[1].Stress, again.Materials[1].Stress)

	for h := 0; h < l.MaterialCount(); h++ {
		want, _ := l.Material(h)
		got, _ := rebuilt.Material(h)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.YoungsModulus(), got.YoungsModulus())
		assert.Equal(t, want.FailureStress(), got.FailureStress())
		assert.Equal(t, want.InternalDamping(), got.InternalDamping())
		assert.Equal(t, want.Density(), got.Density())
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beam.yaml")

	doc, err := Parse([]byte(beamDocument))
	require.NoError(t, err)
	require.NoError(t, Save(path, doc))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
