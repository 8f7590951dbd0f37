package sponge

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/config"
	"github.com/akmonengine/sponge/constraint"
	"github.com/akmonengine/sponge/geom"
	"github.com/akmonengine/sponge/material"
)

const (
	DefaultInstabilityFactor     = 10.0
	DefaultCollisionEnvelope     = 0.49 // half the edge, less a contact tolerance
	DefaultCollisionExcludeDepth = 2

	gridCells = 4096
)

// State of the lattice lifecycle
type State uint8

const (
	StateUninitialized State = iota
	StateBuilt
	// StateStepping lasts from the first step until Reset or Stop
	StateStepping
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilt:
		return "built"
	case StateStepping:
		return "stepping"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Environment holds the global simulation parameters
type Environment struct {
	// Gravity acceleration (m/s²)
	Gravity            mgl64.Vec3
	AmbientTemperature float64
	FloorEnabled       bool
	CollisionsEnabled  bool
}

func DefaultEnvironment() Environment {
	return Environment{Gravity: mgl64.Vec3{0, 0, -material.StandardGravity}}
}

// LoadProvider supplies the boundary conditions of a voxel before each step.
// Returning false leaves the current External of the voxel untouched.
type LoadProvider interface {
	Load(voxel int, idx geom.Index3D, t float64) (actor.External, bool)
}

type materialEntry struct {
	mat   *material.Material
	voxel material.VoxelMaterial
}

type materialPair struct {
	a, b int
}

func makeMaterialPair(a, b int) materialPair {
	if b < a {
		a, b = b, a
	}
	return materialPair{a: a, b: b}
}

// Lattice owns the materials, voxels and links of a soft body and advances them in time.
// Voxels, links and materials are referenced by their index in the lattice arenas.
type Lattice struct {
	Workers int
	Events  Events
	Log     logrus.FieldLogger
	Loads   LoadProvider

	// a step larger than InstabilityFactor times the recommended one is flagged unstable
	InstabilityFactor float64
	// collision radius as a fraction of the voxel base size
	CollisionEnvelope float64
	// voxels closer than this many link hops never collide
	CollisionExcludeDepth int

	env       Environment
	voxelSize float64
	state     State

	materials         []*materialEntry
	linkMaterials     []*material.LinkMaterial
	linkMaterialIndex map[materialPair]int
	hasPoisson        bool

	voxels     []*actor.Voxel
	voxelIndex map[geom.Index3D]int
	indices    []int
	links      []*constraint.Link

	linkFailed  []bool
	linkYielded []bool

	contacts      []*constraint.Contact
	voxelContacts [][]*constraint.Contact
	grid          *SpatialGrid
	boxes         []actor.AABB
	nearby        []map[int]struct{}
	nearbyStale   bool

	time          float64
	step          int
	lastDt        float64
	recommendedDt float64
	unstable      bool
}

// NewLattice creates an empty lattice of cubic voxels of edge voxelSize (m).
func NewLattice(voxelSize float64) (*Lattice, error) {
	if voxelSize <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidVoxelSize, voxelSize)
	}

	return &Lattice{
		Events:                NewEvents(),
		Log:                   config.NamedLogger("sponge"),
		InstabilityFactor:     DefaultInstabilityFactor,
		CollisionEnvelope:     DefaultCollisionEnvelope,
		CollisionExcludeDepth: DefaultCollisionExcludeDepth,
		env:                   DefaultEnvironment(),
		voxelSize:             voxelSize,
		linkMaterialIndex:     make(map[materialPair]int),
		voxelIndex:            make(map[geom.Index3D]int),
		grid:                  NewSpatialGrid(voxelSize, gridCells),
	}, nil
}

// NewLatticeFromConfig creates an empty lattice set up from cfg.
func NewLatticeFromConfig(cfg *config.Config) (*Lattice, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l, err := NewLattice(cfg.VoxelSize)
	if err != nil {
		return nil, err
	}
	l.Workers = cfg.Workers
	l.Log = cfg.Logger("sponge")
	l.InstabilityFactor = cfg.InstabilityFactor
	l.CollisionEnvelope = cfg.CollisionEnvelope
	l.CollisionExcludeDepth = cfg.CollisionExcludeDepth
	l.SetGravity(mgl64.Vec3{0, 0, -cfg.Gravity})
	l.EnableFloor(cfg.Floor)
	l.EnableCollisions(cfg.Collisions)
	l.SetAmbientTemperature(cfg.AmbientTemperature)

	return l, nil
}

func (l *Lattice) State() State {
	return l.state
}

// Time is the simulated time since the last reset (s)
func (l *Lattice) Time() float64 {
	return l.time
}

func (l *Lattice) StepCount() int {
	return l.step
}

// LastTimeStep is the dt used by the last step
func (l *Lattice) LastTimeStep() float64 {
	return l.lastDt
}

func (l *Lattice) VoxelSize() float64 {
	return l.voxelSize
}

func (l *Lattice) Environment() Environment {
	return l.env
}

// ============================================================================
// Environment
// ============================================================================

func (l *Lattice) EnableFloor(enabled bool) {
	l.env.FloorEnabled = enabled
}

func (l *Lattice) EnableCollisions(enabled bool) {
	if enabled && !l.env.CollisionsEnabled {
		l.nearbyStale = true
	}
	if !enabled {
		l.contacts = l.contacts[:0]
		clear(l.voxelContacts)
	}
	l.env.CollisionsEnabled = enabled
}

func (l *Lattice) SetGravity(gravity mgl64.Vec3) {
	l.env.Gravity = gravity
}

// SetAmbientTemperature sets the temperature of every voxel, relative to the build temperature.
// Thermal expansion changes the rest length of the links.
func (l *Lattice) SetAmbientTemperature(temperature float64) {
	l.env.AmbientTemperature = temperature
	for _, v := range l.voxels {
		v.Temperature = temperature
	}
}

// SetVoxelTemperature overrides the temperature of a single voxel.
func (l *Lattice) SetVoxelTemperature(idx geom.Index3D, temperature float64) error {
	i, ok := l.voxelIndex[idx]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoVoxel, idx)
	}
	l.voxels[i].Temperature = temperature
	return nil
}

// SetVoxelSize changes the edge length of every voxel and returns them to their lattice positions.
func (l *Lattice) SetVoxelSize(size float64) error {
	if size <= 0 {
		return fmt.Errorf("%w: got %g", ErrInvalidVoxelSize, size)
	}
	if err := l.checkTopologyEditable(); err != nil {
		return err
	}

	l.voxelSize = size
	l.grid.SetCellSize(size)
	if err := l.refreshMaterials(); err != nil {
		return err
	}
	for _, v := range l.voxels {
		v.Reset(size)
		v.Temperature = l.env.AmbientTemperature
	}
	for _, link := range l.links {
		link.Reset(l.end(link.Neg), l.end(link.Pos))
	}
	return nil
}

// ============================================================================
// Materials
// ============================================================================

// AddMaterial adds a linear material. Non-positive values fall back to the material defaults.
func (l *Lattice) AddMaterial(youngsModulus, density float64) int {
	h, _ := l.AddMaterialFrom(material.New(youngsModulus, density))
	return h
}

// AddMaterialCurve adds a material defined by stress-strain points.
func (l *Lattice) AddMaterialCurve(strain, stress []float64, density float64) (int, error) {
	m := material.New(material.DefaultYoungsModulus, density)
	if err := m.SetModel(strain, stress); err != nil {
		return -1, err
	}
	return l.AddMaterialFrom(m)
}

// AddMaterialFrom adds m to the lattice. The lattice keeps the pointer: later mutations
// of m are picked up before the next step.
func (l *Lattice) AddMaterialFrom(m *material.Material) (int, error) {
	if m == nil {
		return -1, fmt.Errorf("%w: nil material", ErrInvalidMaterial)
	}

	entry := &materialEntry{mat: m, voxel: material.DeriveVoxel(m, l.voxelSize)}
	l.materials = append(l.materials, entry)
	if m.PoissonsRatio() != 0 {
		l.hasPoisson = true
	}

	h := len(l.materials) - 1
	l.Log.WithFields(logrus.Fields{"material": h, "name": m.Name}).Debug("material added")
	return h, nil
}

// Material returns the material of handle h
func (l *Lattice) Material(h int) (*material.Material, bool) {
	if h < 0 || h >= len(l.materials) {
		return nil, false
	}
	return l.materials[h].mat, true
}

func (l *Lattice) MaterialCount() int {
	return len(l.materials)
}

// VoxelMaterial returns the derived constants of the material of voxel i
func (l *Lattice) VoxelMaterial(i int) (*material.VoxelMaterial, bool) {
	if i < 0 || i >= len(l.voxels) {
		return nil, false
	}
	return &l.materials[l.voxels[i].Material].voxel, true
}

// LinkMaterial returns the combined material of link i
func (l *Lattice) LinkMaterial(i int) (*material.LinkMaterial, bool) {
	if i < 0 || i >= len(l.links) {
		return nil, false
	}
	return l.linkMaterials[l.links[i].Material], true
}

// refreshMaterials re-derives the voxel and link constants of every material that changed
// since the last derivation.
func (l *Lattice) refreshMaterials() error {
	changed := false
	l.hasPoisson = false
	for _, entry := range l.materials {
		if entry.voxel.Version != entry.mat.Version() || entry.voxel.Size != l.voxelSize {
			entry.voxel = material.DeriveVoxel(entry.mat, l.voxelSize)
			changed = true
		}
		if entry.mat.PoissonsRatio() != 0 {
			l.hasPoisson = true
		}
	}

	for pair, h := range l.linkMaterialIndex {
		a, b := l.materials[pair.a].mat, l.materials[pair.b].mat
		lm := l.linkMaterials[h]
		if !lm.IsStale(a, b) && lm.Size == l.voxelSize {
			continue
		}
		derived, err := material.DeriveLink(a, b, l.voxelSize)
		if err != nil {
			return err
		}
		l.linkMaterials[h] = derived
		changed = true
	}

	if changed {
		for _, link := range l.links {
			link.UpdateMaterial(l.end(link.Neg), l.end(link.Pos))
		}
	}
	return nil
}

// linkMaterial returns the handle of the combined material of a and b, deriving it once
func (l *Lattice) linkMaterial(a, b int) (int, error) {
	pair := makeMaterialPair(a, b)
	if h, ok := l.linkMaterialIndex[pair]; ok {
		return h, nil
	}

	lm, err := material.DeriveLink(l.materials[pair.a].mat, l.materials[pair.b].mat, l.voxelSize)
	if err != nil {
		return -1, err
	}
	l.linkMaterials = append(l.linkMaterials, lm)
	h := len(l.linkMaterials) - 1
	l.linkMaterialIndex[pair] = h
	return h, nil
}

// ============================================================================
// Topology
// ============================================================================

func (l *Lattice) checkTopologyEditable() error {
	switch l.state {
	case StateStepping:
		return ErrTopologyLocked
	case StateFailed:
		return ErrFailedState
	case StateStopped:
		return ErrStopped
	}
	return nil
}

// AddVoxel places a voxel of material mat at idx and links it to its face neighbors.
// It returns the voxel index.
func (l *Lattice) AddVoxel(mat int, idx geom.Index3D) (int, error) {
	if err := l.checkTopologyEditable(); err != nil {
		return -1, err
	}
	if mat < 0 || mat >= len(l.materials) {
		return -1, fmt.Errorf("%w: handle %d", ErrInvalidMaterial, mat)
	}
	if _, ok := l.voxelIndex[idx]; ok {
		return -1, fmt.Errorf("%w: %v", ErrDuplicateVoxel, idx)
	}
	if err := l.refreshMaterials(); err != nil {
		return -1, err
	}

	v := actor.NewVoxel(idx, mat, l.voxelSize)
	v.Temperature = l.env.AmbientTemperature
	l.voxels = append(l.voxels, v)
	i := len(l.voxels) - 1
	l.voxelIndex[idx] = i
	l.indices = append(l.indices, i)

	for _, d := range geom.Directions {
		neighbor, ok := l.voxelIndex[idx.Neighbor(d)]
		if !ok {
			continue
		}
		if err := l.addLink(i, neighbor); err != nil {
			return -1, err
		}
	}

	l.nearbyStale = true
	l.state = StateBuilt
	return i, nil
}

func (l *Lattice) addLink(a, b int) error {
	va, vb := l.voxels[a], l.voxels[b]
	mat, err := l.linkMaterial(va.Material, vb.Material)
	if err != nil {
		return err
	}
	link, err := constraint.NewLink(a, b, va.Index, vb.Index, mat)
	if err != nil {
		return err
	}
	link.Reset(l.end(link.Neg), l.end(link.Pos))

	l.links = append(l.links, link)
	li := len(l.links) - 1
	l.linkFailed = append(l.linkFailed, false)
	l.linkYielded = append(l.linkYielded, false)

	// the positive face of the negative voxel
	dir := geom.Direction(2 * link.Axis)
	l.voxels[link.Neg].Links[dir] = li
	l.voxels[link.Pos].Links[dir.Opposite()] = li
	return nil
}

// RemoveVoxel deletes the voxel at idx with its links. Voxel and link indices are
// compacted: indices obtained before the call are no longer valid. Once stepping has
// started the topology is locked until Reset.
func (l *Lattice) RemoveVoxel(idx geom.Index3D) error {
	if err := l.checkTopologyEditable(); err != nil {
		return err
	}
	removed, ok := l.voxelIndex[idx]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoVoxel, idx)
	}

	voxels := l.voxels
	l.voxels = make([]*actor.Voxel, 0, len(voxels)-1)
	l.voxelIndex = make(map[geom.Index3D]int, len(voxels)-1)
	l.indices = l.indices[:0]
	l.links = l.links[:0]
	l.linkFailed = l.linkFailed[:0]
	l.linkYielded = l.linkYielded[:0]
	l.contacts = l.contacts[:0]
	l.voxelContacts = nil
	l.Events.forget()

	for i, v := range voxels {
		if i == removed {
			continue
		}
		for d := range v.Links {
			v.Links[d] = actor.NoLink
		}
		l.voxels = append(l.voxels, v)
		l.voxelIndex[v.Index] = len(l.voxels) - 1
		l.indices = append(l.indices, len(l.voxels)-1)
	}

	// relink in insertion order so that each pair is linked once
	for i, v := range l.voxels {
		for _, d := range geom.Directions {
			if d.IsNegative() {
				continue
			}
			if neighbor, ok := l.voxelIndex[v.Index.Neighbor(d)]; ok {
				if err := l.addLink(i, neighbor); err != nil {
					return err
				}
			}
		}
	}

	l.nearbyStale = true
	if len(l.voxels) == 0 {
		l.state = StateUninitialized
	}
	return nil
}

// SetVoxelMaterial changes the material of the voxel at idx, keeping its motion.
func (l *Lattice) SetVoxelMaterial(idx geom.Index3D, mat int) error {
	if l.state == StateStopped {
		return ErrStopped
	}
	if mat < 0 || mat >= len(l.materials) {
		return fmt.Errorf("%w: handle %d", ErrInvalidMaterial, mat)
	}
	i, ok := l.voxelIndex[idx]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoVoxel, idx)
	}
	if err := l.refreshMaterials(); err != nil {
		return err
	}

	v := l.voxels[i]
	v.ReplaceMaterial(mat)
	for _, li := range v.Links {
		if li == actor.NoLink {
			continue
		}
		link := l.links[li]
		h, err := l.linkMaterial(l.voxels[link.Neg].Material, l.voxels[link.Pos].Material)
		if err != nil {
			return err
		}
		link.Material = h
		link.UpdateMaterial(l.end(link.Neg), l.end(link.Pos))
	}
	return nil
}

// end bundles voxel i with the constants of its material
func (l *Lattice) end(i int) constraint.End {
	v := l.voxels[i]
	return constraint.End{Voxel: v, Material: &l.materials[v.Material].voxel}
}

// ============================================================================
// Lifecycle
// ============================================================================

// Reset returns every voxel to its lattice position at rest, clears the link histories
// and the simulated time. A failed lattice becomes steppable again.
func (l *Lattice) Reset() error {
	if l.state == StateStopped {
		return ErrStopped
	}
	if err := l.refreshMaterials(); err != nil {
		return err
	}

	for _, v := range l.voxels {
		v.Reset(l.voxelSize)
		v.Temperature = l.env.AmbientTemperature
	}
	for i, link := range l.links {
		link.Reset(l.end(link.Neg), l.end(link.Pos))
		l.linkFailed[i] = false
		l.linkYielded[i] = false
	}
	l.contacts = l.contacts[:0]
	clear(l.voxelContacts)
	l.Events.forget()

	l.time = 0
	l.step = 0
	l.lastDt = 0
	l.unstable = false
	l.state = StateUninitialized
	if len(l.voxels) > 0 {
		l.state = StateBuilt
	}
	l.Log.WithField("voxels", len(l.voxels)).Info("lattice reset")
	return nil
}

// Stop ends the simulation for good
func (l *Lattice) Stop() {
	if l.state != StateStopped {
		l.Log.WithFields(logrus.Fields{"step": l.step, "time": l.time}).Info("lattice stopped")
	}
	l.state = StateStopped
}
