package sponge

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/geom"
)

// StepStatus qualifies a completed call to DoTimeStep
type StepStatus uint8

const (
	StepOK StepStatus = iota
	// StepUnstable: dt exceeds the recommended step by more than the instability factor
	StepUnstable
	// StepFailed: the lattice diverged and entered StateFailed
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepOK:
		return "ok"
	case StepUnstable:
		return "unstable"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DoTimeStep advances the lattice by dt seconds. A negative dt uses the recommended
// time step, zero does nothing.
//
// Links are evaluated first from the current voxel poses, then collisions, then every
// voxel integrates the forces of its links and contacts.
func (l *Lattice) DoTimeStep(dt float64) (StepStatus, error) {
	switch l.state {
	case StateStopped:
		return StepFailed, ErrStopped
	case StateFailed:
		return StepFailed, ErrFailedState
	}
	if len(l.voxels) == 0 {
		return StepFailed, ErrEmptyLattice
	}
	if dt == 0 {
		return StepOK, nil
	}

	if err := l.refreshMaterials(); err != nil {
		return StepFailed, err
	}
	recommended := l.recommendedTimeStep()
	if dt < 0 {
		dt = recommended
		if dt <= 0 {
			return StepOK, nil
		}
	}

	status := StepOK
	unstable := recommended > 0 && dt > l.InstabilityFactor*recommended
	if unstable {
		status = StepUnstable
		if !l.unstable {
			l.Events.emitInstability(l.step, dt, recommended)
			l.Log.WithFields(logrus.Fields{
				"step":        l.step,
				"dt":          dt,
				"recommended": recommended,
			}).Warn("time step exceeds the stable limit")
		}
	}
	l.unstable = unstable

	// stays Stepping until Reset or Stop: voxel and link indices are frozen for the run
	l.state = StateStepping

	if l.hasPoisson {
		task(l.Workers, l.indices, func(i int) {
			l.voxels[i].SetPoissonStrain(l.voxelStrain(i, true))
		})
	}

	linkIndices := l.linkIndices()
	task(l.Workers, linkIndices, func(i int) {
		link := l.links[i]
		link.UpdateForces(l.end(link.Neg), l.end(link.Pos), l.linkMaterials[link.Material])
	})

	diverged := l.updateLinkStates()

	if !diverged {
		if l.env.CollisionsEnabled {
			l.updateCollisions()
		}
		l.applyLoads()
		l.integrate(dt)
		diverged = !l.voxelsValid()
	}

	if diverged {
		l.state = StateFailed
		l.Events.emitDivergence(l.step, l.time)
		l.Events.flush()
		l.Log.WithFields(logrus.Fields{"step": l.step, "time": l.time, "dt": dt}).Error("simulation diverged")
		return StepFailed, &SimulationError{Step: l.step, Time: l.time, Wrapped: ErrDiverged}
	}

	if l.env.CollisionsEnabled {
		l.Events.recordContacts(l.contacts)
	}
	l.Events.processFloorEvents(l.voxels)

	l.time += dt
	l.step++
	l.lastDt = dt
	l.Events.flush()

	return status, nil
}

// updateLinkStates raises the yield and failure transitions of the step and reports
// whether any link blew up.
func (l *Lattice) updateLinkStates() bool {
	diverged := false
	for i, link := range l.links {
		if link.IsDiverged() {
			diverged = true
			continue
		}
		if link.IsYielded() && !l.linkYielded[i] {
			l.linkYielded[i] = true
			l.Events.emitLinkYield(i, link.AxialStrain())
			l.Log.WithFields(logrus.Fields{"link": i, "strain": link.AxialStrain()}).Info("link yielded")
		}
		if link.IsFailed() && !l.linkFailed[i] {
			l.linkFailed[i] = true
			l.Events.emitLinkFailure(i, link.AxialStrain())
			l.Log.WithFields(logrus.Fields{"link": i, "strain": link.AxialStrain()}).Warn("link failed")
		}
	}
	return diverged
}

// applyLoads asks the load provider for the boundary conditions of every voxel
func (l *Lattice) applyLoads() {
	if l.Loads == nil {
		return
	}
	for i, v := range l.voxels {
		ext, ok := l.Loads.Load(i, v.Index, l.time)
		if !ok {
			continue
		}
		if v.External == nil {
			v.External = &actor.External{}
		}
		*v.External = ext
	}
}

// integrate gathers the forces of links and contacts into each voxel and advances it
func (l *Lattice) integrate(dt float64) {
	env := actor.StepEnv{Gravity: l.env.Gravity}
	if l.env.FloorEnabled {
		env.Floor = actor.NewFloor(0)
	}

	task(l.Workers, l.indices, func(i int) {
		v := l.voxels[i]
		v.ClearForces()

		failed, yielded := false, false
		for d, li := range v.Links {
			if li == actor.NoLink {
				continue
			}
			link := l.links[li]
			// a link on the negative face has this voxel as its positive end
			positiveEnd := geom.Direction(d).IsNegative()
			v.AddLinkForce(link.Force(positiveEnd), link.Moment(positiveEnd))
			failed = failed || link.IsFailed()
			yielded = yielded || link.IsYielded()
		}
		v.SetLinkStates(failed, yielded)

		if i < len(l.voxelContacts) {
			for _, c := range l.voxelContacts[i] {
				v.AddContactForce(c.ForceOn(i))
			}
		}

		v.TimeStep(dt, &l.materials[v.Material].voxel, env)
	})
}

func (l *Lattice) voxelsValid() bool {
	for _, v := range l.voxels {
		if !v.IsValid() {
			return false
		}
	}
	return true
}

func (l *Lattice) linkIndices() []int {
	indices := make([]int, len(l.links))
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// RecommendedTimeStep is the largest step that keeps the stiffest link stable: one radian
// of its natural frequency. It is 0 when there is nothing to simulate.
func (l *Lattice) RecommendedTimeStep() float64 {
	if err := l.refreshMaterials(); err != nil {
		l.Log.WithError(err).Warn("cannot derive materials")
		return 0
	}
	return l.recommendedTimeStep()
}

func (l *Lattice) recommendedTimeStep() float64 {
	maxFreq2 := 0.0
	for _, link := range l.links {
		massNeg := l.materials[l.voxels[link.Neg].Material].voxel.Mass
		massPos := l.materials[l.voxels[link.Pos].Material].voxel.Mass
		minMass := math.Min(massNeg, massPos)
		if minMass <= 0 {
			continue
		}
		freq2 := link.AxialStiffness(l.linkMaterials[link.Material]) / minMass
		maxFreq2 = math.Max(maxFreq2, freq2)
	}

	if maxFreq2 <= 0 {
		// no links: the stiffness of a lone voxel
		for _, v := range l.voxels {
			mat := &l.materials[v.Material].voxel
			if mat.Mass <= 0 {
				continue
			}
			maxFreq2 = math.Max(maxFreq2, mat.YoungsModulus*mat.Size/mat.Mass)
		}
	}

	if maxFreq2 <= 0 {
		return 0
	}
	return 1 / (2 * math.Pi * math.Sqrt(maxFreq2))
}

// voxelStrain is the strain of voxel i along each axis, averaged over its links.
// With poisson set, axes that are not held in tension contract with the Poisson's ratio.
func (l *Lattice) voxelStrain(i int, poisson bool) mgl64.Vec3 {
	v := l.voxels[i]
	var strain mgl64.Vec3
	var bonds [3]int

	for d, li := range v.Links {
		if li == actor.NoLink {
			continue
		}
		dir := geom.Direction(d)
		strain[dir.Axis()] += l.links[li].AxialStrainAt(dir.IsNegative())
		bonds[dir.Axis()]++
	}

	var tension [3]bool
	for axis := geom.AxisX; axis <= geom.AxisZ; axis++ {
		if bonds[axis] == 2 {
			strain[axis] *= 0.5
		}
		// pulled from both sides, or from one side against a fixed or loaded face
		tension[axis] = bonds[axis] == 2 || (bonds[axis] == 1 && v.External != nil &&
			(v.External.IsFixed(actor.TranslateDOF(axis)) || v.External.Force[axis] != 0))
	}

	if !poisson || (tension[0] && tension[1] && tension[2]) {
		return strain
	}

	add := 0.0
	for axis := range tension {
		if tension[axis] {
			add += strain[axis]
		}
	}
	nu := l.materials[v.Material].voxel.PoissonsRatio
	value := math.Pow(1+add, -nu) - 1
	for axis := range tension {
		if !tension[axis] {
			strain[axis] = value
		}
	}
	return strain
}
