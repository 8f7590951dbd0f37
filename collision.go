package sponge

import (
	"slices"
	"sort"

	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/constraint"
	"github.com/akmonengine/sponge/geom"
)

// BroadPhase fills the grid with the envelopes of the candidate voxels and streams
// the pairs whose envelopes overlap.
func BroadPhase(spatialGrid *SpatialGrid, boxes []actor.AABB, candidates []int, exclude ExcludeFunc, workersCount int) <-chan Pair {
	spatialGrid.Clear()
	for _, i := range candidates {
		spatialGrid.Insert(i, boxes[i])
	}
	spatialGrid.SortCells()

	return spatialGrid.FindPairsParallel(boxes, candidates, exclude, workersCount)
}

// NarrowPhase turns the candidate pairs into contacts and keeps the touching ones,
// ordered by pair.
func NarrowPhase(pairs <-chan Pair, body func(i int) constraint.ContactBody, workersCount int) []*constraint.Contact {
	candidates := make([]Pair, 0)
	for p := range pairs {
		candidates = append(candidates, p)
	}
	// the broad phase workers interleave their output
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].A != candidates[j].A {
			return candidates[i].A < candidates[j].A
		}
		return candidates[i].B < candidates[j].B
	})

	contacts := make([]*constraint.Contact, len(candidates))
	for i, p := range candidates {
		contacts[i] = constraint.NewContact(p.A, p.B)
	}
	task(workersCount, contacts, func(c *constraint.Contact) {
		c.Update(body(c.A), body(c.B))
	})

	return slices.DeleteFunc(contacts, func(c *constraint.Contact) bool {
		return !c.IsTouching()
	})
}

// updateCollisions rebuilds the voxel to voxel contacts of the step
func (l *Lattice) updateCollisions() {
	if l.nearbyStale {
		l.updateNearby()
	}

	if cap(l.boxes) < len(l.voxels) {
		l.boxes = make([]actor.AABB, len(l.voxels))
	}
	l.boxes = l.boxes[:len(l.voxels)]

	candidates := make([]int, 0, len(l.voxels))
	for i, v := range l.voxels {
		sphere := actor.Sphere{Radius: l.collisionRadius(i)}
		sphere.ComputeAABB(v.Transform)
		l.boxes[i] = sphere.GetAABB()
		if v.IsSurface() {
			candidates = append(candidates, i)
		}
	}

	pairs := BroadPhase(l.grid, l.boxes, candidates, l.isNearby, l.Workers)
	l.contacts = NarrowPhase(pairs, l.contactBody, l.Workers)

	if len(l.voxelContacts) != len(l.voxels) {
		l.voxelContacts = make([][]*constraint.Contact, len(l.voxels))
	}
	for i := range l.voxelContacts {
		l.voxelContacts[i] = l.voxelContacts[i][:0]
	}
	for _, c := range l.contacts {
		l.voxelContacts[c.A] = append(l.voxelContacts[c.A], c)
		l.voxelContacts[c.B] = append(l.voxelContacts[c.B], c)
	}
}

func (l *Lattice) collisionRadius(i int) float64 {
	v := l.voxels[i]
	return l.CollisionEnvelope * v.BaseSize(&l.materials[v.Material].voxel)
}

func (l *Lattice) contactBody(i int) constraint.ContactBody {
	return constraint.ContactBody{End: l.end(i), Radius: l.collisionRadius(i)}
}

// isNearby reports whether a and b are within CollisionExcludeDepth link hops
func (l *Lattice) isNearby(a, b int) bool {
	if a >= len(l.nearby) {
		return false
	}
	_, ok := l.nearby[a][b]
	return ok
}

// updateNearby walks the links breadth first from every voxel. Failed links still count:
// a broken bond does not make its two faces collide.
func (l *Lattice) updateNearby() {
	l.nearby = make([]map[int]struct{}, len(l.voxels))
	depth := max(1, l.CollisionExcludeDepth)

	for start := range l.voxels {
		visited := map[int]struct{}{start: {}}
		frontier := []int{start}
		for hop := 0; hop < depth && len(frontier) > 0; hop++ {
			next := make([]int, 0, len(frontier)*6)
			for _, i := range frontier {
				for d, li := range l.voxels[i].Links {
					if li == actor.NoLink {
						continue
					}
					link := l.links[li]
					neighbor := link.Pos
					if geom.Direction(d).IsNegative() {
						neighbor = link.Neg
					}
					if _, ok := visited[neighbor]; ok {
						continue
					}
					visited[neighbor] = struct{}{}
					next = append(next, neighbor)
				}
			}
			frontier = next
		}
		delete(visited, start)
		l.nearby[start] = visited
	}
	l.nearbyStale = false
}

// Contacts returns the touching voxel pairs of the last step
func (l *Lattice) Contacts() []*constraint.Contact {
	return l.contacts
}
