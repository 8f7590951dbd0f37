package sponge

import (
	"math"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/geom"
)

// ============================================================================
// Types
// ============================================================================

// Cell holds the voxels whose envelope overlaps one hashed grid cell
type Cell struct {
	voxelIndices []int
}

// Pair is a candidate collision between two voxels, A < B
type Pair struct {
	A, B int
}

// ExcludeFunc reports whether a candidate pair must be skipped
type ExcludeFunc func(a, b int) bool

// SpatialGrid is a uniform grid hashed into a fixed number of cells, for the broad phase
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int
}

// ============================================================================
// Constructor
// ============================================================================

// NewSpatialGrid creates a grid of cellSize cells, numCells rounded up to a power of two
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].voxelIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func (sg *SpatialGrid) CellSize() float64 {
	return sg.cellSize
}

// SetCellSize changes the cell size. The grid must be cleared and refilled afterwards.
func (sg *SpatialGrid) SetCellSize(cellSize float64) {
	sg.cellSize = cellSize
}

// Insert adds a voxel to every cell its envelope overlaps
func (sg *SpatialGrid) Insert(voxelIndex int, aabb actor.AABB) {
	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(geom.Index3D{X: x, Y: y, Z: z})

				sg.cells[cellIdx].voxelIndices = append(
					sg.cells[cellIdx].voxelIndices,
					voxelIndex,
				)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].voxelIndices = sg.cells[i].voxelIndices[:0]
	}
}

func (sg *SpatialGrid) SortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].voxelIndices) > 1 {
			sort.Ints(sg.cells[i].voxelIndices)
		}
	}
}

// FindPairs returns the overlapping envelopes among candidates, sequentially.
// boxes is indexed by voxel index.
func (sg *SpatialGrid) FindPairs(boxes []actor.AABB, candidates []int, exclude ExcludeFunc) []Pair {
	pairs := make([]Pair, 0, len(candidates)/2)
	seen := make(map[int]struct{})

	for _, a := range candidates {
		clear(seen)
		sg.visit(a, boxes, exclude, seen, func(p Pair) {
			pairs = append(pairs, p)
		})
	}

	return pairs
}

// FindPairsParallel splits candidates between numWorkers goroutines, streaming the pairs.
func (sg *SpatialGrid) FindPairsParallel(boxes []actor.AABB, candidates []int, exclude ExcludeFunc, numWorkers int) <-chan Pair {
	numWorkers = max(DefaultWorkers, numWorkers)
	var wg sync.WaitGroup
	pairsChan := make(chan Pair, numWorkers*10)

	perWorker := len(candidates) / numWorkers
	if perWorker == 0 {
		perWorker = 1
	}

	for w := 0; w < numWorkers; w++ {
		startIdx := w * perWorker
		if startIdx >= len(candidates) {
			break
		}
		endIdx := startIdx + perWorker
		if w == numWorkers-1 || endIdx > len(candidates) {
			endIdx = len(candidates)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			seen := make(map[int]struct{})
			for _, a := range candidates[start:end] {
				clear(seen)
				sg.visit(a, boxes, exclude, seen, func(p Pair) {
					pairsChan <- p
				})
			}
		}(startIdx, endIdx)
	}

	go func() {
		wg.Wait()
		close(pairsChan)
	}()

	return pairsChan
}

// visit tests a against every higher voxel sharing one of its cells
func (sg *SpatialGrid) visit(a int, boxes []actor.AABB, exclude ExcludeFunc, seen map[int]struct{}, emit func(Pair)) {
	minCell := sg.worldToCell(boxes[a].Min)
	maxCell := sg.worldToCell(boxes[a].Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(geom.Index3D{X: x, Y: y, Z: z})

				for _, b := range sg.cells[cellIdx].voxelIndices {
					// deterministic order, each pair once
					if b <= a {
						continue
					}
					if _, ok := seen[b]; ok {
						continue
					}
					seen[b] = struct{}{}

					if exclude != nil && exclude(a, b) {
						continue
					}
					if boxes[a].Overlaps(boxes[b]) {
						emit(Pair{A: a, B: b})
					}
				}
			}
		}
	}
}

// worldToCell converts a world position to cell coordinates
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) geom.Index3D {
	return geom.Index3D{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell maps cell coordinates to an index of the cell array
func (sg *SpatialGrid) hashCell(key geom.Index3D) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
