package sponge

import (
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/geom"
)

func TestWorldToCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	tests := []struct {
		name     string
		position mgl64.Vec3
		expected geom.Index3D
	}{
		{"origin", mgl64.Vec3{0, 0, 0}, geom.Index3D{X: 0, Y: 0, Z: 0}},
		{"positive", mgl64.Vec3{1.5, 2.3, 3.7}, geom.Index3D{X: 1, Y: 2, Z: 3}},
		{"negative", mgl64.Vec3{-1.5, -2.3, -3.7}, geom.Index3D{X: -2, Y: -3, Z: -4}},
		{"fractional", mgl64.Vec3{0.5, 0.5, 0.5}, geom.Index3D{X: 0, Y: 0, Z: 0}},
		{"large", mgl64.Vec3{100.7, -200.3, 50.1}, geom.Index3D{X: 100, Y: -201, Z: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.worldToCell(tt.position)
			if result != tt.expected {
				t.Errorf("worldToCell(%v) = %v, want %v", tt.position, result, tt.expected)
			}
		})
	}
}

func TestWorldToCell_VoxelSize(t *testing.T) {
	grid := NewSpatialGrid(0.001, 16)

	result := grid.worldToCell(mgl64.Vec3{0.0025, 0.0005, -0.0005})
	expected := geom.Index3D{X: 2, Y: 0, Z: -1}
	if result != expected {
		t.Errorf("worldToCell = %v, want %v", result, expected)
	}
}

func TestHashCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	tests := []struct {
		name     string
		key      geom.Index3D
		expected int
	}{
		{"origin", geom.Index3D{X: 0, Y: 0, Z: 0}, 0},
		{"simple", geom.Index3D{X: 1, Y: 2, Z: 3}, 6},
		{"negative", geom.Index3D{X: -1, Y: -2, Z: -3}, 10},
		{"large", geom.Index3D{X: 100, Y: 200, Z: 300}, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.hashCell(tt.key)
			if result < 0 || result >= len(grid.cells) {
				t.Errorf("hashCell(%v) = %d, out of range [0, %d)", tt.key, result, len(grid.cells))
			}
			if result != tt.expected {
				t.Errorf("hashCell(%v) = %d, want %d", tt.key, result, tt.expected)
			}
		})
	}
}

func TestHashCellDistribution(t *testing.T) {
	grid := NewSpatialGrid(1.0, 1024)

	cellCounts := make(map[int]int)
	for x := -50; x <= 50; x++ {
		for y := -50; y <= 50; y++ {
			for z := -50; z <= 50; z++ {
				cellCounts[grid.hashCell(geom.Index3D{X: x, Y: y, Z: z})]++
			}
		}
	}

	minCount := int(^uint(0) >> 1)
	maxCount := 0
	for _, count := range cellCounts {
		minCount = min(minCount, count)
		maxCount = max(maxCount, count)
	}

	t.Logf("Hash distribution: min=%d, max=%d, used=%d", minCount, maxCount, len(cellCounts))
	if len(cellCounts) < 512 {
		t.Errorf("Expected at least half the cells used, got %d", len(cellCounts))
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1}, {1, 1}, {3, 4}, {16, 16}, {17, 32}, {4000, 4096},
	}

	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func createTestBox(center mgl64.Vec3, half float64) actor.AABB {
	h := mgl64.Vec3{half, half, half}
	return actor.AABB{Min: center.Sub(h), Max: center.Add(h)}
}

func cellContains(grid *SpatialGrid, box actor.AABB, voxel int) bool {
	minCell := grid.worldToCell(box.Min)
	maxCell := grid.worldToCell(box.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := grid.hashCell(geom.Index3D{X: x, Y: y, Z: z})
				for _, idx := range grid.cells[cellIdx].voxelIndices {
					if idx == voxel {
						return true
					}
				}
			}
		}
	}
	return false
}

func TestInsertSingleVoxel(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	box := createTestBox(mgl64.Vec3{1.5, 2.5, 3.5}, 0.4)

	grid.Insert(0, box)

	if !cellContains(grid, box, 0) {
		t.Error("Voxel not found in any cell after insertion")
	}
}

func TestInsertMultipleVoxels(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	boxes := []actor.AABB{
		createTestBox(mgl64.Vec3{1.0, 1.0, 1.0}, 0.4),
		createTestBox(mgl64.Vec3{2.0, 2.0, 2.0}, 0.4),
		createTestBox(mgl64.Vec3{3.0, 3.0, 3.0}, 0.4),
	}

	for i, box := range boxes {
		grid.Insert(i, box)
	}

	for i, box := range boxes {
		if !cellContains(grid, box, i) {
			t.Errorf("Voxel %d not found in any cell after insertion", i)
		}
	}
}

func TestClear(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	grid.Insert(0, createTestBox(mgl64.Vec3{1.0, 1.0, 1.0}, 0.4))
	grid.Insert(1, createTestBox(mgl64.Vec3{2.0, 2.0, 2.0}, 0.4))

	grid.Clear()

	for _, cell := range grid.cells {
		if len(cell.voxelIndices) != 0 {
			t.Error("Cells should be empty after clear")
		}
	}
}

func TestSortCells(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	grid.cells[0].voxelIndices = append(grid.cells[0].voxelIndices, 5, 2, 8, 1, 9, 3)
	grid.SortCells()

	if !sort.IntsAreSorted(grid.cells[0].voxelIndices) {
		t.Error("Cell indices should be sorted")
	}
	expected := []int{1, 2, 3, 5, 8, 9}
	for i, idx := range grid.cells[0].voxelIndices {
		if idx != expected[i] {
			t.Errorf("Expected index %d at position %d, got %d", expected[i], i, idx)
		}
	}
}

func fillGrid(grid *SpatialGrid, boxes []actor.AABB) []int {
	candidates := make([]int, len(boxes))
	for i, box := range boxes {
		grid.Insert(i, box)
		candidates[i] = i
	}
	grid.SortCells()
	return candidates
}

func TestFindPairsNoOverlap(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	boxes := []actor.AABB{
		createTestBox(mgl64.Vec3{0, 0, 0}, 0.4),
		createTestBox(mgl64.Vec3{10, 10, 10}, 0.4),
	}
	candidates := fillGrid(grid, boxes)

	if pairs := grid.FindPairs(boxes, candidates, nil); len(pairs) != 0 {
		t.Errorf("Expected 0 pairs, got %d", len(pairs))
	}
}

func TestFindPairsWithOverlap(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	boxes := []actor.AABB{
		createTestBox(mgl64.Vec3{0, 0, 0}, 0.4),
		createTestBox(mgl64.Vec3{0.5, 0.5, 0.5}, 0.4),
	}
	candidates := fillGrid(grid, boxes)

	pairs := grid.FindPairs(boxes, candidates, nil)
	if len(pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(pairs))
	}
	if pairs[0] != (Pair{A: 0, B: 1}) {
		t.Errorf("Expected pair {0 1}, got %v", pairs[0])
	}
}

func TestFindPairsSpanningCells(t *testing.T) {
	// both boxes span 8 cells, the pair must still be reported once
	grid := NewSpatialGrid(1.0, 64)
	boxes := []actor.AABB{
		createTestBox(mgl64.Vec3{1.0, 1.0, 1.0}, 0.6),
		createTestBox(mgl64.Vec3{1.5, 1.0, 1.0}, 0.6),
	}
	candidates := fillGrid(grid, boxes)

	if pairs := grid.FindPairs(boxes, candidates, nil); len(pairs) != 1 {
		t.Errorf("Expected 1 pair, got %d", len(pairs))
	}
}

func TestFindPairsExclude(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	boxes := []actor.AABB{
		createTestBox(mgl64.Vec3{0, 0, 0}, 0.4),
		createTestBox(mgl64.Vec3{0.5, 0, 0}, 0.4),
		createTestBox(mgl64.Vec3{0.25, 0.5, 0}, 0.4),
	}
	candidates := fillGrid(grid, boxes)

	exclude := func(a, b int) bool {
		return a == 0 && b == 1
	}
	pairs := grid.FindPairs(boxes, candidates, exclude)

	for _, p := range pairs {
		if p.A == 0 && p.B == 1 {
			t.Error("Excluded pair should not be reported")
		}
	}
	if len(pairs) != 2 {
		t.Errorf("Expected 2 pairs, got %d: %v", len(pairs), pairs)
	}
}

func TestFindPairsCandidatesOnly(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)
	boxes := []actor.AABB{
		createTestBox(mgl64.Vec3{0, 0, 0}, 0.4),
		createTestBox(mgl64.Vec3{0.5, 0, 0}, 0.4),
	}
	// voxel 1 is inserted but is not a candidate: pairs start from candidates and
	// only look at higher indices
	grid.Insert(0, boxes[0])
	grid.Insert(1, boxes[1])

	if pairs := grid.FindPairs(boxes, []int{1}, nil); len(pairs) != 0 {
		t.Errorf("Expected 0 pairs, got %d", len(pairs))
	}
	if pairs := grid.FindPairs(boxes, []int{0}, nil); len(pairs) != 1 {
		t.Errorf("Expected 1 pair, got %d", len(pairs))
	}
}

func TestFindPairsParallelMatchesSequential(t *testing.T) {
	grid := NewSpatialGrid(1.0, 256)
	boxes := make([]actor.AABB, 0)
	for x := 0; x < 6; x++ {
		for y := 0; y < 6; y++ {
			boxes = append(boxes, createTestBox(mgl64.Vec3{float64(x) * 0.7, float64(y) * 0.7, 0}, 0.4))
		}
	}
	candidates := fillGrid(grid, boxes)

	sequential := grid.FindPairs(boxes, candidates, nil)

	parallel := make([]Pair, 0)
	for pair := range grid.FindPairsParallel(boxes, candidates, nil, 4) {
		parallel = append(parallel, pair)
	}

	if len(parallel) != len(sequential) {
		t.Fatalf("Expected %d pairs, got %d", len(sequential), len(parallel))
	}

	seen := make(map[Pair]bool)
	for _, p := range sequential {
		seen[p] = true
	}
	for _, p := range parallel {
		if !seen[p] {
			t.Errorf("Pair %v not found by the sequential search", p)
		}
		if p.A >= p.B {
			t.Errorf("Pair %v should be ordered", p)
		}
	}
}

func BenchmarkFindPairsParallel(b *testing.B) {
	grid := NewSpatialGrid(1.0, 4096)
	boxes := make([]actor.AABB, 0)
	for x := 0; x < 20; x++ {
		for y := 0; y < 20; y++ {
			for z := 0; z < 5; z++ {
				boxes = append(boxes, createTestBox(mgl64.Vec3{float64(x), float64(y), float64(z)}, 0.625))
			}
		}
	}
	candidates := fillGrid(grid, boxes)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for range grid.FindPairsParallel(boxes, candidates, nil, 4) {
		}
	}
}
