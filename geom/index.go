package geom

// Index3D is an integer lattice coordinate.
type Index3D struct {
	X, Y, Z int
}

// Add returns the component-wise sum of two coordinates.
func (i Index3D) Add(o Index3D) Index3D {
	return Index3D{i.X + o.X, i.Y + o.Y, i.Z + o.Z}
}

// Sub returns the component-wise difference of two coordinates.
func (i Index3D) Sub(o Index3D) Index3D {
	return Index3D{i.X - o.X, i.Y - o.Y, i.Z - o.Z}
}

// Neighbor returns the coordinate one step away in direction d.
func (i Index3D) Neighbor(d Direction) Index3D {
	return i.Add(d.Offset())
}

// Axis is one of the three lattice axes.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Direction names the six faces of a voxel, in link table order.
type Direction uint8

const (
	XPos Direction = iota
	XNeg
	YPos
	YNeg
	ZPos
	ZNeg
)

// Directions lists every direction in link table order.
var Directions = [6]Direction{XPos, XNeg, YPos, YNeg, ZPos, ZNeg}

var directionOffsets = [6]Index3D{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

func (d Direction) Axis() Axis {
	return Axis(d / 2)
}

func (d Direction) IsNegative() bool {
	return d%2 == 1
}

func (d Direction) Opposite() Direction {
	if d.IsNegative() {
		return d - 1
	}
	return d + 1
}

func (d Direction) Offset() Index3D {
	return directionOffsets[d]
}

// Adjacency returns the axis joining a to b and whether b sits on the positive side of a.
// ok is false when the two coordinates are not face neighbors.
func Adjacency(a, b Index3D) (axis Axis, positive bool, ok bool) {
	d := b.Sub(a)
	switch {
	case d.Y == 0 && d.Z == 0 && (d.X == 1 || d.X == -1):
		return AxisX, d.X == 1, true
	case d.X == 0 && d.Z == 0 && (d.Y == 1 || d.Y == -1):
		return AxisY, d.Y == 1, true
	case d.X == 0 && d.Y == 0 && (d.Z == 1 || d.Z == -1):
		return AxisZ, d.Z == 1, true
	}
	return 0, false, false
}
