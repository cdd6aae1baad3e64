// Package grid assigns participants to cells of the call arena and derives
// proximity volume/color levels from grid distance.
package grid

// Coord is a single grid cell, row-major from the top-left corner.
type Coord struct {
	Row int
	Col int
}

// Shape is the fixed bounds of the arena.
type Shape struct {
	Rows int
	Cols int
}

// Contains reports whether c lies inside the arena.
func (s Shape) Contains(c Coord) bool {
	return c.Row >= 0 && c.Row < s.Rows && c.Col >= 0 && c.Col < s.Cols
}

// Size returns the total number of cells.
func (s Shape) Size() int {
	return s.Rows * s.Cols
}

// Allocate returns the first unoccupied coordinate in row-major order.
// The second return value is false when the grid is full.
func Allocate(occupied map[Coord]bool, shape Shape) (Coord, bool) {
	for row := 0; row < shape.Rows; row++ {
		for col := 0; col < shape.Cols; col++ {
			c := Coord{Row: row, Col: col}
			if !occupied[c] {
				return c, true
			}
		}
	}
	return Coord{}, false
}

// IsAvailable reports whether c is unoccupied.
func IsAvailable(c Coord, occupied map[Coord]bool) bool {
	return !occupied[c]
}

// Release removes c from the occupied set. Releasing a vacant cell is a no-op.
func Release(c Coord, occupied map[Coord]bool) {
	delete(occupied, c)
}
