// Package board provides the hex grid and world map the game is played on.
// Uses axial coordinates (q, r); the map is a side-N hexagon centered on the
// origin. See design doc Section 1.
package board

// HexCoord identifies a tile in axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// NeighborDirections defines the six neighbor offsets in axial coordinates,
// starting east and proceeding counterclockwise.
var NeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range NeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Add returns the coordinate offset by d.
func (h HexCoord) Add(d HexCoord) HexCoord {
	return HexCoord{Q: h.Q + d.Q, R: h.R + d.R}
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	// Max of the three absolute differences in cube coordinates.
	max := dq
	if dr > max {
		max = dr
	}
	if ds > max {
		max = ds
	}
	return max
}

// Ring returns the coordinates exactly radius steps from center, in a fixed
// walk order. A radius of 0 yields just the center.
func Ring(center HexCoord, radius int) []HexCoord {
	if radius <= 0 {
		return []HexCoord{center}
	}
	result := make([]HexCoord, 0, 6*radius)
	// Start at the corner reached by walking radius steps in direction 4,
	// then walk radius steps along each of the six sides.
	cur := HexCoord{
		Q: center.Q + NeighborDirections[4].Q*radius,
		R: center.R + NeighborDirections[4].R*radius,
	}
	for side := 0; side < 6; side++ {
		for step := 0; step < radius; step++ {
			result = append(result, cur)
			cur = cur.Add(NeighborDirections[side])
		}
	}
	return result
}

// Spiral returns the center followed by each ring out to radius, in ring
// walk order.
func Spiral(center HexCoord, radius int) []HexCoord {
	result := []HexCoord{center}
	for r := 1; r <= radius; r++ {
		result = append(result, Ring(center, r)...)
	}
	return result
}

// HexagonCoords returns every coordinate of a side-length hexagon centered
// on the origin, in canonical order (q ascending, then r ascending). A side
// of 5 yields 61 tiles.
func HexagonCoords(side int) []HexCoord {
	origin := HexCoord{}
	var result []HexCoord
	for q := -(side - 1); q <= side-1; q++ {
		for r := -(side - 1); r <= side-1; r++ {
			c := HexCoord{Q: q, R: r}
			if Distance(origin, c) < side {
				result = append(result, c)
			}
		}
	}
	return result
}

// CompareCoords orders coordinates canonically: q ascending, then r.
// All board queries return coordinate slices in this order so that random
// selection over them is reproducible.
func CompareCoords(a, b HexCoord) int {
	if a.Q != b.Q {
		return a.Q - b.Q
	}
	return a.R - b.R
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
