package board

import (
	"fmt"
	"sort"
)

// IdolType enumerates the three idol kinds a spirit can place.
type IdolType string

const (
	IdolBattle    IdolType = "battle"    // scores wars won
	IdolAffluence IdolType = "affluence" // scores gold gained
	IdolSpread    IdolType = "spread"    // scores territory gained
)

// IdolTypes lists all idol kinds in presentation order.
var IdolTypes = [3]IdolType{IdolBattle, IdolAffluence, IdolSpread}

// ValidIdolType reports whether t is a known idol kind.
func ValidIdolType(t IdolType) bool {
	return t == IdolBattle || t == IdolAffluence || t == IdolSpread
}

// Idol is a scoring marker placed on a tile by a spirit. Idols never move or
// disappear once placed.
type Idol struct {
	Type   IdolType `json:"type"`
	Spirit string   `json:"spirit"` // placing spirit's id
}

// Tile is a single hex of the world map.
type Tile struct {
	Coord   HexCoord `json:"coord"`
	Owner   string   `json:"owner,omitempty"` // owning faction id, empty when neutral
	Terrain Terrain  `json:"terrain"`
	Idols   []Idol   `json:"idols,omitempty"`
}

// Neutral reports whether no faction owns the tile.
func (t *Tile) Neutral() bool {
	return t.Owner == ""
}

// Board holds the complete hex map state: tile ownership and idol placement.
// Adjacency-derived queries (reachability, borders) are computed on demand
// and never cached.
type Board struct {
	Side  int                `json:"side"` // hexagon side length; valid coords lie within Side-1 of the origin
	Tiles map[HexCoord]*Tile `json:"-"`

	coords []HexCoord // canonical iteration order
}

// NewBoard creates a board of the given hexagon side length with every tile
// neutral. A side of 5 yields the standard 61-tile map.
func NewBoard(side int) *Board {
	coords := HexagonCoords(side)
	b := &Board{
		Side:   side,
		Tiles:  make(map[HexCoord]*Tile, len(coords)),
		coords: coords,
	}
	for _, c := range coords {
		b.Tiles[c] = &Tile{Coord: c}
	}
	return b
}

// Get returns the tile at coord, or nil if out of bounds.
func (b *Board) Get(coord HexCoord) *Tile {
	return b.Tiles[coord]
}

// InBounds reports whether coord lies on the board.
func (b *Board) InBounds(coord HexCoord) bool {
	return Distance(HexCoord{}, coord) < b.Side
}

// TileCount returns the total number of tiles.
func (b *Board) TileCount() int {
	return len(b.Tiles)
}

// Coords returns every coordinate in canonical order. Callers must not
// modify the returned slice.
func (b *Board) Coords() []HexCoord {
	return b.coords
}

// Owner returns the owning faction id at coord, or "" when neutral or out
// of bounds.
func (b *Board) Owner(coord HexCoord) string {
	t := b.Tiles[coord]
	if t == nil {
		return ""
	}
	return t.Owner
}

// SetOwner records the owning faction at coord; "" releases the tile to
// neutral. Out-of-bounds coords are ignored; callers validate bounds first.
func (b *Board) SetOwner(coord HexCoord, owner string) {
	if t := b.Tiles[coord]; t != nil {
		t.Owner = owner
	}
}

// Territories returns every coordinate owned by the faction, in canonical
// order.
func (b *Board) Territories(owner string) []HexCoord {
	var result []HexCoord
	for _, c := range b.coords {
		if b.Tiles[c].Owner == owner && owner != "" {
			result = append(result, c)
		}
	}
	return result
}

// TerritoryCount returns the number of tiles the faction owns.
func (b *Board) TerritoryCount(owner string) int {
	if owner == "" {
		return 0
	}
	n := 0
	for _, t := range b.Tiles {
		if t.Owner == owner {
			n++
		}
	}
	return n
}

// NeutralCoords returns every unowned coordinate in canonical order.
func (b *Board) NeutralCoords() []HexCoord {
	var result []HexCoord
	for _, c := range b.coords {
		if b.Tiles[c].Neutral() {
			result = append(result, c)
		}
	}
	return result
}

// ReachableNeutrals returns the neutral tiles adjacent to at least one tile
// owned by the faction, in canonical order.
func (b *Board) ReachableNeutrals(owner string) []HexCoord {
	if owner == "" {
		return nil
	}
	seen := make(map[HexCoord]bool)
	for _, c := range b.coords {
		if b.Tiles[c].Owner != owner {
			continue
		}
		for _, n := range c.Neighbors() {
			t := b.Tiles[n]
			if t != nil && t.Neutral() {
				seen[n] = true
			}
		}
	}
	result := make([]HexCoord, 0, len(seen))
	for _, c := range b.coords {
		if seen[c] {
			result = append(result, c)
		}
	}
	return result
}

// NeighborOwners returns the distinct faction ids owning tiles adjacent to
// the faction's territory, sorted. Eliminated factions own no tiles and so
// never appear.
func (b *Board) NeighborOwners(owner string) []string {
	if owner == "" {
		return nil
	}
	seen := make(map[string]bool)
	for _, c := range b.coords {
		if b.Tiles[c].Owner != owner {
			continue
		}
		for _, n := range c.Neighbors() {
			t := b.Tiles[n]
			if t != nil && t.Owner != "" && t.Owner != owner {
				seen[t.Owner] = true
			}
		}
	}
	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// BorderPairs returns every adjacent (a-owned, b-owned) tile pair, in
// canonical order of the a-side tile then direction order.
func (b *Board) BorderPairs(a, other string) [][2]HexCoord {
	var result [][2]HexCoord
	for _, c := range b.coords {
		if b.Tiles[c].Owner != a || a == "" {
			continue
		}
		for _, n := range c.Neighbors() {
			t := b.Tiles[n]
			if t != nil && t.Owner == other && other != "" {
				result = append(result, [2]HexCoord{c, n})
			}
		}
	}
	return result
}

// PlaceIdol appends an idol to the tile at coord. Callers validate bounds,
// neutrality, and duplicate-placement rules first.
func (b *Board) PlaceIdol(coord HexCoord, idol Idol) {
	if t := b.Tiles[coord]; t != nil {
		t.Idols = append(t.Idols, idol)
	}
}

// IdolsAt returns the idols on the tile at coord.
func (b *Board) IdolsAt(coord HexCoord) []Idol {
	t := b.Tiles[coord]
	if t == nil {
		return nil
	}
	return t.Idols
}

// HasIdols reports whether any idol stands at coord.
func (b *Board) HasIdols(coord HexCoord) bool {
	t := b.Tiles[coord]
	return t != nil && len(t.Idols) > 0
}

// HasIdolOf reports whether the spirit already has an idol at coord.
func (b *Board) HasIdolOf(coord HexCoord, spirit string) bool {
	t := b.Tiles[coord]
	if t == nil {
		return false
	}
	for _, idol := range t.Idols {
		if idol.Spirit == spirit {
			return true
		}
	}
	return false
}

// CountSpiritIdols counts the idols the spirit has placed across the given
// coordinates, all types together.
func (b *Board) CountSpiritIdols(spirit string, coords []HexCoord) int {
	n := 0
	for _, c := range coords {
		t := b.Tiles[c]
		if t == nil {
			continue
		}
		for _, idol := range t.Idols {
			if idol.Spirit == spirit {
				n++
			}
		}
	}
	return n
}

// IdolCensus tallies idols by type across the given coordinates, every
// spirit's idols included.
func (b *Board) IdolCensus(coords []HexCoord) map[IdolType]int {
	census := make(map[IdolType]int)
	for _, c := range coords {
		t := b.Tiles[c]
		if t == nil {
			continue
		}
		for _, idol := range t.Idols {
			census[idol.Type]++
		}
	}
	return census
}

// String returns a summary of the board.
func (b *Board) String() string {
	return fmt.Sprintf("Board(side=%d, tiles=%d)", b.Side, len(b.Tiles))
}
