// Package realm holds the faction and spirit records and their
// invariant-preserving mutators. Cross-record rules (worship, ejection,
// elimination) belong to the engine.
// See design doc Section 2.
package realm

import (
	"fmt"

	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/entropy"
)

// FactionID names one of the six factions. Ids double as the wire values.
type FactionID string

const (
	FactionMountain FactionID = "mountain"
	FactionMesa     FactionID = "mesa"
	FactionSand     FactionID = "sand"
	FactionPlains   FactionID = "plains"
	FactionRiver    FactionID = "river"
	FactionJungle   FactionID = "jungle"
)

// FactionIDs lists every faction in habitat order.
var FactionIDs = [6]FactionID{
	FactionMountain, FactionMesa, FactionSand,
	FactionPlains, FactionRiver, FactionJungle,
}

// AgendaType enumerates the four agenda card types. The values double as
// wire names.
type AgendaType string

const (
	AgendaTrade  AgendaType = "trade"
	AgendaSteal  AgendaType = "steal"
	AgendaExpand AgendaType = "expand"
	AgendaChange AgendaType = "change"
)

// AgendaTypes lists the four card types in resolution order.
var AgendaTypes = [4]AgendaType{AgendaTrade, AgendaSteal, AgendaExpand, AgendaChange}

// ModifierTypes lists the agenda types a Change can strengthen. Change
// itself is never a modifier target.
var ModifierTypes = [3]AgendaType{AgendaTrade, AgendaSteal, AgendaExpand}

// ValidAgendaType reports whether t is a known card type.
func ValidAgendaType(t AgendaType) bool {
	return t == AgendaTrade || t == AgendaSteal || t == AgendaExpand || t == AgendaChange
}

// Faction is one of the six autonomous powers on the map. Spirits steer
// factions; they never act as one.
type Faction struct {
	ID      FactionID     `json:"id"`
	Habitat board.Terrain `json:"habitat"`

	Gold int `json:"gold"` // never negative

	// Territory mirrors board ownership for this faction. Mutation goes
	// through the engine so board and record stay consistent.
	Territory map[board.HexCoord]struct{} `json:"-"`

	// Regard toward each other faction. Signed, starts 0, unbounded.
	Regard map[FactionID]int `json:"regard"`

	// Pool is the fixed-size agenda card multiset. Draws sample with
	// replacement and never consume; only ReplaceAgendaCard alters the
	// contents, and it preserves the length.
	Pool []AgendaType `json:"pool"`

	// Modifiers counts permanent Change bonuses per agenda type.
	// Change itself never has an entry.
	Modifiers map[AgendaType]int `json:"modifiers"`

	GuidingSpirit SpiritID `json:"guidingSpirit,omitempty"` // empty when unguided
	WorshipSpirit SpiritID `json:"worshipSpirit,omitempty"` // empty when unworshipped

	Eliminated bool `json:"eliminated"`
}

// startingModifiers maps each habitat to its opening agenda bonus.
var startingModifiers = map[FactionID]AgendaType{
	FactionMountain: AgendaSteal,
	FactionMesa:     AgendaExpand,
	FactionSand:     AgendaTrade,
	FactionPlains:   AgendaExpand,
	FactionRiver:    AgendaTrade,
	FactionJungle:   AgendaSteal,
}

// habitatTerrain maps each faction to the terrain of its homeland.
var habitatTerrain = map[FactionID]board.Terrain{
	FactionMountain: board.TerrainMountain,
	FactionMesa:     board.TerrainMesa,
	FactionSand:     board.TerrainSand,
	FactionPlains:   board.TerrainPlains,
	FactionRiver:    board.TerrainRiver,
	FactionJungle:   board.TerrainJungle,
}

// NewFaction creates a faction at its starting state: no gold, the
// one-of-each starting pool, and its habitat's opening modifier.
func NewFaction(id FactionID) *Faction {
	f := &Faction{
		ID:        id,
		Habitat:   habitatTerrain[id],
		Territory: make(map[board.HexCoord]struct{}),
		Regard:    make(map[FactionID]int),
		Pool:      []AgendaType{AgendaTrade, AgendaSteal, AgendaExpand, AgendaChange},
		Modifiers: make(map[AgendaType]int),
	}
	if t, ok := startingModifiers[id]; ok {
		f.Modifiers[t] = 1
	}
	return f
}

// AddGold raises gold by n, clamping the result at zero for negative n.
// Returns the actual change applied.
func (f *Faction) AddGold(n int) int {
	if n >= 0 {
		f.Gold += n
		return n
	}
	return -f.LoseGold(-n)
}

// LoseGold removes up to n gold, flooring at zero, and returns the amount
// actually lost.
func (f *Faction) LoseGold(n int) int {
	if n <= 0 {
		return 0
	}
	if n > f.Gold {
		n = f.Gold
	}
	f.Gold -= n
	return n
}

// AdjustRegard shifts this faction's regard toward other by delta.
func (f *Faction) AdjustRegard(other FactionID, delta int) {
	f.Regard[other] += delta
}

// RegardToward returns this faction's regard toward other.
func (f *Faction) RegardToward(other FactionID) int {
	return f.Regard[other]
}

// Modifier returns the permanent bonus counter for the agenda type.
func (f *Faction) Modifier(t AgendaType) int {
	return f.Modifiers[t]
}

// StrengthenModifier raises the agenda type's permanent bonus by one.
func (f *Faction) StrengthenModifier(t AgendaType) {
	f.Modifiers[t]++
}

// SamplePool draws n cards from the pool uniformly with replacement.
// Duplicates in a single draw are expected and legal.
func (f *Faction) SamplePool(n int, src *entropy.Source) []AgendaType {
	cards := make([]AgendaType, n)
	for i := range cards {
		cards[i] = f.Pool[src.Intn(len(f.Pool))]
	}
	return cards
}

// HasPoolCard reports whether at least one card of type t is in the pool.
func (f *Faction) HasPoolCard(t AgendaType) bool {
	for _, c := range f.Pool {
		if c == t {
			return true
		}
	}
	return false
}

// ReplaceAgendaCard swaps one card of type remove for one of type add,
// preserving pool size. Errors if remove is absent.
func (f *Faction) ReplaceAgendaCard(remove, add AgendaType) error {
	for i, c := range f.Pool {
		if c == remove {
			f.Pool[i] = add
			return nil
		}
	}
	return fmt.Errorf("agenda pool of %q holds no %q card", f.ID, remove)
}

// AddTerritory records ownership of a tile and clears elimination.
func (f *Faction) AddTerritory(c board.HexCoord) {
	f.Territory[c] = struct{}{}
	f.Eliminated = false
}

// RemoveTerritory drops a tile; losing the last one flips the eliminated
// flag, leaving the cascade (war cancellation, ejection) to the engine.
func (f *Faction) RemoveTerritory(c board.HexCoord) {
	delete(f.Territory, c)
	if len(f.Territory) == 0 {
		f.Eliminated = true
	}
}

// TerritoryCount returns the number of owned tiles.
func (f *Faction) TerritoryCount() int {
	return len(f.Territory)
}

// Guided reports whether a spirit currently steers the faction.
func (f *Faction) Guided() bool {
	return f.GuidingSpirit != ""
}
