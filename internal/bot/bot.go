// Package bot picks valid submissions for unattended seats: AI spirits and
// players whose input deadline lapsed. Guidance seeks worship, idols favor
// contested ground, everything else draws uniformly from the offered
// options. Decisions read only public state, so a bot never sees more than
// a spectator plus its own pending hand.
// See design doc Section 9.
package bot

import (
	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/engine"
	"github.com/talgya/impetus/internal/entropy"
	"github.com/talgya/impetus/internal/realm"
)

// Chooser picks actions from pending options. Not safe for concurrent use;
// rooms call it under their own lock.
type Chooser struct {
	src *entropy.Source
}

// New creates a chooser drawing from its own seeded stream. Bot picks enter
// the action log like any submission, so replay never re-rolls them.
func New(seed int64) *Chooser {
	return &Chooser{src: entropy.NewSource(seed)}
}

var personaNames = []string{
	"Amadeus", "Catherine", "Dumisai", "Eudokia",
	"Grem", "Hanno", "Ivah", "Kairos",
}

// Names returns n distinct display names for bot seats, sampled from the
// persona list. Names repeat only past the list's length, which no legal
// seat count reaches.
func (c *Chooser) Names(n int) []string {
	perm := c.src.Perm(len(personaNames))
	out := make([]string, n)
	for i := range out {
		out[i] = personaNames[perm[i%len(perm)]]
	}
	return out
}

// VagrantAction picks a guidance target and an idol placement from the
// offered options, either part omitted when unavailable.
func (c *Chooser) VagrantAction(state *engine.PublicState, self realm.SpiritID, in engine.PendingInput) engine.VagrantAction {
	var act engine.VagrantAction
	if len(in.GuidableFactions) > 0 {
		target := c.pickGuideTarget(state, self, in.GuidableFactions)
		act.GuideTarget = &target
	}
	if len(in.IdolTargets) > 0 && len(in.IdolTypes) > 0 {
		at := c.pickIdolTarget(state, in.IdolTargets)
		act.Idol = &engine.IdolPlacement{
			Type: in.IdolTypes[c.src.Intn(len(in.IdolTypes))],
			At:   at,
		}
	}
	return act
}

// pickGuideTarget narrows the candidates in three passes before drawing:
// factions whose worship the spirit would claim, then the most idols across
// their territory, then factions worth poaching from another spirit.
func (c *Chooser) pickGuideTarget(state *engine.PublicState, self realm.SpiritID, candidates []realm.FactionID) realm.FactionID {
	idolsAt := tileIdols(state)

	var claimable []realm.FactionID
	for _, fid := range candidates {
		if wouldClaimWorship(state, idolsAt, self, fid) {
			claimable = append(claimable, fid)
		}
	}
	pool := candidates
	if len(claimable) > 0 {
		pool = claimable

		best := -1
		var richest []realm.FactionID
		for _, fid := range pool {
			n := territoryIdolCount(state, idolsAt, fid)
			switch {
			case n > best:
				best, richest = n, []realm.FactionID{fid}
			case n == best:
				richest = append(richest, fid)
			}
		}
		pool = richest

		var poachable []realm.FactionID
		for _, fid := range pool {
			if faction(state, fid).WorshipSpirit != "" {
				poachable = append(poachable, fid)
			}
		}
		if len(poachable) > 0 {
			pool = poachable
		}
	}
	return pool[c.src.Intn(len(pool))]
}

// pickIdolTarget prefers neutral tiles bordering any faction's territory;
// idols there enter a territory census soonest.
func (c *Chooser) pickIdolTarget(state *engine.PublicState, targets []board.HexCoord) board.HexCoord {
	owned := make(map[board.HexCoord]bool)
	for _, t := range state.Tiles {
		if t.Owner != "" {
			owned[t.Coord] = true
		}
	}
	var bordering []board.HexCoord
	for _, coord := range targets {
		for _, n := range coord.Neighbors() {
			if owned[n] {
				bordering = append(bordering, coord)
				break
			}
		}
	}
	if len(bordering) > 0 {
		return bordering[c.src.Intn(len(bordering))]
	}
	return targets[c.src.Intn(len(targets))]
}

// AgendaIndex picks a card from the drawn hand.
func (c *Chooser) AgendaIndex(in engine.PendingInput) int {
	return c.src.Intn(len(in.Hand))
}

// ChangeIndex picks a modifier target from the drawn hand.
func (c *Chooser) ChangeIndex(in engine.PendingInput) int {
	return c.src.Intn(len(in.Hand))
}

// EjectionSwap picks a pool card to remove and a card type to add.
func (c *Chooser) EjectionSwap(in engine.PendingInput) (remove, add realm.AgendaType) {
	remove = in.Hand[c.src.Intn(len(in.Hand))]
	add = realm.AgendaTypes[c.src.Intn(len(realm.AgendaTypes))]
	return remove, add
}

// SpoilsIndices picks one card per offer, in offer order. It serves both
// spoils picks and the follow-up change-spoils modifier picks, which carry
// the same offer shape.
func (c *Chooser) SpoilsIndices(in engine.PendingInput) []int {
	picks := make([]int, len(in.Offers))
	for i, offer := range in.Offers {
		picks[i] = c.src.Intn(len(offer.Cards))
	}
	return picks
}

// wouldClaimWorship reports whether guiding the faction would move its
// worship to the spirit: it is unworshipped, or the spirit has at least as
// many idols across its territory as the incumbent.
func wouldClaimWorship(state *engine.PublicState, idolsAt map[board.HexCoord][]board.Idol, self realm.SpiritID, fid realm.FactionID) bool {
	f := faction(state, fid)
	if f.WorshipSpirit == "" {
		return true
	}
	mine, theirs := 0, 0
	for _, c := range f.Territory {
		for _, idol := range idolsAt[c] {
			switch realm.SpiritID(idol.Spirit) {
			case self:
				mine++
			case f.WorshipSpirit:
				theirs++
			}
		}
	}
	return mine >= theirs
}

func territoryIdolCount(state *engine.PublicState, idolsAt map[board.HexCoord][]board.Idol, fid realm.FactionID) int {
	n := 0
	for _, c := range faction(state, fid).Territory {
		n += len(idolsAt[c])
	}
	return n
}

func tileIdols(state *engine.PublicState) map[board.HexCoord][]board.Idol {
	out := make(map[board.HexCoord][]board.Idol)
	for _, t := range state.Tiles {
		if len(t.Idols) > 0 {
			out[t.Coord] = t.Idols
		}
	}
	return out
}

func faction(state *engine.PublicState, fid realm.FactionID) *engine.FactionView {
	for i := range state.Factions {
		if state.Factions[i].ID == fid {
			return &state.Factions[i]
		}
	}
	return &engine.FactionView{ID: fid}
}
