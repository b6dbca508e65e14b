package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/realm"
)

// CurrentPhase returns the phase the room rests in.
func (g *Game) CurrentPhase() Phase {
	return g.Phase
}

// TurnNumber returns the current turn, counting from 1.
func (g *Game) TurnNumber() int {
	return g.Turn
}

// AwaitedSpirits lists the spirits the engine is suspended on, in seat
// order.
func (g *Game) AwaitedSpirits() []realm.SpiritID {
	var out []realm.SpiritID
	for _, id := range g.SpiritOrder {
		if _, ok := g.awaiting[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Winners returns the spirits that crossed the threshold together, or nil
// while the game runs.
func (g *Game) Winners() []realm.SpiritID {
	return append([]realm.SpiritID(nil), g.winners...)
}

// EventLog returns the full event record. Callers must not modify it.
func (g *Game) EventLog() []Event {
	return g.events
}

// EventsSince returns the events after the given sequence number, for
// stream consumers catching up.
func (g *Game) EventsSince(seq int) []Event {
	for i, ev := range g.events {
		if ev.Seq > seq {
			return g.events[i:]
		}
	}
	return nil
}

// ActionLog returns the accepted submissions in order. Callers must not
// modify it.
func (g *Game) ActionLog() []ActionRecord {
	return g.actions
}

// PendingInputsFor returns what the spirit owes right now, with the
// private options only that spirit may see. Empty when nothing is owed.
func (g *Game) PendingInputsFor(id realm.SpiritID) []PendingInput {
	kind, ok := g.awaiting[id]
	if !ok {
		return nil
	}
	p := PendingInput{Kind: kind}
	switch kind {
	case InputVagrantAction:
		p.GuidableFactions = g.guidableFactions(id)
		p.IdolTargets = g.idolTargets(g.Spirits[id])
		if len(p.IdolTargets) > 0 {
			p.IdolTypes = append([]board.IdolType(nil), board.IdolTypes[:]...)
		}
	case InputAgendaChoice:
		p.Hand = append([]realm.AgendaType(nil), g.agendaHands[id]...)
	case InputChangeChoice:
		p.Hand = append([]realm.AgendaType(nil), g.changeHands[id]...)
	case InputEjectionReplacement:
		// The hand here is the guided faction's current pool, the cards a
		// swap may remove.
		f := g.Factions[g.Spirits[id].GuidedFaction]
		p.Hand = append([]realm.AgendaType(nil), f.Pool...)
	case InputSpoilsChoices:
		for _, e := range g.pendingSpoils(id) {
			p.Offers = append(p.Offers, SpoilsOffer{
				WarID: e.warID,
				Loser: e.loser,
				Cards: append([]realm.AgendaType(nil), e.cards...),
			})
		}
	case InputSpoilsChangeChoices:
		for _, e := range g.pendingSpoilsChanges(id) {
			p.Offers = append(p.Offers, SpoilsOffer{
				WarID: e.warID,
				Loser: e.loser,
				Cards: append([]realm.AgendaType(nil), e.changeCards...),
			})
		}
	}
	return []PendingInput{p}
}

// TileView is one board tile in a public snapshot.
type TileView struct {
	Coord   board.HexCoord `json:"coord"`
	Terrain board.Terrain  `json:"terrain"`
	Owner   string         `json:"owner,omitempty"`
	Idols   []board.Idol   `json:"idols,omitempty"`
}

// FactionView is one faction record in a public snapshot. Pools, regard,
// and modifiers are open information.
type FactionView struct {
	ID            realm.FactionID          `json:"id"`
	Habitat       board.Terrain            `json:"habitat"`
	Gold          int                      `json:"gold"`
	Territory     []board.HexCoord         `json:"territory"`
	Regard        map[realm.FactionID]int  `json:"regard"`
	Pool          []realm.AgendaType       `json:"agendaPool"`
	Modifiers     map[realm.AgendaType]int `json:"modifiers"`
	GuidingSpirit realm.SpiritID           `json:"guidingSpirit,omitempty"`
	WorshipSpirit realm.SpiritID           `json:"worshipSpirit,omitempty"`
	Eliminated    bool                     `json:"eliminated,omitempty"`
}

// SpiritView is one spirit record in a public snapshot. VictoryPoints is
// the floored display total; the tenths carry the fractional remainder.
type SpiritView struct {
	ID            realm.SpiritID  `json:"id"`
	Name          string          `json:"name"`
	Influence     int             `json:"influence"`
	Vagrant       bool            `json:"isVagrant"`
	GuidedFaction realm.FactionID `json:"guidedFaction,omitempty"`
	VictoryPoints int             `json:"victoryPoints"`
	VictoryTenths int             `json:"victoryTenths"`
}

// AwaitView names one owed submission in a public snapshot.
type AwaitView struct {
	Spirit realm.SpiritID `json:"spirit"`
	Kind   InputKind      `json:"kind"`
}

// PublicState is the spectator-safe snapshot of a room: everything except
// undrawn hands and unchosen options.
type PublicState struct {
	Turn      int              `json:"turn"`
	Phase     Phase            `json:"phase"`
	Threshold int              `json:"threshold"`
	BoardSide int              `json:"boardSide"`
	Tiles     []TileView       `json:"tiles"`
	Factions  []FactionView    `json:"factions"`
	Spirits   []SpiritView     `json:"spirits"`
	Wars      []War            `json:"wars"`
	Awaiting  []AwaitView      `json:"awaiting,omitempty"`
	Winners   []realm.SpiritID `json:"winners,omitempty"`
}

// PublicState snapshots the room in canonical order. The snapshot shares
// nothing with live state; callers may hold it across turns.
func (g *Game) PublicState() *PublicState {
	ps := &PublicState{
		Turn:      g.Turn,
		Phase:     g.Phase,
		Threshold: g.Threshold,
		BoardSide: g.Board.Side,
		Winners:   g.Winners(),
	}

	for _, c := range g.Board.Coords() {
		t := g.Board.Get(c)
		ps.Tiles = append(ps.Tiles, TileView{
			Coord:   c,
			Terrain: t.Terrain,
			Owner:   t.Owner,
			Idols:   append([]board.Idol(nil), t.Idols...),
		})
	}

	for _, id := range g.FactionOrder {
		f := g.Factions[id]
		fv := FactionView{
			ID:            id,
			Habitat:       f.Habitat,
			Gold:          f.Gold,
			Territory:     g.Board.Territories(string(id)),
			Regard:        make(map[realm.FactionID]int, len(f.Regard)),
			Pool:          append([]realm.AgendaType(nil), f.Pool...),
			Modifiers:     make(map[realm.AgendaType]int, len(f.Modifiers)),
			GuidingSpirit: f.GuidingSpirit,
			WorshipSpirit: f.WorshipSpirit,
			Eliminated:    f.Eliminated,
		}
		for k, v := range f.Regard {
			fv.Regard[k] = v
		}
		for k, v := range f.Modifiers {
			fv.Modifiers[k] = v
		}
		ps.Factions = append(ps.Factions, fv)
	}

	for _, id := range g.SpiritOrder {
		s := g.Spirits[id]
		ps.Spirits = append(ps.Spirits, SpiritView{
			ID:            id,
			Name:          s.Name,
			Influence:     s.Influence,
			Vagrant:       s.Vagrant,
			GuidedFaction: s.GuidedFaction,
			VictoryPoints: s.Points(),
			VictoryTenths: s.VictoryTenths,
		})
	}

	for _, w := range g.Wars {
		wc := *w
		if w.Battleground != nil {
			bg := *w.Battleground
			wc.Battleground = &bg
		}
		ps.Wars = append(ps.Wars, wc)
	}

	for _, id := range g.SpiritOrder {
		if kind, ok := g.awaiting[id]; ok {
			ps.Awaiting = append(ps.Awaiting, AwaitView{Spirit: id, Kind: kind})
		}
	}

	return ps
}

// StateDigest hashes the room state, including the per-turn accumulators
// and cooldowns a snapshot omits. Two rooms built from the same seed and
// action log digest identically.
func (g *Game) StateDigest() string {
	deltas := make([]TurnDelta, 0, len(g.FactionOrder))
	for _, id := range g.FactionOrder {
		deltas = append(deltas, *g.deltas[id])
	}
	placed := make(map[realm.SpiritID]bool, len(g.SpiritOrder))
	for _, id := range g.SpiritOrder {
		placed[id] = g.Spirits[id].PlacedIdol
	}
	cooldowns := make(map[realm.SpiritID][]realm.FactionID)
	for _, sid := range g.SpiritOrder {
		for _, fid := range g.FactionOrder {
			if g.cooldowns[sid][fid] {
				cooldowns[sid] = append(cooldowns[sid], fid)
			}
		}
	}

	view := struct {
		State     *PublicState                         `json:"state"`
		Deltas    []TurnDelta                          `json:"deltas"`
		Placed    map[realm.SpiritID]bool              `json:"placedIdols"`
		Cooldowns map[realm.SpiritID][]realm.FactionID `json:"cooldowns"`
		WarSeq    uint64                               `json:"warSeq"`
	}{g.PublicState(), deltas, placed, cooldowns, g.warSeq}

	b, _ := json.Marshal(view)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
