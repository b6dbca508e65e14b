package engine

import (
	"fmt"

	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/realm"
)

// War tracks a grudge between two factions. A war erupts Pending, ripens
// onto a battleground, and leaves the list when resolved or when a
// belligerent is eliminated.
type War struct {
	ID       uint64          `json:"id"`
	FactionA realm.FactionID `json:"factionA"`
	FactionB realm.FactionID `json:"factionB"`
	Ripe     bool            `json:"isRipe"`

	// Battleground is set on ripening.
	Battleground *Battleground `json:"battleground,omitempty"`
}

// Battleground is the adjacent tile pair a ripe war is fought over. A is
// owned by FactionA, B by FactionB.
type Battleground struct {
	A board.HexCoord `json:"a"`
	B board.HexCoord `json:"b"`
}

// Involves reports whether the faction is a belligerent.
func (w *War) Involves(id realm.FactionID) bool {
	return w.FactionA == id || w.FactionB == id
}

// spoilsEntry is one won war's spoils working its way through collection
// and the finalize batch.
type spoilsEntry struct {
	warID     uint64
	winner    realm.FactionID
	loser     realm.FactionID
	loserTile board.HexCoord // loser-side battleground tile, the Spoils-Expand target

	spirit realm.SpiritID // guiding spirit owed the pick; empty for auto-drawn spoils

	cards  []realm.AgendaType // offered cards
	choice realm.AgendaType   // empty until picked

	changeCards  []realm.AgendaType // modifier hand when choice is Change and spirit is set
	changeChoice realm.AgendaType
}

// warBetween returns the existing war between the pair in any state, if
// one exists.
func (g *Game) warBetween(a, b realm.FactionID) *War {
	for _, w := range g.Wars {
		if w.Involves(a) && w.Involves(b) {
			return w
		}
	}
	return nil
}

// eruptWar starts a Pending war between the pair.
func (g *Game) eruptWar(a, b realm.FactionID) {
	g.warSeq++
	w := &War{ID: g.warSeq, FactionA: a, FactionB: b}
	g.Wars = append(g.Wars, w)
	g.emit(EventWarErupted,
		fmt.Sprintf("war erupts between %q and %q", a, b),
		map[string]any{"warId": w.ID, "factionA": a, "factionB": b})
}

// cancelWarsFor removes every war involving the faction, in any state.
func (g *Game) cancelWarsFor(id realm.FactionID) {
	var keep []*War
	for _, w := range g.Wars {
		if !w.Involves(id) {
			keep = append(keep, w)
			continue
		}
		g.emit(EventWarCancelled,
			fmt.Sprintf("war between %q and %q is cancelled", w.FactionA, w.FactionB),
			map[string]any{"warId": w.ID, "factionA": w.FactionA, "factionB": w.FactionB})
	}
	g.Wars = keep
}

// beginWar opens the war phase: every ripe war is adjudicated against a
// single power snapshot, gold settles as one batch, and winners' spoils are
// drawn, suspending for guided winners' picks.
func (g *Game) beginWar() {
	g.Phase = PhaseWar
	g.stage = stageSpoils
	g.emit(EventPhaseStart, "war", nil)

	power := make(map[realm.FactionID]int, len(g.Factions))
	for _, id := range g.FactionOrder {
		power[id] = g.Factions[id].TerritoryCount()
	}

	type outcome struct {
		war            *War
		winner, loser  realm.FactionID
		tie            bool
		totalA, totalB int
	}
	var outcomes []outcome
	var remaining []*War
	for _, w := range g.Wars {
		if !w.Ripe {
			remaining = append(remaining, w)
			continue
		}
		totalA := power[w.FactionA] + g.src.Roll6()
		totalB := power[w.FactionB] + g.src.Roll6()
		o := outcome{war: w, totalA: totalA, totalB: totalB}
		switch {
		case totalA > totalB:
			o.winner, o.loser = w.FactionA, w.FactionB
		case totalB > totalA:
			o.winner, o.loser = w.FactionB, w.FactionA
		default:
			o.tie = true
		}
		outcomes = append(outcomes, o)

		desc := fmt.Sprintf("war between %q (%d) and %q (%d) ends in a draw", w.FactionA, totalA, w.FactionB, totalB)
		if !o.tie {
			desc = fmt.Sprintf("%q (%d) defeats %q (%d)", o.winner, max(totalA, totalB), o.loser, min(totalA, totalB))
		}
		g.emit(EventWarResolved, desc, map[string]any{
			"warId": w.ID, "factionA": w.FactionA, "factionB": w.FactionB,
			"totalA": totalA, "totalB": totalB, "winner": o.winner, "tie": o.tie,
		})
	}
	g.Wars = remaining

	// Gold changes settle together after every war is adjudicated.
	net := make(map[realm.FactionID]int)
	for _, o := range outcomes {
		if o.tie {
			net[o.war.FactionA]--
			net[o.war.FactionB]--
			continue
		}
		net[o.winner]++
		net[o.loser]--
	}
	for _, id := range g.FactionOrder {
		switch n := net[id]; {
		case n > 0:
			g.creditGold(g.Factions[id], n)
		case n < 0:
			g.Factions[id].LoseGold(-n)
		}
	}
	for _, o := range outcomes {
		if !o.tie {
			g.deltas[o.winner].WarsWon++
		}
	}

	for _, o := range outcomes {
		if o.tie {
			continue
		}
		winner := g.Factions[o.winner]
		e := &spoilsEntry{warID: o.war.ID, winner: o.winner, loser: o.loser}
		if o.winner == o.war.FactionA {
			e.loserTile = o.war.Battleground.B
		} else {
			e.loserTile = o.war.Battleground.A
		}
		if winner.Guided() {
			s := g.Spirits[winner.GuidingSpirit]
			e.spirit = s.ID
			e.cards = winner.SamplePool(1+s.Influence, g.src)
			g.awaiting[s.ID] = InputSpoilsChoices
		} else {
			e.cards = winner.SamplePool(1, g.src)
			e.choice = e.cards[0]
		}
		g.spoilsQueue = append(g.spoilsQueue, e)
	}
	g.emitAwaiting()
}

// prepareSpoilsChanges runs once every spoils pick is in. A guided winner
// whose pick is Change draws its modifier hand and suspends again; this
// happens even for a hand of one card.
func (g *Game) prepareSpoilsChanges() {
	g.stage = stageSpoilsChange
	for _, e := range g.spoilsQueue {
		if e.spirit == "" || e.choice != realm.AgendaChange || e.changeCards != nil {
			continue
		}
		s := g.Spirits[e.spirit]
		e.changeCards = drawModifiers(1+s.Influence, g.src)
		g.awaiting[e.spirit] = InputSpoilsChangeChoices
	}
	g.emitAwaiting()
}

// finalizeSpoils resolves every collected spoils as one batch in standard
// agenda order, then sweeps eliminations and ripens pending wars onto fresh
// battlegrounds.
func (g *Game) finalizeSpoils() {
	if len(g.spoilsQueue) > 0 {
		g.resolveSpoilsBatch()
	}
	g.sweepEliminations()
	g.ripenPendingWars()
	g.spoilsQueue = nil
	g.checkInvariants()
}

// resolveSpoilsBatch applies the spoils of every won war together.
func (g *Game) resolveSpoilsBatch() {
	byType := make(map[realm.AgendaType][]*spoilsEntry)
	for _, e := range g.spoilsQueue {
		byType[e.choice] = append(byType[e.choice], e)
		g.emit(EventSpoilsResolved,
			fmt.Sprintf("%q claims the spoils of war %d: %s", e.winner, e.warID, e.choice),
			map[string]any{"warId": e.warID, "faction": e.winner, "agenda": e.choice})
	}

	g.resolveSpoilsTrade(byType[realm.AgendaTrade])

	stealers := make([]realm.FactionID, 0, len(byType[realm.AgendaSteal]))
	for _, e := range byType[realm.AgendaSteal] {
		stealers = append(stealers, e.winner)
	}
	g.resolveStealBatch(stealers)
	g.checkEruptions(stealers)

	g.resolveSpoilsExpand(byType[realm.AgendaExpand])

	for _, e := range byType[realm.AgendaChange] {
		f := g.Factions[e.winner]
		target := e.changeChoice
		if target == "" {
			target = realm.ModifierTypes[g.src.Intn(len(realm.ModifierTypes))]
		}
		f.StrengthenModifier(target)
		g.emit(EventChange,
			fmt.Sprintf("%q permanently strengthens its %s agenda", e.winner, target),
			map[string]any{"faction": e.winner, "target": target, "level": f.Modifier(target)})
	}
}

// resolveSpoilsTrade pays spoils traders with both fellow spoils traders
// and this turn's ordinary traders as partners. Each ordinary trader takes
// a bonus per distinct spoils-trading faction; regard flows only from the
// spoils side.
func (g *Game) resolveSpoilsTrade(entries []*spoilsEntry) {
	if len(entries) == 0 {
		return
	}
	spoilsTraders := make(map[realm.FactionID]bool, len(entries))
	for _, e := range entries {
		spoilsTraders[e.winner] = true
	}
	partnersOf := func(self realm.FactionID) []realm.FactionID {
		var out []realm.FactionID
		for _, id := range g.FactionOrder {
			if id == self {
				continue
			}
			if spoilsTraders[id] || g.tradedNow[id] {
				out = append(out, id)
			}
		}
		return out
	}

	for _, e := range entries {
		f := g.Factions[e.winner]
		partners := partnersOf(e.winner)
		gain := (1 + f.Modifier(realm.AgendaTrade)) * (1 + len(partners))
		g.creditGold(f, gain)
		g.emit(EventTrade,
			fmt.Sprintf("%q trades its spoils for %d gold with %d partners", e.winner, gain, len(partners)),
			map[string]any{"faction": e.winner, "gold": gain, "partners": len(partners)})
		donation := 1 + f.Modifier(realm.AgendaTrade)
		for _, pid := range partners {
			f.AdjustRegard(pid, donation)
			g.Factions[pid].AdjustRegard(e.winner, donation)
		}
	}

	// Ordinary traders broker the spoils batch once each, however many
	// spoils trades resolved.
	for _, oid := range g.FactionOrder {
		if !g.tradedNow[oid] {
			continue
		}
		o := g.Factions[oid]
		bonus := 1 + o.Modifier(realm.AgendaTrade)
		g.creditGold(o, bonus)
		g.emit(EventTrade,
			fmt.Sprintf("%q earns %d gold brokering the spoils trade", oid, bonus),
			map[string]any{"faction": oid, "gold": bonus})
	}
}

// resolveSpoilsExpand conquers each war's loser-side battleground tile for
// the winner, free of cost. Collisions on one tile leave it with the loser
// and pay every contender the expand-failure bonus.
func (g *Game) resolveSpoilsExpand(entries []*spoilsEntry) {
	targetCount := make(map[board.HexCoord]int)
	for _, e := range entries {
		targetCount[e.loserTile]++
	}
	reported := make(map[board.HexCoord]bool)
	for _, e := range entries {
		f := g.Factions[e.winner]
		if targetCount[e.loserTile] > 1 {
			bonus := 1 + f.Modifier(realm.AgendaExpand)
			g.creditGold(f, bonus)
			if !reported[e.loserTile] {
				reported[e.loserTile] = true
				g.emit(EventExpandContested,
					fmt.Sprintf("%d spoils contest (%d,%d); nobody takes it", targetCount[e.loserTile], e.loserTile.Q, e.loserTile.R),
					map[string]any{"at": e.loserTile})
			}
			g.emit(EventExpandFailed,
				fmt.Sprintf("%q gains %d gold from the contested spoils", e.winner, bonus),
				map[string]any{"faction": e.winner, "gold": bonus})
			continue
		}
		if g.Board.Owner(e.loserTile) != string(e.loser) {
			// Battleground tiles change hands only through this step, so a
			// stale claim means an engine bug upstream.
			g.fail(&InvariantError{Check: fmt.Sprintf("battleground (%d,%d) no longer owned by %q", e.loserTile.Q, e.loserTile.R, e.loser)})
			return
		}
		g.conquerTile(f, g.Factions[e.loser], e.loserTile)
		g.emit(EventExpand,
			fmt.Sprintf("%q seizes the battleground (%d,%d) from %q", e.winner, e.loserTile.Q, e.loserTile.R, e.loser),
			map[string]any{"faction": e.winner, "at": e.loserTile, "from": e.loser})
	}
}

// sweepEliminations runs the cascade for any faction newly out of
// territory: wars cancelled from any state, guide ejected, worship cleared.
func (g *Game) sweepEliminations() {
	for _, id := range g.FactionOrder {
		f := g.Factions[id]
		if !f.Eliminated || g.elimDone[id] {
			continue
		}
		g.elimDone[id] = true
		g.emit(EventEliminated, fmt.Sprintf("%q has lost its last territory", id),
			map[string]any{"faction": id})
		g.cancelWarsFor(id)
		if f.Guided() {
			s := g.Spirits[f.GuidingSpirit]
			f.GuidingSpirit = ""
			s.BecomeVagrant()
			g.emit(EventEjected,
				fmt.Sprintf("%s is cast out by the fall of %q", s.Name, id),
				map[string]any{"spirit": s.ID, "faction": id, "eliminated": true})
		}
		if f.WorshipSpirit != "" {
			g.emit(EventWorship, fmt.Sprintf("%q loses its worshipper", id),
				map[string]any{"faction": id, "spirit": ""})
			f.WorshipSpirit = ""
		}
	}
}

// ripenPendingWars fixes a battleground for every pending war with a
// current border. Pairs without one stay pending.
func (g *Game) ripenPendingWars() {
	for _, w := range g.Wars {
		if w.Ripe {
			continue
		}
		pairs := g.Board.BorderPairs(string(w.FactionA), string(w.FactionB))
		if len(pairs) == 0 {
			continue
		}
		p := pairs[g.src.Intn(len(pairs))]
		w.Battleground = &Battleground{A: p[0], B: p[1]}
		w.Ripe = true
		g.emit(EventWarRipened,
			fmt.Sprintf("the war between %q and %q ripens at (%d,%d)/(%d,%d)", w.FactionA, w.FactionB, p[0].Q, p[0].R, p[1].Q, p[1].R),
			map[string]any{"warId": w.ID, "battleground": w.Battleground})
	}
}
