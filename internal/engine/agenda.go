package engine

import (
	"fmt"

	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/entropy"
	"github.com/talgya/impetus/internal/realm"
)

// warRegardThreshold is the mutual regard at or below which a war erupts.
const warRegardThreshold = -2

// beginAgenda opens the agenda phase: every guiding spirit draws a hand of
// 1 + influence cards from its faction's pool and owes a pick. Unguided
// factions draw at resolution.
func (g *Game) beginAgenda() {
	g.Phase = PhaseAgenda
	g.stage = stageAgenda
	g.emit(EventPhaseStart, "agenda", nil)

	for _, id := range g.SpiritOrder {
		s := g.Spirits[id]
		if s.Vagrant {
			continue
		}
		f := g.Factions[s.GuidedFaction]
		g.agendaHands[id] = f.SamplePool(1+s.Influence, g.src)
		g.awaiting[id] = InputAgendaChoice
	}
	g.emitAwaiting()
}

// prepareChanges runs once all agenda choices are in: guidance drains one
// influence, then every guided Change with influence remaining draws its
// modifier hand and suspends. Factions at influence zero fall through to an
// automatic draw in the change step.
func (g *Game) prepareChanges() {
	g.stage = stageChange

	for _, id := range g.SpiritOrder {
		if s := g.Spirits[id]; !s.Vagrant {
			s.LoseInfluence()
		}
	}

	for _, id := range g.SpiritOrder {
		s := g.Spirits[id]
		if s.Vagrant || g.agendaChoices[s.GuidedFaction] != realm.AgendaChange {
			continue
		}
		if s.Influence < 1 {
			continue
		}
		g.changeHands[id] = drawModifiers(1+s.Influence, g.src)
		g.awaiting[id] = InputChangeChoice
	}
	g.emitAwaiting()
}

// drawModifiers deals n distinct modifier targets, n capped at the deck
// size.
func drawModifiers(n int, src *entropy.Source) []realm.AgendaType {
	if n > len(realm.ModifierTypes) {
		n = len(realm.ModifierTypes)
	}
	perm := src.Perm(len(realm.ModifierTypes))
	hand := make([]realm.AgendaType, n)
	for i := range hand {
		hand[i] = realm.ModifierTypes[perm[i]]
	}
	return hand
}

// resolveAgendaUnguided plays the agenda phase of an automated turn, where
// no faction is guided and nothing suspends.
func (g *Game) resolveAgendaUnguided() {
	g.Phase = PhaseAgenda
	g.emit(EventPhaseStart, "agenda", nil)
	g.resolveAgenda()
}

// resolveAgenda reveals every faction's agenda and runs the four steps in
// fixed order. Guided factions play their spirit's pick; unguided factions
// draw one card from their pool now.
func (g *Game) resolveAgenda() {
	byType := make(map[realm.AgendaType][]realm.FactionID)
	for _, f := range g.liveFactions() {
		card, ok := g.agendaChoices[f.ID]
		if !ok {
			card = f.SamplePool(1, g.src)[0]
		}
		byType[card] = append(byType[card], f.ID)
		g.emit(EventAgendaChosen, fmt.Sprintf("%q pursues %s", f.ID, card),
			map[string]any{"faction": f.ID, "agenda": card, "guided": f.Guided()})
	}

	g.tradedNow = make(map[realm.FactionID]bool)
	for _, id := range byType[realm.AgendaTrade] {
		g.tradedNow[id] = true
	}

	g.resolveTradeStep(byType[realm.AgendaTrade])
	g.resolveStealBatch(byType[realm.AgendaSteal])
	g.checkEruptions(byType[realm.AgendaSteal])
	g.resolveExpandStep(byType[realm.AgendaExpand])
	g.resolveChangeStep(byType[realm.AgendaChange])
	g.checkInvariants()
}

// resolveTradeStep pays each trader (1 + modifier) gold, again per
// co-trader, and raises pairwise regard in both directions.
func (g *Game) resolveTradeStep(traders []realm.FactionID) {
	co := len(traders) - 1
	for _, id := range traders {
		f := g.Factions[id]
		gain := (1 + f.Modifier(realm.AgendaTrade)) * (1 + co)
		g.creditGold(f, gain)
		g.emit(EventTrade, fmt.Sprintf("%q trades for %d gold with %d partners", id, gain, co),
			map[string]any{"faction": id, "gold": gain, "partners": co})
	}
	for i, aid := range traders {
		a := g.Factions[aid]
		for _, bid := range traders[i+1:] {
			b := g.Factions[bid]
			delta := (1 + a.Modifier(realm.AgendaTrade)) + (1 + b.Modifier(realm.AgendaTrade))
			a.AdjustRegard(bid, delta)
			b.AdjustRegard(aid, delta)
		}
	}
}

// resolveStealBatch applies simultaneous steals. Every actor raids every
// pre-step live neighbor: regard drops by one in each direction, the victim
// loses up to 1 + the actor's steal modifier against its pre-step gold, and
// the actor pockets the loss unless the victim is itself stealing this step.
// Losses and gains settle as one batch.
func (g *Game) resolveStealBatch(actors []realm.FactionID) {
	if len(actors) == 0 {
		return
	}
	actorSet := make(map[realm.FactionID]bool, len(actors))
	for _, id := range actors {
		actorSet[id] = true
	}
	preGold := make(map[realm.FactionID]int, len(g.Factions))
	for _, id := range g.FactionOrder {
		preGold[id] = g.Factions[id].Gold
	}

	losses := make(map[realm.FactionID]int)
	gains := make(map[realm.FactionID]int)

	for _, actor := range actors {
		a := g.Factions[actor]
		take := 1 + a.Modifier(realm.AgendaSteal)
		for _, owner := range g.Board.NeighborOwners(string(actor)) {
			victim := realm.FactionID(owner)
			v := g.Factions[victim]
			a.AdjustRegard(victim, -1)
			v.AdjustRegard(actor, -1)

			loss := take
			if loss > preGold[victim] {
				loss = preGold[victim]
			}
			losses[victim] += loss
			seized := 0
			if !actorSet[victim] {
				gains[actor] += loss
				seized = loss
			}
			g.emit(EventSteal,
				fmt.Sprintf("%q raids %q: %d gold lost, %d seized", actor, victim, loss, seized),
				map[string]any{"faction": actor, "victim": victim, "lost": loss, "seized": seized})
		}
	}

	for _, id := range g.FactionOrder {
		if n := losses[id]; n > 0 {
			g.Factions[id].LoseGold(n)
		}
	}
	for _, id := range g.FactionOrder {
		if n := gains[id]; n > 0 {
			g.creditGold(g.Factions[id], n)
		}
	}
}

// checkEruptions starts a Pending war between each steal actor and any of
// its current live neighbors at or below the regard threshold, skipping
// pairs that already have a war in any state.
func (g *Game) checkEruptions(actors []realm.FactionID) {
	for _, actor := range actors {
		a := g.Factions[actor]
		if a.Eliminated {
			continue
		}
		for _, owner := range g.Board.NeighborOwners(string(actor)) {
			other := realm.FactionID(owner)
			if a.RegardToward(other) > warRegardThreshold {
				continue
			}
			if g.warBetween(actor, other) != nil {
				continue
			}
			g.eruptWar(actor, other)
		}
	}
}

// resolveExpandStep resolves expansion attempts against a snapshot of
// gold, territory, and reachable neutrals. Unique targets are paid for and
// claimed; collisions leave the tile neutral with nothing paid; factions
// that cannot expand take the failure bonus instead.
func (g *Game) resolveExpandStep(expanders []realm.FactionID) {
	type attempt struct {
		id     realm.FactionID
		cost   int
		target board.HexCoord
	}
	var attempts []attempt
	targetCount := make(map[board.HexCoord]int)

	for _, id := range expanders {
		f := g.Factions[id]
		cost := f.TerritoryCount() - f.Modifier(realm.AgendaExpand)
		if cost < 0 {
			cost = 0
		}
		reach := g.Board.ReachableNeutrals(string(id))
		if f.Gold < cost || len(reach) == 0 {
			bonus := 1 + f.Modifier(realm.AgendaExpand)
			g.creditGold(f, bonus)
			g.emit(EventExpandFailed,
				fmt.Sprintf("%q cannot expand and gains %d gold", id, bonus),
				map[string]any{"faction": id, "gold": bonus})
			continue
		}
		target := g.pickExpandTarget(reach)
		attempts = append(attempts, attempt{id: id, cost: cost, target: target})
		targetCount[target]++
	}

	reported := make(map[board.HexCoord]bool)
	for _, at := range attempts {
		if targetCount[at.target] > 1 {
			if !reported[at.target] {
				reported[at.target] = true
				g.emit(EventExpandContested,
					fmt.Sprintf("%d factions contest (%d,%d); the tile stays neutral", targetCount[at.target], at.target.Q, at.target.R),
					map[string]any{"at": at.target})
			}
			continue
		}
		f := g.Factions[at.id]
		f.LoseGold(at.cost)
		g.claimTile(f, at.target)
		g.emit(EventExpand,
			fmt.Sprintf("%q pays %d gold and claims (%d,%d)", at.id, at.cost, at.target.Q, at.target.R),
			map[string]any{"faction": at.id, "cost": at.cost, "at": at.target})
	}
}

// pickExpandTarget draws a uniform target, preferring idol-bearing tiles
// when any are reachable.
func (g *Game) pickExpandTarget(reach []board.HexCoord) board.HexCoord {
	var withIdols []board.HexCoord
	for _, c := range reach {
		if g.Board.HasIdols(c) {
			withIdols = append(withIdols, c)
		}
	}
	if len(withIdols) > 0 {
		return withIdols[g.src.Intn(len(withIdols))]
	}
	return reach[g.src.Intn(len(reach))]
}

// resolveChangeStep applies the collected modifier picks; factions without
// a recorded pick (unguided, or guided at zero influence) draw one target
// at random.
func (g *Game) resolveChangeStep(changers []realm.FactionID) {
	for _, id := range changers {
		f := g.Factions[id]
		target, ok := g.changeChoices[id]
		if !ok {
			target = realm.ModifierTypes[g.src.Intn(len(realm.ModifierTypes))]
		}
		f.StrengthenModifier(target)
		g.emit(EventChange,
			fmt.Sprintf("%q permanently strengthens its %s agenda", id, target),
			map[string]any{"faction": id, "target": target, "level": f.Modifier(target)})
	}
}
