package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/realm"
)

// Idol score weights, in tenths of a victory point per idol per unit of
// the matching turn delta.
const (
	battleTenths    = 5 // per war won
	affluenceTenths = 2 // per gold gained
	spreadTenths    = 5 // per territory gained
)

// beginScoring awards victory points from this turn's deltas, checks for
// winners, and otherwise collects ejection choices from guiding spirits
// out of influence.
func (g *Game) beginScoring() {
	g.Phase = PhaseScoring
	g.stage = stageEjection
	g.emit(EventPhaseStart, "scoring", nil)

	for _, id := range g.FactionOrder {
		f := g.Factions[id]
		if f.Eliminated || f.WorshipSpirit == "" {
			continue
		}
		census := g.Board.IdolCensus(g.Board.Territories(string(id)))
		d := g.deltas[id]
		tenths := battleTenths*census[board.IdolBattle]*d.WarsWon +
			affluenceTenths*census[board.IdolAffluence]*d.GoldGained +
			spreadTenths*census[board.IdolSpread]*d.TerritoryGained
		if tenths <= 0 {
			continue
		}
		s := g.Spirits[f.WorshipSpirit]
		s.VictoryTenths += tenths
		g.emit(EventScored,
			fmt.Sprintf("%s gains %d.%d points from the worship of %q", s.Name, tenths/10, tenths%10, id),
			map[string]any{"spirit": s.ID, "faction": id, "tenths": tenths, "points": s.Points(), "totalTenths": s.VictoryTenths})
	}

	g.checkVictory()
	if g.Phase == PhaseOver {
		return
	}

	for _, id := range g.SpiritOrder {
		s := g.Spirits[id]
		if s.Vagrant || s.Influence > 0 {
			continue
		}
		g.ejecting[id] = true
		g.awaiting[id] = InputEjectionReplacement
	}
	g.emitAwaiting()
}

// checkVictory ends the game once any spirit reaches the threshold. Every
// spirit holding the maximum total shares the win.
func (g *Game) checkVictory() {
	best := 0
	for _, id := range g.SpiritOrder {
		if t := g.Spirits[id].VictoryTenths; t > best {
			best = t
		}
	}
	if best < g.Threshold*10 {
		return
	}
	for _, id := range g.SpiritOrder {
		if g.Spirits[id].VictoryTenths == best {
			g.winners = append(g.winners, id)
		}
	}
	g.Phase = PhaseOver
	names := make([]string, len(g.winners))
	for i, id := range g.winners {
		names[i] = g.Spirits[id].Name
	}
	g.emit(EventGameOver,
		fmt.Sprintf("the game ends at %d.%d points; winners: %v", best/10, best%10, names),
		map[string]any{"winners": g.winners, "tenths": best})
	slog.Info("game over", "turn", g.Turn, "winners", g.winners, "tenths", best)
}

// processEjections unguides every spirit that ran out of influence. The
// parting pool swap was applied at submission; here the guidance stop runs
// its worship re-check and the spirit returns to vagrancy.
func (g *Game) processEjections() {
	for _, id := range g.SpiritOrder {
		if !g.ejecting[id] {
			continue
		}
		s := g.Spirits[id]
		f := g.Factions[s.GuidedFaction]
		f.GuidingSpirit = ""
		s.BecomeVagrant()
		g.emit(EventEjected,
			fmt.Sprintf("%s is spent and leaves %q", s.Name, f.ID),
			map[string]any{"spirit": id, "faction": f.ID, "eliminated": false})
		g.worshipCheck(f, id)
	}
	g.ejecting = make(map[realm.SpiritID]bool)
}
