package engine

import (
	"fmt"

	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/realm"
)

// IdolPlacement is the idol half of a vagrant action.
type IdolPlacement struct {
	Type board.IdolType `json:"type"`
	At   board.HexCoord `json:"at"`
}

// VagrantAction is a vagrant spirit's submission: a faction to guide, an
// idol to place, or both. Both fields are required when both options are
// available, exactly the available one otherwise.
type VagrantAction struct {
	GuideTarget *realm.FactionID `json:"guideTarget,omitempty"`
	Idol        *IdolPlacement   `json:"idolPlacement,omitempty"`
}

// guidableFactions returns the factions the spirit may target: unguided,
// live, not worshipping the spirit, not under a contention cooldown.
func (g *Game) guidableFactions(id realm.SpiritID) []realm.FactionID {
	var out []realm.FactionID
	for _, fid := range g.FactionOrder {
		f := g.Factions[fid]
		if f.Eliminated || f.Guided() || f.WorshipSpirit == id {
			continue
		}
		if g.cooldowns[id][fid] {
			continue
		}
		out = append(out, fid)
	}
	return out
}

// idolTargets returns the tiles where the spirit may place an idol: neutral
// and not already holding one of theirs. Empty when the stint allowance is
// spent.
func (g *Game) idolTargets(s *realm.Spirit) []board.HexCoord {
	if s.PlacedIdol {
		return nil
	}
	var out []board.HexCoord
	for _, c := range g.Board.NeutralCoords() {
		if !g.Board.HasIdolOf(c, string(s.ID)) {
			out = append(out, c)
		}
	}
	return out
}

// beginVagrant opens the vagrant phase. Vagrant spirits with at least one
// available option are awaited; the rest are skipped with an event.
func (g *Game) beginVagrant() {
	g.Phase = PhaseVagrant
	g.stage = stageVagrant
	g.emit(EventPhaseStart, "vagrant", nil)

	for _, id := range g.SpiritOrder {
		s := g.Spirits[id]
		if !s.Vagrant {
			continue
		}
		if len(g.guidableFactions(id)) == 0 && len(g.idolTargets(s)) == 0 {
			g.emit(EventVagrantSkipped, fmt.Sprintf("%s has no vagrant options", s.Name),
				map[string]any{"spirit": id})
			continue
		}
		g.awaiting[id] = InputVagrantAction
	}
	g.emitAwaiting()
}

// validateVagrantAction enforces the availability rules before an action is
// recorded.
func (g *Game) validateVagrantAction(id realm.SpiritID, act VagrantAction) error {
	s := g.Spirits[id]
	guidable := g.guidableFactions(id)
	idolable := g.idolTargets(s)

	if len(guidable) > 0 && act.GuideTarget == nil {
		return invalidf(id, "a faction to guide must be chosen")
	}
	if len(idolable) > 0 && act.Idol == nil {
		return invalidf(id, "an idol placement must be chosen")
	}

	if act.GuideTarget != nil {
		target := *act.GuideTarget
		f, ok := g.Factions[target]
		if !ok {
			return invalidf(id, "faction %q not found", target)
		}
		if f.Eliminated {
			return invalidf(id, "faction %q is eliminated", target)
		}
		if f.Guided() {
			return invalidf(id, "faction %q is already guided", target)
		}
		if f.WorshipSpirit == id {
			return invalidf(id, "faction %q worships you", target)
		}
		if g.cooldowns[id][target] {
			return invalidf(id, "guidance of %q is cooling down after contention", target)
		}
	}

	if act.Idol != nil {
		p := act.Idol
		if !board.ValidIdolType(p.Type) {
			return invalidf(id, "unknown idol type %q", p.Type)
		}
		if s.PlacedIdol {
			return invalidf(id, "idol allowance for this vagrant stint is spent")
		}
		t := g.Board.Get(p.At)
		if t == nil {
			return invalidf(id, "tile (%d,%d) is off the board", p.At.Q, p.At.R)
		}
		if !t.Neutral() {
			return invalidf(id, "tile (%d,%d) is owned by %q", p.At.Q, p.At.R, t.Owner)
		}
		if g.Board.HasIdolOf(p.At, string(id)) {
			return invalidf(id, "you already hold an idol at (%d,%d)", p.At.Q, p.At.R)
		}
	}

	return nil
}

// resolveVagrant applies all collected vagrant actions at once: idols land
// first and always succeed, then guidance claims resolve with contention.
func (g *Game) resolveVagrant() {
	// Cooldowns from last turn's contentions have done their validation
	// work; clear before any new ones are set.
	g.cooldowns = make(map[realm.SpiritID]map[realm.FactionID]bool)

	for _, id := range g.SpiritOrder {
		act, ok := g.vagrantActions[id]
		if !ok || act.Idol == nil {
			continue
		}
		s := g.Spirits[id]
		g.Board.PlaceIdol(act.Idol.At, board.Idol{Type: act.Idol.Type, Spirit: string(id)})
		s.PlacedIdol = true
		g.emit(EventIdolPlaced,
			fmt.Sprintf("%s places a %s idol at (%d,%d)", s.Name, act.Idol.Type, act.Idol.At.Q, act.Idol.At.R),
			map[string]any{"spirit": id, "type": act.Idol.Type, "at": act.Idol.At})
	}

	claims := make(map[realm.FactionID][]realm.SpiritID)
	for _, id := range g.SpiritOrder {
		if act, ok := g.vagrantActions[id]; ok && act.GuideTarget != nil {
			claims[*act.GuideTarget] = append(claims[*act.GuideTarget], id)
		}
	}

	for _, fid := range g.FactionOrder {
		contenders := claims[fid]
		switch {
		case len(contenders) == 0:
		case len(contenders) == 1:
			g.startGuidance(g.Spirits[contenders[0]], g.Factions[fid])
		default:
			for _, sid := range contenders {
				if g.cooldowns[sid] == nil {
					g.cooldowns[sid] = make(map[realm.FactionID]bool)
				}
				g.cooldowns[sid][fid] = true
			}
			g.emit(EventGuidanceContested,
				fmt.Sprintf("%d spirits contest guidance of %q; nobody guides", len(contenders), fid),
				map[string]any{"faction": fid, "spirits": contenders})
		}
	}

	g.vagrantActions = make(map[realm.SpiritID]VagrantAction)
	g.checkInvariants()
}

// startGuidance puts the spirit in control of the faction and runs the
// worship check for the guidance start.
func (g *Game) startGuidance(s *realm.Spirit, f *realm.Faction) {
	s.Guide(f.ID)
	f.GuidingSpirit = s.ID
	g.emit(EventGuidanceStarted,
		fmt.Sprintf("%s begins guiding %q", s.Name, f.ID),
		map[string]any{"spirit": s.ID, "faction": f.ID})
	g.worshipCheck(f, s.ID)
}

// emitAwaiting records who owes input, for event stream consumers. The
// private options stay out of the event.
func (g *Game) emitAwaiting() {
	if len(g.awaiting) == 0 {
		return
	}
	spirits := make([]realm.SpiritID, 0, len(g.awaiting))
	kinds := make(map[string]any, len(g.awaiting))
	for _, id := range g.SpiritOrder {
		if kind, ok := g.awaiting[id]; ok {
			spirits = append(spirits, id)
			kinds[string(id)] = kind
		}
	}
	g.emit(EventAwaiting, fmt.Sprintf("awaiting input from %d spirits", len(spirits)), kinds)
}
