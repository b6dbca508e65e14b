package engine

import (
	"fmt"

	"github.com/talgya/impetus/internal/realm"
)

// worshipCheck runs on any guidance start or stop. The transitioning
// spirit claims the faction's worship: an unworshipped faction converts
// outright, and a different incumbent is displaced when the claimant has
// placed at least as many idols across the faction's current territory,
// all types counted.
func (g *Game) worshipCheck(f *realm.Faction, claimant realm.SpiritID) {
	if f.WorshipSpirit == claimant {
		return
	}
	if f.WorshipSpirit != "" {
		terr := g.Board.Territories(string(f.ID))
		incoming := g.Board.CountSpiritIdols(string(claimant), terr)
		incumbent := g.Board.CountSpiritIdols(string(f.WorshipSpirit), terr)
		if incoming < incumbent {
			return
		}
	}
	f.WorshipSpirit = claimant
	g.emit(EventWorship,
		fmt.Sprintf("%q now worships %s", f.ID, g.Spirits[claimant].Name),
		map[string]any{"faction": f.ID, "spirit": claimant})
}
