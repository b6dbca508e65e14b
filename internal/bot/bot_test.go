package bot

import (
	"testing"

	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/engine"
	"github.com/talgya/impetus/internal/realm"
)

func vagrantInput(guidable []realm.FactionID, targets []board.HexCoord) engine.PendingInput {
	in := engine.PendingInput{
		Kind:             engine.InputVagrantAction,
		GuidableFactions: guidable,
		IdolTargets:      targets,
	}
	if len(targets) > 0 {
		in.IdolTypes = append([]board.IdolType(nil), board.IdolTypes[:]...)
	}
	return in
}

func TestGuidancePrefersClaimableWorship(t *testing.T) {
	// Mountain is unworshipped so guiding it claims worship. Mesa worships
	// brook, whose idol on mesa territory outnumbers ash's none.
	state := &engine.PublicState{
		Tiles: []engine.TileView{
			{Coord: board.HexCoord{Q: -1, R: 1}, Owner: "mesa",
				Idols: []board.Idol{{Type: board.IdolSpread, Spirit: "brook"}}},
		},
		Factions: []engine.FactionView{
			{ID: realm.FactionMountain},
			{ID: realm.FactionMesa, WorshipSpirit: "brook",
				Territory: []board.HexCoord{{Q: -1, R: 1}}},
		},
	}
	in := vagrantInput([]realm.FactionID{realm.FactionMountain, realm.FactionMesa}, nil)

	for seed := int64(1); seed <= 25; seed++ {
		act := New(seed).VagrantAction(state, "ash", in)
		if act.GuideTarget == nil {
			t.Fatalf("seed %d: no guide target chosen", seed)
		}
		if *act.GuideTarget != realm.FactionMountain {
			t.Fatalf("seed %d: chose %q, want the unworshipped faction", seed, *act.GuideTarget)
		}
		if act.Idol != nil {
			t.Fatalf("seed %d: idol placed with no targets offered", seed)
		}
	}
}

func TestGuidancePrefersIdolRichTerritory(t *testing.T) {
	// Both factions are unworshipped. Sand's territory carries two idols,
	// river's none, so sand wins the census tiebreak.
	state := &engine.PublicState{
		Tiles: []engine.TileView{
			{Coord: board.HexCoord{Q: 0, R: -1}, Owner: "sand",
				Idols: []board.Idol{
					{Type: board.IdolBattle, Spirit: "brook"},
					{Type: board.IdolAffluence, Spirit: "cinder"},
				}},
			{Coord: board.HexCoord{Q: 1, R: -1}, Owner: "river"},
		},
		Factions: []engine.FactionView{
			{ID: realm.FactionSand, Territory: []board.HexCoord{{Q: 0, R: -1}}},
			{ID: realm.FactionRiver, Territory: []board.HexCoord{{Q: 1, R: -1}}},
		},
	}
	in := vagrantInput([]realm.FactionID{realm.FactionSand, realm.FactionRiver}, nil)

	for seed := int64(1); seed <= 25; seed++ {
		act := New(seed).VagrantAction(state, "ash", in)
		if got := *act.GuideTarget; got != realm.FactionSand {
			t.Fatalf("seed %d: chose %q, want the idol-rich faction", seed, got)
		}
	}
}

func TestGuidancePoachesWorshippedFaction(t *testing.T) {
	// Equal idol counts, both claimable: ash's idol sits on plains where
	// brook is the incumbent, jungle is unworshipped. Taking plains costs
	// brook its worship, so plains is preferred.
	state := &engine.PublicState{
		Tiles: []engine.TileView{
			{Coord: board.HexCoord{Q: 0, R: 1}, Owner: "plains",
				Idols: []board.Idol{{Type: board.IdolSpread, Spirit: "ash"}}},
			{Coord: board.HexCoord{Q: 1, R: 0}, Owner: "jungle",
				Idols: []board.Idol{{Type: board.IdolSpread, Spirit: "cinder"}}},
		},
		Factions: []engine.FactionView{
			{ID: realm.FactionPlains, WorshipSpirit: "brook",
				Territory: []board.HexCoord{{Q: 0, R: 1}}},
			{ID: realm.FactionJungle, Territory: []board.HexCoord{{Q: 1, R: 0}}},
		},
	}
	in := vagrantInput([]realm.FactionID{realm.FactionPlains, realm.FactionJungle}, nil)

	for seed := int64(1); seed <= 25; seed++ {
		act := New(seed).VagrantAction(state, "ash", in)
		if got := *act.GuideTarget; got != realm.FactionPlains {
			t.Fatalf("seed %d: chose %q, want the poachable faction", seed, got)
		}
	}
}

func TestGuidanceFallsBackToUniform(t *testing.T) {
	// Neither faction would yield worship, so every candidate stays in the
	// pool and both must turn up across seeds.
	state := &engine.PublicState{
		Tiles: []engine.TileView{
			{Coord: board.HexCoord{Q: -1, R: 0}, Owner: "mountain",
				Idols: []board.Idol{{Type: board.IdolBattle, Spirit: "brook"}}},
			{Coord: board.HexCoord{Q: -1, R: 1}, Owner: "mesa",
				Idols: []board.Idol{{Type: board.IdolBattle, Spirit: "cinder"}}},
		},
		Factions: []engine.FactionView{
			{ID: realm.FactionMountain, WorshipSpirit: "brook",
				Territory: []board.HexCoord{{Q: -1, R: 0}}},
			{ID: realm.FactionMesa, WorshipSpirit: "cinder",
				Territory: []board.HexCoord{{Q: -1, R: 1}}},
		},
	}
	in := vagrantInput([]realm.FactionID{realm.FactionMountain, realm.FactionMesa}, nil)

	seen := make(map[realm.FactionID]bool)
	for seed := int64(1); seed <= 50; seed++ {
		act := New(seed).VagrantAction(state, "ash", in)
		seen[*act.GuideTarget] = true
	}
	if !seen[realm.FactionMountain] || !seen[realm.FactionMesa] {
		t.Fatalf("uniform fallback never chose one candidate: %v", seen)
	}
}

func TestIdolPlacementPrefersFactionBorders(t *testing.T) {
	// One target borders owned territory, the others sit in open country.
	state := &engine.PublicState{
		Tiles: []engine.TileView{
			{Coord: board.HexCoord{Q: 0, R: 0}, Owner: "mountain"},
		},
	}
	adjacent := board.HexCoord{Q: 0, R: 1}
	targets := []board.HexCoord{{Q: 3, R: 0}, adjacent, {Q: 0, R: -3}}
	in := vagrantInput(nil, targets)

	for seed := int64(1); seed <= 25; seed++ {
		act := New(seed).VagrantAction(state, "ash", in)
		if act.GuideTarget != nil {
			t.Fatalf("seed %d: guide target chosen with no guidable factions", seed)
		}
		if act.Idol == nil {
			t.Fatalf("seed %d: no idol placed", seed)
		}
		if act.Idol.At != adjacent {
			t.Fatalf("seed %d: placed at %v, want the bordering tile %v", seed, act.Idol.At, adjacent)
		}
		if !board.ValidIdolType(act.Idol.Type) {
			t.Fatalf("seed %d: unknown idol type %q", seed, act.Idol.Type)
		}
	}
}

func TestIdolPlacementFallsBackToAnyTarget(t *testing.T) {
	// No faction owns anything, so placement is uniform over the targets.
	state := &engine.PublicState{}
	targets := []board.HexCoord{{Q: 2, R: 0}, {Q: -2, R: 0}}
	in := vagrantInput(nil, targets)

	seen := make(map[board.HexCoord]bool)
	for seed := int64(1); seed <= 50; seed++ {
		act := New(seed).VagrantAction(state, "ash", in)
		seen[act.Idol.At] = true
	}
	for _, want := range targets {
		if !seen[want] {
			t.Fatalf("fallback never placed at %v: %v", want, seen)
		}
	}
}

func TestIndexPicksStayInBounds(t *testing.T) {
	c := New(7)
	hand := engine.PendingInput{Hand: []realm.AgendaType{
		realm.AgendaTrade, realm.AgendaSteal, realm.AgendaExpand,
	}}
	offers := engine.PendingInput{Offers: []engine.SpoilsOffer{
		{WarID: 1, Loser: realm.FactionMesa, Cards: []realm.AgendaType{
			realm.AgendaTrade, realm.AgendaSteal, realm.AgendaExpand, realm.AgendaChange,
		}},
		{WarID: 2, Loser: realm.FactionSand, Cards: []realm.AgendaType{
			realm.AgendaTrade, realm.AgendaTrade,
		}},
	}}

	for i := 0; i < 100; i++ {
		if idx := c.AgendaIndex(hand); idx < 0 || idx >= len(hand.Hand) {
			t.Fatalf("agenda index %d out of range", idx)
		}
		if idx := c.ChangeIndex(hand); idx < 0 || idx >= len(hand.Hand) {
			t.Fatalf("change index %d out of range", idx)
		}
		picks := c.SpoilsIndices(offers)
		if len(picks) != len(offers.Offers) {
			t.Fatalf("got %d spoils picks, want %d", len(picks), len(offers.Offers))
		}
		for j, idx := range picks {
			if idx < 0 || idx >= len(offers.Offers[j].Cards) {
				t.Fatalf("spoils pick %d: index %d out of range", j, idx)
			}
		}
	}
}

func TestEjectionSwapDrawsFromPool(t *testing.T) {
	c := New(11)
	in := engine.PendingInput{Hand: []realm.AgendaType{
		realm.AgendaTrade, realm.AgendaSteal, realm.AgendaSteal, realm.AgendaExpand,
	}}
	inPool := func(card realm.AgendaType) bool {
		for _, have := range in.Hand {
			if have == card {
				return true
			}
		}
		return false
	}

	for i := 0; i < 100; i++ {
		remove, add := c.EjectionSwap(in)
		if !inPool(remove) {
			t.Fatalf("removed %q, not in the pool", remove)
		}
		if !realm.ValidAgendaType(add) {
			t.Fatalf("added unknown agenda type %q", add)
		}
	}
}

func TestNamesAreDistinct(t *testing.T) {
	names := New(3).Names(6)
	if len(names) != 6 {
		t.Fatalf("got %d names, want 6", len(names))
	}
	known := make(map[string]bool, len(personaNames))
	for _, n := range personaNames {
		known[n] = true
	}
	seen := make(map[string]bool)
	for _, n := range names {
		if !known[n] {
			t.Errorf("name %q is not a persona name", n)
		}
		if seen[n] {
			t.Errorf("name %q repeated", n)
		}
		seen[n] = true
	}
}
