package engine

import (
	"testing"

	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/realm"
)

func TestPublicStateSnapshot(t *testing.T) {
	g := newStepGame(t, 89, "ash", "brook")
	guideDirect(t, g, "ash", realm.FactionRiver)
	g.Factions[realm.FactionRiver].Gold = 7
	g.Spirits["ash"].VictoryTenths = 23
	g.Board.PlaceIdol(board.HexCoord{Q: 0, R: 0}, board.Idol{Type: board.IdolSpread, Spirit: "brook"})
	ripeWar(g, realm.FactionMountain, realm.FactionMesa,
		board.HexCoord{Q: -1, R: 0}, board.HexCoord{Q: -1, R: 1})
	g.awaiting["brook"] = InputVagrantAction

	ps := g.PublicState()

	if ps.Turn != 1 || ps.Phase != PhaseVagrant || ps.Threshold != DefaultThreshold {
		t.Errorf("header = turn %d phase %s threshold %d", ps.Turn, ps.Phase, ps.Threshold)
	}
	if len(ps.Tiles) != 61 {
		t.Errorf("tiles = %d, want 61", len(ps.Tiles))
	}
	if len(ps.Factions) != 6 {
		t.Fatalf("factions = %d, want 6", len(ps.Factions))
	}
	for i, fv := range ps.Factions {
		if fv.ID != g.FactionOrder[i] {
			t.Errorf("faction %d = %q, want canonical order %q", i, fv.ID, g.FactionOrder[i])
		}
	}
	if got := ps.Factions[4]; got.Gold != 7 || got.GuidingSpirit != "ash" {
		t.Errorf("river view = %+v, want gold 7 guided by ash", got)
	}
	if len(ps.Spirits) != 2 || ps.Spirits[0].ID != "ash" || ps.Spirits[1].ID != "brook" {
		t.Fatalf("spirits = %+v, want seat order", ps.Spirits)
	}
	if sv := ps.Spirits[0]; sv.VictoryPoints != 2 || sv.VictoryTenths != 23 {
		t.Errorf("ash view = %d points / %d tenths, want 2 / 23", sv.VictoryPoints, sv.VictoryTenths)
	}
	if len(ps.Wars) != 1 || ps.Wars[0].Battleground == nil {
		t.Fatalf("wars = %+v, want the ripe war with its battleground", ps.Wars)
	}
	if len(ps.Awaiting) != 1 || ps.Awaiting[0].Spirit != "brook" || ps.Awaiting[0].Kind != InputVagrantAction {
		t.Errorf("awaiting = %+v, want brook's vagrant action", ps.Awaiting)
	}

	// The snapshot shares nothing with live state.
	ps.Factions[0].Pool[0] = realm.AgendaChange
	ps.Factions[0].Regard[realm.FactionMesa] = 99
	ps.Wars[0].Battleground.A = board.HexCoord{Q: 4, R: 0}
	center := board.HexCoord{Q: 0, R: 0}
	for i := range ps.Tiles {
		if ps.Tiles[i].Coord == center {
			ps.Tiles[i].Idols[0].Spirit = "forged"
		}
	}
	mountain := g.Factions[realm.FactionMountain]
	if mountain.Pool[0] != realm.AgendaTrade {
		t.Error("snapshot pool aliases the live pool")
	}
	if mountain.RegardToward(realm.FactionMesa) != 0 {
		t.Error("snapshot regard aliases the live regard")
	}
	if g.Wars[0].Battleground.A != (board.HexCoord{Q: -1, R: 0}) {
		t.Error("snapshot battleground aliases the live war")
	}
	if g.Board.IdolsAt(center)[0].Spirit != "brook" {
		t.Error("snapshot idols alias the live board")
	}
}

func TestPendingInputsForUnawaited(t *testing.T) {
	g := newStepGame(t, 89, "ash")
	if got := g.PendingInputsFor("ash"); got != nil {
		t.Errorf("pending inputs = %+v for an unawaited spirit, want none", got)
	}
	if got := g.PendingInputsFor("nobody"); got != nil {
		t.Errorf("pending inputs = %+v for an unknown spirit, want none", got)
	}
}

func TestEventsSince(t *testing.T) {
	g := newStepGame(t, 97)
	g.emit(EventPhaseStart, "one", nil)
	g.emit(EventPhaseStart, "two", nil)
	g.emit(EventPhaseStart, "three", nil)

	all := g.EventLog()
	if len(all) != 3 {
		t.Fatalf("events = %d, want 3", len(all))
	}
	tail := g.EventsSince(all[0].Seq)
	if len(tail) != 2 || tail[0].Description != "two" {
		t.Errorf("events since %d = %+v, want the last two", all[0].Seq, tail)
	}
	if got := g.EventsSince(all[2].Seq); got != nil {
		t.Errorf("events past the end = %+v, want none", got)
	}
	if got := g.EventsSince(0); len(got) != 3 {
		t.Errorf("events since 0 = %d, want all 3", len(got))
	}
}

func TestStateDigest(t *testing.T) {
	build := func() *Game {
		g := newStepGame(t, 101, "ash")
		g.Factions[realm.FactionSand].Gold = 4
		return g
	}
	a, b := build(), build()
	if a.StateDigest() != b.StateDigest() {
		t.Fatal("identically built rooms digest differently")
	}
	if d1, d2 := a.StateDigest(), a.StateDigest(); d1 != d2 {
		t.Fatal("digest of an untouched room drifted")
	}
	b.Factions[realm.FactionSand].Gold++
	if a.StateDigest() == b.StateDigest() {
		t.Fatal("digest blind to a gold change")
	}
}
