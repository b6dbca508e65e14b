package archive

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/talgya/impetus/internal/engine"
	"github.com/talgya/impetus/internal/realm"
	"github.com/talgya/impetus/internal/rooms"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "impetus.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRoomRoundTrip(t *testing.T) {
	st := openStore(t)

	cfg := engine.Config{
		Spirits: []engine.SpiritSeat{
			{ID: "ash", Name: "Ash"},
			{ID: "bot-grem", Name: "Grem"},
		},
		Threshold: 12,
		Seed:      991,
	}
	seats := []rooms.Seat{
		{Spirit: "ash", Name: "Ash", Token: "secret-a"},
		{Spirit: "bot-grem", Name: "Grem", Token: "secret-b", Bot: true},
	}
	if err := st.SaveRoom("room-1", cfg, seats); err != nil {
		t.Fatalf("save room: %v", err)
	}

	recs := []engine.ActionRecord{
		{Seq: 1, Turn: 2, Phase: engine.PhaseVagrant, Spirit: "ash",
			Kind: engine.InputVagrantAction, Payload: json.RawMessage(`{"guideTarget":"mesa"}`)},
		{Seq: 2, Turn: 2, Phase: engine.PhaseVagrant, Spirit: "bot-grem",
			Kind: engine.InputVagrantAction, Payload: json.RawMessage(`{"guideTarget":"sand"}`)},
	}
	if err := st.AppendActions("room-1", recs); err != nil {
		t.Fatalf("append actions: %v", err)
	}

	gotCfg, gotRecs, err := st.LoadRoom("room-1")
	if err != nil {
		t.Fatalf("load room: %v", err)
	}
	if gotCfg.Seed != 991 || gotCfg.Threshold != 12 {
		t.Fatalf("config roundtrip: seed %d threshold %d", gotCfg.Seed, gotCfg.Threshold)
	}
	if len(gotCfg.Spirits) != 2 || gotCfg.Spirits[0].ID != "ash" {
		t.Fatalf("config spirits roundtrip: %+v", gotCfg.Spirits)
	}
	if len(gotRecs) != 2 {
		t.Fatalf("got %d actions, want 2", len(gotRecs))
	}
	for i, rec := range gotRecs {
		want := recs[i]
		if rec.Seq != want.Seq || rec.Spirit != want.Spirit || rec.Kind != want.Kind {
			t.Fatalf("action %d roundtrip: %+v", i, rec)
		}
		if string(rec.Payload) != string(want.Payload) {
			t.Fatalf("action %d payload %s, want %s", i, rec.Payload, want.Payload)
		}
	}

	if _, _, err := st.LoadRoom("missing"); err == nil {
		t.Fatalf("loaded a room that was never saved")
	}
}

func TestResultRoundTrip(t *testing.T) {
	st := openStore(t)

	if err := st.SaveResult("room-2", []realm.SpiritID{"ash", "brook"}, "digest-abc"); err != nil {
		t.Fatalf("save result: %v", err)
	}
	res, err := st.LoadResult("room-2")
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if res.Digest != "digest-abc" {
		t.Fatalf("digest %q", res.Digest)
	}
	if len(res.Winners) != 2 || res.Winners[0] != "ash" {
		t.Fatalf("winners %v", res.Winners)
	}
	if res.FinishedAt == "" {
		t.Fatalf("no finish timestamp")
	}

	if _, err := st.LoadResult("missing"); err == nil {
		t.Fatalf("loaded a result that was never saved")
	}
}

func TestRoomIDs(t *testing.T) {
	st := openStore(t)
	cfg := engine.Config{Spirits: []engine.SpiritSeat{{ID: "ash", Name: "Ash"}}, Seed: 1}

	if err := st.SaveRoom("room-a", cfg, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.SaveRoom("room-b", cfg, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	ids, err := st.RoomIDs()
	if err != nil {
		t.Fatalf("room ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("listed %d rooms, want 2", len(ids))
	}
	seen := map[string]bool{ids[0]: true, ids[1]: true}
	if !seen["room-a"] || !seen["room-b"] {
		t.Fatalf("listing %v misses a room", ids)
	}
}

func TestRecentEvents(t *testing.T) {
	st := openStore(t)

	events := []engine.Event{
		{Seq: 1, Turn: 2, Phase: engine.PhaseVagrant, Type: engine.EventTurnStart, Description: "turn 2"},
		{Seq: 2, Turn: 2, Phase: engine.PhaseVagrant, Type: engine.EventGuidanceStarted,
			Description: "ash guides mesa", Meta: map[string]any{"faction": "mesa"}},
		{Seq: 3, Turn: 2, Phase: engine.PhaseAgenda, Type: engine.EventAgendaChosen, Description: "mesa trades"},
	}
	if err := st.AppendEvents("room-3", events); err != nil {
		t.Fatalf("append events: %v", err)
	}

	got, err := st.RecentEvents("room-3", 2)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Seq != 3 || got[1].Seq != 2 {
		t.Fatalf("order %d, %d; want newest first", got[0].Seq, got[1].Seq)
	}
	if got[1].Meta["faction"] != "mesa" {
		t.Fatalf("meta roundtrip: %v", got[1].Meta)
	}
}

// driveHuman plays every awaited human seat with fixed picks until the
// target turn, leaving a realistic action log in the sink.
func driveHuman(t *testing.T, r *rooms.Room, turns int) {
	t.Helper()
	tokens := make(map[realm.SpiritID]string)
	for _, s := range r.Seats() {
		tokens[s.Spirit] = s.Token
	}
	start := r.Status().Turn
	for i := 0; i < 10000; i++ {
		st := r.Status()
		if st.Phase == engine.PhaseOver || st.Turn >= start+turns {
			return
		}
		if len(st.Awaiting) == 0 {
			t.Fatalf("room suspended with nothing awaited")
		}
		id := st.Awaiting[0]
		pending, err := r.Pending(tokens[id])
		if err != nil || len(pending) == 0 {
			t.Fatalf("pending for %q: %v", id, err)
		}
		in := pending[0]
		switch in.Kind {
		case engine.InputVagrantAction:
			var act engine.VagrantAction
			if len(in.GuidableFactions) > 0 {
				act.GuideTarget = &in.GuidableFactions[0]
			}
			if len(in.IdolTargets) > 0 && len(in.IdolTypes) > 0 {
				act.Idol = &engine.IdolPlacement{Type: in.IdolTypes[0], At: in.IdolTargets[0]}
			}
			_, err = r.SubmitVagrant(tokens[id], act)
		case engine.InputAgendaChoice:
			_, err = r.SubmitAgenda(tokens[id], 0)
		case engine.InputChangeChoice:
			_, err = r.SubmitChange(tokens[id], 0)
		case engine.InputEjectionReplacement:
			_, err = r.SubmitEjection(tokens[id], in.Hand[0], realm.AgendaTrade)
		case engine.InputSpoilsChoices:
			_, err = r.SubmitSpoils(tokens[id], make([]int, len(in.Offers)))
		case engine.InputSpoilsChangeChoices:
			_, err = r.SubmitSpoilsChange(tokens[id], make([]int, len(in.Offers)))
		}
		if err != nil {
			t.Fatalf("submission for %q (%s): %v", id, in.Kind, err)
		}
	}
	t.Fatalf("room did not reach turn %d", start+turns)
}

func TestStoredRoomReplaysToLiveDigest(t *testing.T) {
	st := openStore(t)
	m := rooms.NewManager(0, st)

	r, err := m.CreateRoom(rooms.Params{Players: []string{"Ash"}, Bots: 2, Seed: 640})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	driveHuman(t, r, 3)

	cfg, recs, err := st.LoadRoom(r.ID)
	if err != nil {
		t.Fatalf("load room: %v", err)
	}
	if len(recs) != len(r.Actions()) {
		t.Fatalf("stored %d actions, live log has %d", len(recs), len(r.Actions()))
	}

	g, err := engine.Replay(cfg, recs)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got, want := g.StateDigest(), r.Digest(); got != want {
		t.Fatalf("replayed digest differs from the live room")
	}
}
