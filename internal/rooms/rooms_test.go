package rooms

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/talgya/impetus/internal/engine"
	"github.com/talgya/impetus/internal/realm"
)

// recordingSink collects archive calls for inspection.
type recordingSink struct {
	mu      sync.Mutex
	saved   []string
	actions int
	events  int
	results int
}

func (s *recordingSink) SaveRoom(id string, cfg engine.Config, seats []Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, id)
	return nil
}

func (s *recordingSink) AppendActions(id string, recs []engine.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions += len(recs)
	return nil
}

func (s *recordingSink) AppendEvents(id string, events []engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events += len(events)
	return nil
}

func (s *recordingSink) SaveResult(id string, winners []realm.SpiritID, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results++
	return nil
}

func (s *recordingSink) counts() (saved, actions, events, results int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved), s.actions, s.events, s.results
}

func tokenFor(t *testing.T, r *Room, id realm.SpiritID) string {
	t.Helper()
	for _, s := range r.Seats() {
		if s.Spirit == id {
			return s.Token
		}
	}
	t.Fatalf("no seat for spirit %q", id)
	return ""
}

func seatIndex(t *testing.T, r *Room, id realm.SpiritID) int {
	t.Helper()
	for i, s := range r.Seats() {
		if s.Spirit == id {
			return i
		}
	}
	t.Fatalf("no seat for spirit %q", id)
	return -1
}

// driveRoom plays every awaited human with fixed seat-indexed picks until
// the target turn or game end. Bot seats play themselves.
func driveRoom(t *testing.T, r *Room, turns int) {
	t.Helper()
	start := r.Status().Turn
	for i := 0; i < 10000; i++ {
		st := r.Status()
		if st.Phase == engine.PhaseOver || st.Turn >= start+turns {
			return
		}
		if st.Failed {
			t.Fatalf("room failed while driving")
		}
		if len(st.Awaiting) == 0 {
			t.Fatalf("room suspended with nothing awaited")
		}
		id := st.Awaiting[0]
		token := tokenFor(t, r, id)
		seat := seatIndex(t, r, id)
		pending, err := r.Pending(token)
		if err != nil {
			t.Fatalf("pending for %q: %v", id, err)
		}
		if len(pending) == 0 {
			t.Fatalf("awaited spirit %q has no pending input", id)
		}
		in := pending[0]
		switch in.Kind {
		case engine.InputVagrantAction:
			var act engine.VagrantAction
			if n := len(in.GuidableFactions); n > 0 {
				act.GuideTarget = &in.GuidableFactions[seat%n]
			}
			if n := len(in.IdolTargets); n > 0 && len(in.IdolTypes) > 0 {
				act.Idol = &engine.IdolPlacement{
					Type: in.IdolTypes[seat%len(in.IdolTypes)],
					At:   in.IdolTargets[seat%n],
				}
			}
			_, err = r.SubmitVagrant(token, act)
		case engine.InputAgendaChoice:
			_, err = r.SubmitAgenda(token, 0)
		case engine.InputChangeChoice:
			_, err = r.SubmitChange(token, 0)
		case engine.InputEjectionReplacement:
			_, err = r.SubmitEjection(token, in.Hand[0], realm.AgendaTrade)
		case engine.InputSpoilsChoices:
			_, err = r.SubmitSpoils(token, make([]int, len(in.Offers)))
		case engine.InputSpoilsChangeChoices:
			_, err = r.SubmitSpoilsChange(token, make([]int, len(in.Offers)))
		default:
			t.Fatalf("unexpected input kind %q", in.Kind)
		}
		if err != nil {
			t.Fatalf("submission for %q (%s): %v", id, in.Kind, err)
		}
	}
	t.Fatalf("room did not reach turn %d", start+turns)
}

func TestCreateRoomSeats(t *testing.T) {
	m := NewManager(0, nil)
	r, err := m.CreateRoom(Params{
		Players: []string{"Ash", "Brook"},
		Bots:    2,
		Seed:    1234,
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	seats := r.Seats()
	if len(seats) != 4 {
		t.Fatalf("got %d seats, want 4", len(seats))
	}
	if seats[0].Spirit != "ash" || seats[1].Spirit != "brook" {
		t.Fatalf("human seats %q, %q", seats[0].Spirit, seats[1].Spirit)
	}
	tokens := make(map[string]bool)
	for _, s := range seats {
		if s.Token == "" {
			t.Fatalf("seat %q has no token", s.Spirit)
		}
		if tokens[s.Token] {
			t.Fatalf("token reused across seats")
		}
		tokens[s.Token] = true
	}
	for _, s := range seats[2:] {
		if !s.Bot {
			t.Errorf("seat %q not flagged as bot", s.Spirit)
		}
		if !strings.HasPrefix(string(s.Spirit), "bot-") {
			t.Errorf("bot seat id %q lacks the bot- prefix", s.Spirit)
		}
		if s.Name == "" {
			t.Errorf("bot seat %q has no persona name", s.Spirit)
		}
	}
	if r.Seed() != 1234 {
		t.Fatalf("seed %d, want 1234", r.Seed())
	}

	// Bots act at creation, so only the humans stay awaited.
	st := r.Status()
	if len(st.Awaiting) != 2 {
		t.Fatalf("awaiting %v, want the two humans", st.Awaiting)
	}
	for _, id := range st.Awaiting {
		if id != "ash" && id != "brook" {
			t.Fatalf("awaited %q, want a human seat", id)
		}
	}
	if got := len(r.State().Spirits); got != 4 {
		t.Fatalf("public state has %d spirits, want 4", got)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	m := NewManager(0, nil)
	cases := []struct {
		name string
		p    Params
		want string
	}{
		{"no players", Params{Bots: 3}, "at least one player"},
		{"negative bots", Params{Players: []string{"Ash"}, Bots: -1}, "bot count"},
		{"too many seats", Params{Players: []string{"A", "B", "C", "D"}, Bots: 3}, "exceeds"},
		{"duplicate names", Params{Players: []string{"Ash", "ash"}}, "duplicate"},
		{"unusable name", Params{Players: []string{"!!!"}}, "no usable id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.CreateRoom(tc.p); err == nil {
				t.Fatalf("created despite %s", tc.name)
			} else if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSubmitTokenGate(t *testing.T) {
	m := NewManager(0, nil)
	r, err := m.CreateRoom(Params{Players: []string{"Ash"}, Bots: 1, Seed: 7})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if _, err := r.SubmitAgenda("no-such-token", 0); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("bogus token error = %v, want ErrUnknownToken", err)
	}

	// Right token, wrong input kind: the engine's rejection passes through.
	token := tokenFor(t, r, "ash")
	if _, err := r.SubmitAgenda(token, 0); !errors.Is(err, engine.ErrInvalidAction) {
		t.Fatalf("wrong-kind error = %v, want ErrInvalidAction", err)
	}

	// A rejection leaves the seat awaited.
	st := r.Status()
	if len(st.Awaiting) != 1 || st.Awaiting[0] != "ash" {
		t.Fatalf("awaiting %v after rejection, want [ash]", st.Awaiting)
	}
}

func TestHumanSubmissionAdvances(t *testing.T) {
	m := NewManager(0, nil)
	r, err := m.CreateRoom(Params{Players: []string{"Ash"}, Bots: 2, Seed: 21})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	before := len(r.Actions())

	driveRoom(t, r, 2)

	if got := len(r.Actions()); got <= before {
		t.Fatalf("action log did not grow: %d -> %d", before, got)
	}
	if r.Status().Turn < 3 {
		t.Fatalf("turn %d after driving two turns", r.Status().Turn)
	}
}

func TestRoomDeterminism(t *testing.T) {
	build := func() *Room {
		m := NewManager(0, nil)
		r, err := m.CreateRoom(Params{Players: []string{"Ash", "Brook"}, Bots: 1, Seed: 4242})
		if err != nil {
			t.Fatalf("create room: %v", err)
		}
		return r
	}

	a, b := build(), build()
	driveRoom(t, a, 5)
	driveRoom(t, b, 5)

	if a.Digest() != b.Digest() {
		t.Fatalf("same seed and picks, different digests")
	}
	if la, lb := len(a.Actions()), len(b.Actions()); la != lb {
		t.Fatalf("action logs differ: %d vs %d", la, lb)
	}
}

func TestSinkReceivesRecords(t *testing.T) {
	sink := &recordingSink{}
	m := NewManager(0, sink)
	r, err := m.CreateRoom(Params{Players: []string{"Ash"}, Bots: 2, Seed: 33})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	saved, actions, events, _ := sink.counts()
	if saved != 1 {
		t.Fatalf("SaveRoom called %d times, want 1", saved)
	}
	if actions == 0 {
		t.Fatalf("bot submissions at creation were not archived")
	}
	if events == 0 {
		t.Fatalf("creation events were not archived")
	}

	driveRoom(t, r, 1)
	_, after, _, _ := sink.counts()
	if after <= actions {
		t.Fatalf("driven submissions were not archived: %d -> %d", actions, after)
	}
}

func TestSubscribeStream(t *testing.T) {
	m := NewManager(0, nil)
	r, err := m.CreateRoom(Params{Players: []string{"Ash", "Brook"}, Bots: 0, Seed: 55})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	id, ch, backlog, err := r.SubscribeSince(0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(backlog) == 0 {
		t.Fatalf("no backlog for a fresh room")
	}
	if len(backlog) != len(r.EventsSince(0)) {
		t.Fatalf("backlog misses events: %d vs %d", len(backlog), len(r.EventsSince(0)))
	}

	driveRoom(t, r, 1)

	select {
	case batch := <-ch:
		if len(batch) == 0 {
			t.Fatalf("empty event batch")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event batch after submissions")
	}

	r.Unsubscribe(id)
	for {
		if _, open := <-ch; !open {
			break
		}
	}
}

func TestDeadlineSubstitutesBotPicks(t *testing.T) {
	m := NewManager(0, nil)
	t.Cleanup(m.Shutdown)
	r, err := m.CreateRoom(Params{
		Players:  []string{"Ash"},
		Bots:     1,
		Seed:     77,
		Deadline: 25 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	before := len(r.Actions())

	deadline := time.Now().Add(5 * time.Second)
	for len(r.Actions()) <= before {
		if time.Now().After(deadline) {
			t.Fatalf("deadline never substituted a pick")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The substituted pick came from the idle human's seat.
	found := false
	for _, rec := range r.Actions()[before:] {
		if rec.Spirit == "ash" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no substituted action for the idle seat")
	}
}

func TestShutdownClosesRooms(t *testing.T) {
	m := NewManager(0, nil)
	r, err := m.CreateRoom(Params{Players: []string{"Ash"}, Bots: 0, Seed: 9})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	token := tokenFor(t, r, "ash")
	m.Shutdown()

	if _, err := r.SubmitAgenda(token, 0); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("submit after shutdown = %v, want ErrRoomClosed", err)
	}
	if _, _, _, err := r.SubscribeSince(0); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("subscribe after shutdown = %v, want ErrRoomClosed", err)
	}
	if _, err := r.Pending(token); !errors.Is(err, ErrRoomClosed) {
		t.Fatalf("pending after shutdown = %v, want ErrRoomClosed", err)
	}
}

func TestManagerListAndGet(t *testing.T) {
	m := NewManager(0, nil)
	a, err := m.CreateRoom(Params{Players: []string{"Ash"}, Seed: 1})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	b, err := m.CreateRoom(Params{Players: []string{"Brook"}, Seed: 2})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if _, ok := m.Get(a.ID); !ok {
		t.Fatalf("room %q not found", a.ID)
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatalf("found a room that was never created")
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("listed %d rooms, want 2", len(list))
	}
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("list order %q, %q; want oldest first", list[0].ID, list[1].ID)
	}
	if list[0].Turn < 2 {
		t.Fatalf("status turn %d, want the opened game", list[0].Turn)
	}
}
