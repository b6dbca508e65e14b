// Package rooms provides the per-room execution context around one engine
// aggregate: a single-writer lock, seat tokens, live event fan-out, input
// deadlines with bot fallback, and the archive feed. Many rooms run in one
// process and share no mutable state.
// See design doc Section 10.
package rooms

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/impetus/internal/bot"
	"github.com/talgya/impetus/internal/engine"
	"github.com/talgya/impetus/internal/realm"
)

// ErrUnknownToken marks a submission or pending query whose access token
// matches no seat in the room.
var ErrUnknownToken = errors.New("unknown access token")

// ErrRoomClosed marks calls against a room the manager has shut down.
var ErrRoomClosed = errors.New("room closed")

// subscriberBuffer is the per-subscriber event batch channel capacity.
// Subscribers that fall this far behind are dropped.
const subscriberBuffer = 16

// Seat binds one spirit to its access credential. Tokens never appear in
// public state; bots hold a token like any seat so fallback play flows
// through the same submission path.
type Seat struct {
	Spirit realm.SpiritID `json:"spirit"`
	Name   string         `json:"name"`
	Token  string         `json:"-"`
	Bot    bool           `json:"bot"`
}

// Room owns one game. All engine access happens under mu; the engine itself
// is single-threaded and never blocks, so the lock is held only for rule
// resolution, never for I/O.
type Room struct {
	ID      string
	Created time.Time

	mu       sync.Mutex
	game     *engine.Game
	cfg      engine.Config
	seats    []Seat
	byToken  map[string]realm.SpiritID
	botSeats map[realm.SpiritID]bool
	chooser  *bot.Chooser
	deadline time.Duration
	gen      uint64 // bumped on every awaiting-set change; stale timers no-op
	timer    *time.Timer
	subs     map[uint64]chan []engine.Event
	nextSub  uint64
	sink     Sink
	finished bool // result persisted
	closed   bool
}

// advance is everything one locked step produced, handed to the unlocked
// side for fan-out and archiving.
type advance struct {
	events  []engine.Event
	actions []engine.ActionRecord
	over    bool
	digest  string
	winners []realm.SpiritID
}

// Seats returns the room's seats. Callers must treat tokens as secrets.
func (r *Room) Seats() []Seat {
	return append([]Seat(nil), r.seats...)
}

// Seed returns the seed the room's game was created with.
func (r *Room) Seed() int64 {
	return r.cfg.Seed
}

// spirit resolves an access token to its seat's spirit.
func (r *Room) spirit(token string) (realm.SpiritID, error) {
	if r.closed {
		return "", ErrRoomClosed
	}
	id, ok := r.byToken[token]
	if !ok {
		return "", ErrUnknownToken
	}
	return id, nil
}

// submit runs one engine submission under the lock, then lets bots play,
// re-arms the deadline, and hands the produced records out for fan-out.
func (r *Room) submit(token string, fn func(id realm.SpiritID) ([]engine.Event, error)) ([]engine.Event, error) {
	r.mu.Lock()
	id, err := r.spirit(token)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	before := len(r.game.ActionLog())
	events, err := fn(id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	adv := r.afterAdvanceLocked(before, events)
	r.mu.Unlock()

	r.dispatch(adv)
	return adv.events, nil
}

// afterAdvanceLocked runs the room-side consequences of an accepted
// engine step: bot play for any awaited bot seats, deadline re-arm, and
// collection of the new actions and events for the sink and subscribers.
func (r *Room) afterAdvanceLocked(actionsBefore int, events []engine.Event) advance {
	// The engine hands out views into its live log; copy before growing.
	all := append([]engine.Event(nil), events...)
	all = append(all, r.playBotsLocked()...)
	r.armDeadlineLocked()

	adv := advance{
		events:  all,
		actions: append([]engine.ActionRecord(nil), r.game.ActionLog()[actionsBefore:]...),
	}
	if r.game.CurrentPhase() == engine.PhaseOver && !r.finished {
		r.finished = true
		adv.over = true
		adv.digest = r.game.StateDigest()
		adv.winners = r.game.Winners()
	}
	if failed, ferr := r.game.Failed(); failed {
		slog.Error("room failed", "room", r.ID, "error", ferr)
	}
	return adv
}

// playBotsLocked submits fallback picks for every awaited bot seat,
// looping through cascades until only humans are owed or the game ends.
func (r *Room) playBotsLocked() []engine.Event {
	var out []engine.Event
	for {
		var next realm.SpiritID
		found := false
		for _, id := range r.game.AwaitedSpirits() {
			if r.botSeats[id] {
				next, found = id, true
				break
			}
		}
		if !found {
			return out
		}
		events, err := r.fallbackLocked(next)
		out = append(out, events...)
		if err != nil {
			slog.Error("bot submission rejected", "room", r.ID, "spirit", next, "error", err)
			return out
		}
	}
}

// fallbackLocked picks and submits one action for an awaited spirit. Picks
// come from the spirit's own pending options, so the engine accepts them.
func (r *Room) fallbackLocked(id realm.SpiritID) ([]engine.Event, error) {
	pending := r.game.PendingInputsFor(id)
	if len(pending) == 0 {
		return nil, fmt.Errorf("spirit %q is not awaited", id)
	}
	in := pending[0]
	switch in.Kind {
	case engine.InputVagrantAction:
		act := r.chooser.VagrantAction(r.game.PublicState(), id, in)
		return r.game.SubmitVagrantAction(id, act)
	case engine.InputAgendaChoice:
		return r.game.SubmitAgendaChoice(id, r.chooser.AgendaIndex(in))
	case engine.InputChangeChoice:
		return r.game.SubmitChangeChoice(id, r.chooser.ChangeIndex(in))
	case engine.InputEjectionReplacement:
		remove, add := r.chooser.EjectionSwap(in)
		return r.game.SubmitEjectionReplacement(id, remove, add)
	case engine.InputSpoilsChoices:
		return r.game.SubmitSpoilsChoices(id, r.chooser.SpoilsIndices(in))
	case engine.InputSpoilsChangeChoices:
		return r.game.SubmitSpoilsChangeChoices(id, r.chooser.SpoilsIndices(in))
	default:
		return nil, fmt.Errorf("no fallback for input kind %q", in.Kind)
	}
}

// armDeadlineLocked restarts the input timer for the current awaiting set.
// Any previously armed timer becomes stale through the generation bump.
func (r *Room) armDeadlineLocked() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.deadline <= 0 || r.closed {
		return
	}
	if len(r.game.AwaitedSpirits()) == 0 {
		return
	}
	gen := r.gen
	r.timer = time.AfterFunc(r.deadline, func() { r.expire(gen) })
}

// expire substitutes bot picks for every spirit still awaited when the
// input deadline lapses. Spirits first awaited by the cascade that follows
// get a fresh deadline, not an instant substitution.
func (r *Room) expire(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	before := len(r.game.ActionLog())
	var events []engine.Event
	awaited := r.game.AwaitedSpirits()
	for _, id := range awaited {
		if !r.stillAwaited(id) {
			continue
		}
		evs, err := r.fallbackLocked(id)
		events = append(events, evs...)
		if err != nil {
			slog.Error("deadline substitution rejected", "room", r.ID, "spirit", id, "error", err)
		}
	}
	slog.Info("input deadline lapsed", "room", r.ID, "spirits", awaited)
	adv := r.afterAdvanceLocked(before, events)
	r.mu.Unlock()

	r.dispatch(adv)
}

func (r *Room) stillAwaited(id realm.SpiritID) bool {
	for _, got := range r.game.AwaitedSpirits() {
		if got == id {
			return true
		}
	}
	return false
}

// dispatch feeds an advance to the archive sink and the live subscribers.
// Runs outside the room lock; sink latency never blocks submissions held
// on the lock.
func (r *Room) dispatch(adv advance) {
	if r.sink != nil {
		if len(adv.actions) > 0 {
			if err := r.sink.AppendActions(r.ID, adv.actions); err != nil {
				slog.Error("archive actions failed", "room", r.ID, "error", err)
			}
		}
		if len(adv.events) > 0 {
			if err := r.sink.AppendEvents(r.ID, adv.events); err != nil {
				slog.Error("archive events failed", "room", r.ID, "error", err)
			}
		}
		if adv.over {
			if err := r.sink.SaveResult(r.ID, adv.winners, adv.digest); err != nil {
				slog.Error("archive result failed", "room", r.ID, "error", err)
			}
		}
	}
	if len(adv.events) > 0 {
		r.broadcast(adv.events)
	}
}

// broadcast hands the event batch to every subscriber. A subscriber whose
// buffer is full is closed and dropped rather than allowed to stall the
// room.
func (r *Room) broadcast(events []engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subs {
		select {
		case ch <- events:
		default:
			delete(r.subs, id)
			close(ch)
			slog.Warn("dropped slow subscriber", "room", r.ID, "subscriber", id)
		}
	}
}

// SubscribeSince registers a live event subscriber and returns the backlog
// after seq in the same step, so no batch is missed between catch-up and
// the first channel receive.
func (r *Room) SubscribeSince(seq int) (id uint64, ch <-chan []engine.Event, backlog []engine.Event, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, nil, nil, ErrRoomClosed
	}
	r.nextSub++
	id = r.nextSub
	c := make(chan []engine.Event, subscriberBuffer)
	r.subs[id] = c
	backlog = append([]engine.Event(nil), r.game.EventsSince(seq)...)
	return id, c, backlog, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (r *Room) Unsubscribe(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.subs[id]; ok {
		delete(r.subs, id)
		close(ch)
	}
}

// close stops the timer and drops every subscriber. Held seats and state
// stay readable through the manager until the room is deleted.
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}

// SubmitVagrant submits a vagrant action for the seat holding token.
func (r *Room) SubmitVagrant(token string, act engine.VagrantAction) ([]engine.Event, error) {
	return r.submit(token, func(id realm.SpiritID) ([]engine.Event, error) {
		return r.game.SubmitVagrantAction(id, act)
	})
}

// SubmitAgenda submits an agenda hand pick for the seat holding token.
func (r *Room) SubmitAgenda(token string, index int) ([]engine.Event, error) {
	return r.submit(token, func(id realm.SpiritID) ([]engine.Event, error) {
		return r.game.SubmitAgendaChoice(id, index)
	})
}

// SubmitChange submits a change-target pick for the seat holding token.
func (r *Room) SubmitChange(token string, index int) ([]engine.Event, error) {
	return r.submit(token, func(id realm.SpiritID) ([]engine.Event, error) {
		return r.game.SubmitChangeChoice(id, index)
	})
}

// SubmitEjection submits a parting pool swap for the seat holding token.
func (r *Room) SubmitEjection(token string, remove, add realm.AgendaType) ([]engine.Event, error) {
	return r.submit(token, func(id realm.SpiritID) ([]engine.Event, error) {
		return r.game.SubmitEjectionReplacement(id, remove, add)
	})
}

// SubmitSpoils submits spoils picks for the seat holding token.
func (r *Room) SubmitSpoils(token string, indices []int) ([]engine.Event, error) {
	return r.submit(token, func(id realm.SpiritID) ([]engine.Event, error) {
		return r.game.SubmitSpoilsChoices(id, indices)
	})
}

// SubmitSpoilsChange submits change-spoils modifier picks for the seat
// holding token.
func (r *Room) SubmitSpoilsChange(token string, indices []int) ([]engine.Event, error) {
	return r.submit(token, func(id realm.SpiritID) ([]engine.Event, error) {
		return r.game.SubmitSpoilsChangeChoices(id, indices)
	})
}

// State snapshots the room's public state.
func (r *Room) State() *engine.PublicState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.PublicState()
}

// Pending returns the owed inputs for the seat holding token, private
// options included.
func (r *Room) Pending(token string) ([]engine.PendingInput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.spirit(token)
	if err != nil {
		return nil, err
	}
	return r.game.PendingInputsFor(id), nil
}

// EventsSince returns the event backlog after seq.
func (r *Room) EventsSince(seq int) []engine.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Event(nil), r.game.EventsSince(seq)...)
}

// Actions returns the accepted action log.
func (r *Room) Actions() []engine.ActionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.ActionRecord(nil), r.game.ActionLog()...)
}

// Digest returns the room's current state digest.
func (r *Room) Digest() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.game.StateDigest()
}

// Status is a room summary for listings.
type Status struct {
	ID       string           `json:"id"`
	Created  time.Time        `json:"created"`
	Turn     int              `json:"turn"`
	Phase    engine.Phase     `json:"phase"`
	Seats    []Seat           `json:"seats"`
	Winners  []realm.SpiritID `json:"winners,omitempty"`
	Failed   bool             `json:"failed,omitempty"`
	Awaiting []realm.SpiritID `json:"awaiting,omitempty"`
}

// Status summarizes the room for the room list.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	failed, _ := r.game.Failed()
	return Status{
		ID:       r.ID,
		Created:  r.Created,
		Turn:     r.game.TurnNumber(),
		Phase:    r.game.CurrentPhase(),
		Seats:    append([]Seat(nil), r.seats...),
		Winners:  r.game.Winners(),
		Failed:   failed,
		Awaiting: r.game.AwaitedSpirits(),
	}
}
