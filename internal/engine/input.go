package engine

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/impetus/internal/realm"
)

// ActionRecord is one accepted submission in a room's ordered action log.
// The room seed plus this log reproduces the room's state exactly.
type ActionRecord struct {
	Seq     int             `json:"seq"`
	Turn    int             `json:"turn"`
	Phase   Phase           `json:"phase"`
	Spirit  realm.SpiritID  `json:"spirit"`
	Kind    InputKind       `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type indexPayload struct {
	Index int `json:"index"`
}

type indicesPayload struct {
	Indices []int `json:"indices"`
}

type ejectionPayload struct {
	Remove realm.AgendaType `json:"remove"`
	Add    realm.AgendaType `json:"add"`
}

// submitGate rejects submissions no payload could make valid: failed or
// finished rooms, unknown spirits, and spirits the current step is not
// waiting on.
func (g *Game) submitGate(id realm.SpiritID, kind InputKind) error {
	if g.failed {
		return fmt.Errorf("room failed: %w", g.failure)
	}
	if g.Phase == PhaseOver {
		return invalidf(id, "the game is over")
	}
	if _, ok := g.Spirits[id]; !ok {
		return invalidf(id, "unknown spirit")
	}
	want, ok := g.awaiting[id]
	if !ok {
		return invalidf(id, "no input is awaited from you")
	}
	if want != kind {
		return invalidf(id, "awaiting %s, not %s", want, kind)
	}
	return nil
}

// record logs the accepted submission and clears the spirit's awaited
// slot.
func (g *Game) record(id realm.SpiritID, kind InputKind, payload any) {
	raw, _ := json.Marshal(payload)
	g.actions = append(g.actions, ActionRecord{
		Seq:     len(g.actions) + 1,
		Turn:    g.Turn,
		Phase:   g.Phase,
		Spirit:  id,
		Kind:    kind,
		Payload: raw,
	})
	delete(g.awaiting, id)
	g.emit(EventInputReceived, fmt.Sprintf("%s has chosen", g.Spirits[id].Name),
		map[string]any{"spirit": id, "kind": kind})
}

// finish advances resolution as far as the collected inputs allow and
// returns everything that happened since mark.
func (g *Game) finish(mark int) []Event {
	g.runUntilInput()
	return g.events[mark:]
}

// SubmitVagrantAction accepts a vagrant spirit's guidance target and idol
// placement for the current vagrant phase.
func (g *Game) SubmitVagrantAction(id realm.SpiritID, act VagrantAction) ([]Event, error) {
	if err := g.submitGate(id, InputVagrantAction); err != nil {
		return nil, err
	}
	if err := g.validateVagrantAction(id, act); err != nil {
		return nil, err
	}
	mark := len(g.events)
	g.record(id, InputVagrantAction, act)
	g.vagrantActions[id] = act
	return g.finish(mark), nil
}

// SubmitAgendaChoice accepts a guiding spirit's pick from its drawn agenda
// hand, by index.
func (g *Game) SubmitAgendaChoice(id realm.SpiritID, index int) ([]Event, error) {
	if err := g.submitGate(id, InputAgendaChoice); err != nil {
		return nil, err
	}
	hand := g.agendaHands[id]
	if index < 0 || index >= len(hand) {
		return nil, invalidf(id, "hand index %d out of range (%d cards)", index, len(hand))
	}
	mark := len(g.events)
	g.record(id, InputAgendaChoice, indexPayload{Index: index})
	g.agendaChoices[g.Spirits[id].GuidedFaction] = hand[index]
	return g.finish(mark), nil
}

// SubmitChangeChoice accepts a guiding spirit's modifier pick from its
// drawn change hand, by index.
func (g *Game) SubmitChangeChoice(id realm.SpiritID, index int) ([]Event, error) {
	if err := g.submitGate(id, InputChangeChoice); err != nil {
		return nil, err
	}
	hand := g.changeHands[id]
	if index < 0 || index >= len(hand) {
		return nil, invalidf(id, "hand index %d out of range (%d cards)", index, len(hand))
	}
	mark := len(g.events)
	g.record(id, InputChangeChoice, indexPayload{Index: index})
	g.changeChoices[g.Spirits[id].GuidedFaction] = hand[index]
	return g.finish(mark), nil
}

// SubmitEjectionReplacement accepts an ejected spirit's parting pool swap:
// one card type removed, one added, pool size preserved. The swap applies
// immediately; the ejection itself resolves with the batch.
func (g *Game) SubmitEjectionReplacement(id realm.SpiritID, remove, add realm.AgendaType) ([]Event, error) {
	if err := g.submitGate(id, InputEjectionReplacement); err != nil {
		return nil, err
	}
	if !realm.ValidAgendaType(remove) || !realm.ValidAgendaType(add) {
		return nil, invalidf(id, "unknown agenda type")
	}
	f := g.Factions[g.Spirits[id].GuidedFaction]
	if !f.HasPoolCard(remove) {
		return nil, invalidf(id, "pool of %q holds no %s card", f.ID, remove)
	}
	mark := len(g.events)
	g.record(id, InputEjectionReplacement, ejectionPayload{Remove: remove, Add: add})
	if err := f.ReplaceAgendaCard(remove, add); err != nil {
		g.fail(&InvariantError{Check: fmt.Sprintf("validated pool swap failed: %v", err)})
		return g.events[mark:], g.failure
	}
	g.emit(EventChange,
		fmt.Sprintf("%q swaps a %s card for a %s card", f.ID, remove, add),
		map[string]any{"faction": f.ID, "remove": remove, "add": add})
	return g.finish(mark), nil
}

// pendingSpoils returns the spirit's spoils entries still missing a pick.
func (g *Game) pendingSpoils(id realm.SpiritID) []*spoilsEntry {
	var out []*spoilsEntry
	for _, e := range g.spoilsQueue {
		if e.spirit == id && e.choice == "" {
			out = append(out, e)
		}
	}
	return out
}

// pendingSpoilsChanges returns the spirit's Change spoils still missing a
// modifier pick.
func (g *Game) pendingSpoilsChanges(id realm.SpiritID) []*spoilsEntry {
	var out []*spoilsEntry
	for _, e := range g.spoilsQueue {
		if e.spirit == id && e.choice == realm.AgendaChange && e.changeCards != nil && e.changeChoice == "" {
			out = append(out, e)
		}
	}
	return out
}

// SubmitSpoilsChoices accepts a guiding spirit's spoils picks, one hand
// index per won war, in the order the wars resolved.
func (g *Game) SubmitSpoilsChoices(id realm.SpiritID, indices []int) ([]Event, error) {
	if err := g.submitGate(id, InputSpoilsChoices); err != nil {
		return nil, err
	}
	pending := g.pendingSpoils(id)
	if len(indices) != len(pending) {
		return nil, invalidf(id, "%d picks for %d won wars", len(indices), len(pending))
	}
	for i, idx := range indices {
		if idx < 0 || idx >= len(pending[i].cards) {
			return nil, invalidf(id, "pick %d: index %d out of range (%d cards)", i, idx, len(pending[i].cards))
		}
	}
	mark := len(g.events)
	g.record(id, InputSpoilsChoices, indicesPayload{Indices: indices})
	for i, idx := range indices {
		pending[i].choice = pending[i].cards[idx]
	}
	return g.finish(mark), nil
}

// SubmitSpoilsChangeChoices accepts the modifier picks for a spirit's
// Change spoils, one hand index per affected war, in war order.
func (g *Game) SubmitSpoilsChangeChoices(id realm.SpiritID, indices []int) ([]Event, error) {
	if err := g.submitGate(id, InputSpoilsChangeChoices); err != nil {
		return nil, err
	}
	pending := g.pendingSpoilsChanges(id)
	if len(indices) != len(pending) {
		return nil, invalidf(id, "%d picks for %d change spoils", len(indices), len(pending))
	}
	for i, idx := range indices {
		if idx < 0 || idx >= len(pending[i].changeCards) {
			return nil, invalidf(id, "pick %d: index %d out of range (%d cards)", i, idx, len(pending[i].changeCards))
		}
	}
	mark := len(g.events)
	g.record(id, InputSpoilsChangeChoices, indicesPayload{Indices: indices})
	for i, idx := range indices {
		pending[i].changeChoice = pending[i].changeCards[idx]
	}
	return g.finish(mark), nil
}
