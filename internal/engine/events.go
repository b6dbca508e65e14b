package engine

// Event is one entry of a room's public record. Events are emitted only
// during resolution, after every required input for a step is in, so they
// reveal submitted choices and computed effects but never undrawn options.
type Event struct {
	Seq         int            `json:"seq"`
	Turn        int            `json:"turn"`
	Phase       Phase          `json:"phase"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Event types.
const (
	EventTurnStart         = "turn_start"
	EventPhaseStart        = "phase_start"
	EventAwaiting          = "awaiting_input"
	EventInputReceived     = "input_received"
	EventVagrantSkipped    = "vagrant_skipped"
	EventIdolPlaced        = "idol_placed"
	EventGuidanceStarted   = "guidance_started"
	EventGuidanceContested = "guidance_contested"
	EventWorship           = "worship_changed"
	EventAgendaChosen      = "agenda_chosen"
	EventTrade             = "trade"
	EventSteal             = "steal"
	EventExpand            = "expand"
	EventExpandFailed      = "expand_failed"
	EventExpandContested   = "expand_contested"
	EventChange            = "change"
	EventWarErupted        = "war_erupted"
	EventWarRipened        = "war_ripened"
	EventWarResolved       = "war_resolved"
	EventWarCancelled      = "war_cancelled"
	EventSpoilsResolved    = "spoils_resolved"
	EventEliminated        = "eliminated"
	EventEjected           = "ejected"
	EventScored            = "scored"
	EventGameOver          = "game_over"
)

// emit appends an event to the room record.
func (g *Game) emit(eventType, description string, meta map[string]any) {
	g.eventSeq++
	g.events = append(g.events, Event{
		Seq:         g.eventSeq,
		Turn:        g.Turn,
		Phase:       g.Phase,
		Type:        eventType,
		Description: description,
		Meta:        meta,
	})
}
