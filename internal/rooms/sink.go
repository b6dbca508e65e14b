package rooms

import (
	"github.com/talgya/impetus/internal/engine"
	"github.com/talgya/impetus/internal/realm"
)

// Sink receives the durable record of a room: its creation parameters, the
// ordered action log, the event stream, and the final result. The archive
// implements it; rooms treat failures as log-and-continue, play never
// stalls on storage.
type Sink interface {
	SaveRoom(id string, cfg engine.Config, seats []Seat) error
	AppendActions(id string, recs []engine.ActionRecord) error
	AppendEvents(id string, events []engine.Event) error
	SaveResult(id string, winners []realm.SpiritID, digest string) error
}
