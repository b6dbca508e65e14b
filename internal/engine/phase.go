package engine

import (
	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/realm"
)

// Phase names the top-level turn phases. Cleanup appears in events but the
// game never rests there; it runs straight through into the next Vagrant.
type Phase string

const (
	PhaseVagrant Phase = "vagrant"
	PhaseAgenda  Phase = "agenda"
	PhaseWar     Phase = "war"
	PhaseScoring Phase = "scoring"
	PhaseCleanup Phase = "cleanup"
	PhaseOver    Phase = "over"
)

// InputKind names the submission a suspended step is waiting for.
type InputKind string

const (
	InputVagrantAction       InputKind = "vagrantAction"
	InputAgendaChoice        InputKind = "agendaChoice"
	InputChangeChoice        InputKind = "changeChoice"
	InputEjectionReplacement InputKind = "ejectionReplacement"
	InputSpoilsChoices       InputKind = "spoilsChoices"
	InputSpoilsChangeChoices InputKind = "spoilsChangeChoices"
)

// stage tracks which collection barrier the game sits at. Each stage's
// resolver runs once its awaited inputs are all in; a stage with nothing to
// wait for resolves immediately.
type stage uint8

const (
	stageVagrant stage = iota
	stageAgenda
	stageChange
	stageSpoils
	stageSpoilsChange
	stageEjection
)

// PendingInput describes one required submission for a spirit, including
// the private options only that spirit may see.
type PendingInput struct {
	Kind InputKind `json:"kind"`

	// Vagrant options.
	GuidableFactions []realm.FactionID `json:"guidableFactions,omitempty"`
	IdolTargets      []board.HexCoord  `json:"idolTargets,omitempty"`
	IdolTypes        []board.IdolType  `json:"idolTypes,omitempty"`

	// Drawn hand for agenda and change choices.
	Hand []realm.AgendaType `json:"hand,omitempty"`

	// Spoils offers, one per won war, in resolution order.
	Offers []SpoilsOffer `json:"offers,omitempty"`
}

// SpoilsOffer is one war's spoils awaiting a pick.
type SpoilsOffer struct {
	WarID uint64             `json:"warId"`
	Loser realm.FactionID    `json:"loser"`
	Cards []realm.AgendaType `json:"cards"`
}

// runUntilInput advances the stage machine until a step suspends on
// external input or the game ends. Submissions call this after recording
// their input; resolution is pure once a stage's input set is complete.
func (g *Game) runUntilInput() {
	for len(g.awaiting) == 0 && g.Phase != PhaseOver && !g.failed {
		if g.Turn > turnLimit {
			g.fail(&InvariantError{Check: "turn limit exceeded without a winner"})
			return
		}
		switch g.stage {
		case stageVagrant:
			g.resolveVagrant()
			g.beginAgenda()
		case stageAgenda:
			g.prepareChanges()
		case stageChange:
			g.resolveAgenda()
			g.beginWar()
		case stageSpoils:
			g.prepareSpoilsChanges()
		case stageSpoilsChange:
			g.finalizeSpoils()
			g.beginScoring()
		case stageEjection:
			g.processEjections()
			g.cleanup()
			g.beginVagrant()
		}
	}
}
