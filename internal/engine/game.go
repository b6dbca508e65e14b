// Package engine is the authoritative rules engine for an Impetus room: the
// turn-phase state machine, agenda resolution pipeline, war lifecycle, and
// worship scoring over the shared world model. One Game per room; callers
// serialize access (single writer, see design doc Section 10). All
// randomness flows through the room's seeded entropy source, so a room
// replays identically from its seed and ordered action log.
// See design doc Section 4.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/impetus/internal/board"
	"github.com/talgya/impetus/internal/entropy"
	"github.com/talgya/impetus/internal/realm"
)

const (
	// DefaultThreshold is the victory-point total that ends the game.
	DefaultThreshold = 10

	// DefaultBoardSide is the hexagon side length of the standard map.
	DefaultBoardSide = 5

	// DefaultOpeningTurns is the number of fully automated turns played
	// before spirits act.
	DefaultOpeningTurns = 1

	// turnLimit ends stalled rooms where no spirit can ever act again and
	// no faction accrues points.
	turnLimit = 10000
)

// startPositions lists the six ring-1 start tiles in presentation order
// (left to right, top to bottom in a flat layout). The faction assigned to
// each position is shuffled per room; the canonical faction order follows
// the positions.
var startPositions = [6]board.HexCoord{
	{Q: -1, R: 0}, {Q: -1, R: 1}, {Q: 0, R: -1},
	{Q: 0, R: 1}, {Q: 1, R: -1}, {Q: 1, R: 0},
}

// SpiritSeat names one player slot at game creation.
type SpiritSeat struct {
	ID   realm.SpiritID `json:"id"`
	Name string         `json:"name"`
}

// Config carries room creation parameters. Zero values take defaults.
type Config struct {
	Spirits      []SpiritSeat `json:"spirits"`
	Threshold    int          `json:"threshold"`    // victory points to win
	Seed         int64        `json:"seed"`         // 0 draws a fresh seed
	OpeningTurns int          `json:"openingTurns"` // -1 disables the automated opening
	BoardSide    int          `json:"boardSide"`
}

// TurnDelta accumulates one faction's scoring inputs for the current turn.
// The orchestrator credits these as effects resolve; scoring never re-diffs
// final state.
type TurnDelta struct {
	GoldGained      int `json:"goldGained"`
	TerritoryGained int `json:"territoryGained"`
	WarsWon         int `json:"warsWon"`
}

// Game is the root aggregate for one room. Fields are exported for queries
// and tests; all mutation goes through the engine's own resolution code.
type Game struct {
	Board        *board.Board
	Factions     map[realm.FactionID]*realm.Faction
	FactionOrder []realm.FactionID
	Spirits      map[realm.SpiritID]*realm.Spirit
	SpiritOrder  []realm.SpiritID
	Wars         []*War
	Turn         int
	Phase        Phase
	Threshold    int

	src    *entropy.Source
	warSeq uint64

	stage    stage
	awaiting map[realm.SpiritID]InputKind

	// Vagrant collection state.
	vagrantActions map[realm.SpiritID]VagrantAction
	cooldowns      map[realm.SpiritID]map[realm.FactionID]bool

	// Agenda collection state.
	agendaHands   map[realm.SpiritID][]realm.AgendaType
	agendaChoices map[realm.FactionID]realm.AgendaType
	changeHands   map[realm.SpiritID][]realm.AgendaType
	changeChoices map[realm.FactionID]realm.AgendaType
	tradedNow     map[realm.FactionID]bool // ordinary traders this turn, for spoils trade

	// War collection state, in war resolution order.
	spoilsQueue []*spoilsEntry

	// Factions whose elimination cascade has run.
	elimDone map[realm.FactionID]bool

	// Ejection collection state.
	ejecting map[realm.SpiritID]bool

	deltas  map[realm.FactionID]*TurnDelta
	winners []realm.SpiritID

	events   []Event
	eventSeq int
	actions  []ActionRecord

	failed  bool
	failure error
}

// NewGame creates a room's game: painted board, seeded faction placement,
// vagrant spirits, and the automated opening turn(s) played through. The
// returned game is suspended at the first input it needs.
func NewGame(cfg Config) (*Game, error) {
	if len(cfg.Spirits) == 0 {
		return nil, fmt.Errorf("new game: no spirits")
	}
	if len(cfg.Spirits) > len(realm.FactionIDs) {
		return nil, fmt.Errorf("new game: %d spirits exceeds %d seats", len(cfg.Spirits), len(realm.FactionIDs))
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Threshold < 1 {
		return nil, fmt.Errorf("new game: threshold %d", cfg.Threshold)
	}
	if cfg.BoardSide == 0 {
		cfg.BoardSide = DefaultBoardSide
	}
	if cfg.BoardSide < 2 {
		return nil, fmt.Errorf("new game: board side %d", cfg.BoardSide)
	}
	if cfg.Seed == 0 {
		cfg.Seed = entropy.FreshSeed()
	}
	opening := cfg.OpeningTurns
	if opening == 0 {
		opening = DefaultOpeningTurns
	} else if opening < 0 {
		opening = 0
	}

	g := &Game{
		Board:          board.NewBoard(cfg.BoardSide),
		Factions:       make(map[realm.FactionID]*realm.Faction, len(realm.FactionIDs)),
		Spirits:        make(map[realm.SpiritID]*realm.Spirit, len(cfg.Spirits)),
		Turn:           1,
		Phase:          PhaseVagrant,
		Threshold:      cfg.Threshold,
		src:            entropy.NewSource(cfg.Seed),
		awaiting:       make(map[realm.SpiritID]InputKind),
		vagrantActions: make(map[realm.SpiritID]VagrantAction),
		cooldowns:      make(map[realm.SpiritID]map[realm.FactionID]bool),
		agendaHands:    make(map[realm.SpiritID][]realm.AgendaType),
		agendaChoices:  make(map[realm.FactionID]realm.AgendaType),
		changeHands:    make(map[realm.SpiritID][]realm.AgendaType),
		changeChoices:  make(map[realm.FactionID]realm.AgendaType),
		tradedNow:      make(map[realm.FactionID]bool),
		elimDone:       make(map[realm.FactionID]bool),
		ejecting:       make(map[realm.SpiritID]bool),
		deltas:         make(map[realm.FactionID]*TurnDelta),
	}

	board.PaintTerrain(g.Board, cfg.Seed)

	// Shuffle which faction starts at which ring-1 position; canonical
	// faction order follows the positions left to right.
	perm := g.src.Perm(len(startPositions))
	g.FactionOrder = make([]realm.FactionID, len(realm.FactionIDs))
	for i, id := range realm.FactionIDs {
		f := realm.NewFaction(id)
		g.Factions[id] = f
		g.deltas[id] = &TurnDelta{}
		start := startPositions[perm[i]]
		g.FactionOrder[perm[i]] = id
		g.Board.Get(start).Terrain = f.Habitat
		g.claimTile(f, start)
	}
	// Start tiles are endowment, not expansion.
	for _, d := range g.deltas {
		d.TerritoryGained = 0
	}

	for _, seat := range cfg.Spirits {
		if seat.ID == "" {
			return nil, fmt.Errorf("new game: empty spirit id")
		}
		if _, dup := g.Spirits[seat.ID]; dup {
			return nil, fmt.Errorf("new game: duplicate spirit id %q", seat.ID)
		}
		g.Spirits[seat.ID] = realm.NewSpirit(seat.ID, seat.Name)
		g.SpiritOrder = append(g.SpiritOrder, seat.ID)
	}

	g.emit(EventTurnStart, fmt.Sprintf("turn %d begins", g.Turn), nil)
	for i := 0; i < opening; i++ {
		g.playAutomatedTurn()
	}
	g.beginVagrant()
	g.runUntilInput()

	slog.Info("game created",
		"seed", cfg.Seed,
		"spirits", len(cfg.Spirits),
		"threshold", cfg.Threshold,
		"turn", g.Turn)
	return g, nil
}

// Seed returns the seed this room was created from.
func (g *Game) Seed() int64 {
	return g.src.Seed()
}

// playAutomatedTurn runs one full turn with every faction unguided. No step
// can suspend: spoils are auto-drawn and there are no guides to eject.
func (g *Game) playAutomatedTurn() {
	g.resolveAgendaUnguided()
	g.beginWar()
	g.prepareSpoilsChanges()
	g.finalizeSpoils()
	g.beginScoring()
	g.processEjections()
	g.cleanup()
}

// cleanup resets per-turn accumulators and transient sub-phase state, then
// opens the next turn.
func (g *Game) cleanup() {
	g.Phase = PhaseCleanup
	g.emit(EventPhaseStart, "cleanup", nil)

	for _, id := range g.FactionOrder {
		g.deltas[id] = &TurnDelta{}
	}
	g.vagrantActions = make(map[realm.SpiritID]VagrantAction)
	g.agendaHands = make(map[realm.SpiritID][]realm.AgendaType)
	g.agendaChoices = make(map[realm.FactionID]realm.AgendaType)
	g.changeHands = make(map[realm.SpiritID][]realm.AgendaType)
	g.changeChoices = make(map[realm.FactionID]realm.AgendaType)
	g.tradedNow = make(map[realm.FactionID]bool)
	g.spoilsQueue = nil
	g.ejecting = make(map[realm.SpiritID]bool)

	g.Turn++
	g.Phase = PhaseVagrant
	g.emit(EventTurnStart, fmt.Sprintf("turn %d begins", g.Turn), nil)
}

// claimTile gives a neutral tile to the faction and credits the territory
// delta.
func (g *Game) claimTile(f *realm.Faction, c board.HexCoord) {
	g.Board.SetOwner(c, string(f.ID))
	f.AddTerritory(c)
	g.deltas[f.ID].TerritoryGained++
}

// conquerTile moves an owned tile from loser to winner. Only the winner's
// territory delta moves.
func (g *Game) conquerTile(winner, loser *realm.Faction, c board.HexCoord) {
	loser.RemoveTerritory(c)
	g.Board.SetOwner(c, string(winner.ID))
	winner.AddTerritory(c)
	g.deltas[winner.ID].TerritoryGained++
}

// creditGold adds gold to the faction and counts it toward the turn's
// gold-gained delta. Callers pass positive amounts only.
func (g *Game) creditGold(f *realm.Faction, n int) {
	if n <= 0 {
		return
	}
	f.AddGold(n)
	g.deltas[f.ID].GoldGained += n
}

// liveFactions returns the non-eliminated factions in canonical order.
func (g *Game) liveFactions() []*realm.Faction {
	var out []*realm.Faction
	for _, id := range g.FactionOrder {
		if f := g.Factions[id]; !f.Eliminated {
			out = append(out, f)
		}
	}
	return out
}

// fail marks the room broken after an invariant violation. No further
// submissions are accepted.
func (g *Game) fail(err error) {
	if g.failed {
		return
	}
	g.failed = true
	g.failure = err
	slog.Error("room failed", "turn", g.Turn, "phase", g.Phase, "error", err)
}

// Failed reports whether the room broke on an invariant violation, and the
// violation itself.
func (g *Game) Failed() (bool, error) {
	return g.failed, g.failure
}

// checkInvariants sweeps the cross-record consistency rules after each
// resolution batch: non-negative gold, constant pool size, board and
// faction territory agreement, elimination flag consistency.
func (g *Game) checkInvariants() {
	for _, id := range g.FactionOrder {
		f := g.Factions[id]
		if f.Gold < 0 {
			g.fail(&InvariantError{Check: fmt.Sprintf("faction %q gold %d below zero", id, f.Gold)})
			return
		}
		if len(f.Pool) != 4 {
			g.fail(&InvariantError{Check: fmt.Sprintf("faction %q pool size %d", id, len(f.Pool))})
			return
		}
		owned := g.Board.TerritoryCount(string(id))
		if owned != f.TerritoryCount() {
			g.fail(&InvariantError{Check: fmt.Sprintf("faction %q owns %d tiles on board, %d on record", id, owned, f.TerritoryCount())})
			return
		}
		if f.Eliminated != (f.TerritoryCount() == 0) {
			g.fail(&InvariantError{Check: fmt.Sprintf("faction %q eliminated flag disagrees with %d territories", id, f.TerritoryCount())})
			return
		}
	}
}
