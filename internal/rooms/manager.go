package rooms

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/impetus/internal/bot"
	"github.com/talgya/impetus/internal/engine"
	"github.com/talgya/impetus/internal/entropy"
	"github.com/talgya/impetus/internal/realm"
)

// botSeedMask derives the bot chooser's stream from the room seed. Bot
// picks land in the action log, so replay never needs this stream; the
// derivation only keeps whole rooms reproducible from one seed.
const botSeedMask = 0x626f74

// Params are the room creation inputs. Humans get one seat per name; bots
// fill further seats with persona names.
type Params struct {
	Players   []string      `json:"players"`
	Bots      int           `json:"bots"`
	Threshold int           `json:"threshold,omitempty"` // 0 takes the default
	Seed      int64         `json:"seed,omitempty"`      // 0 draws a fresh seed
	Deadline  time.Duration `json:"-"`                   // 0 takes the manager default
}

// Manager creates and tracks the rooms of one process.
type Manager struct {
	deadline time.Duration
	sink     Sink

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewManager creates a manager. deadline is the default per-suspension
// input deadline, zero for none; sink may be nil to skip archiving.
func NewManager(deadline time.Duration, sink Sink) *Manager {
	return &Manager{
		deadline: deadline,
		sink:     sink,
		rooms:    make(map[string]*Room),
	}
}

// CreateRoom validates the parameters, seats the players and bots, builds
// the game, and lets bots play to the first human suspension.
func (m *Manager) CreateRoom(p Params) (*Room, error) {
	if len(p.Players) == 0 {
		return nil, fmt.Errorf("create room: at least one player seat")
	}
	if p.Bots < 0 {
		return nil, fmt.Errorf("create room: bot count %d", p.Bots)
	}
	if total := len(p.Players) + p.Bots; total > len(realm.FactionIDs) {
		return nil, fmt.Errorf("create room: %d seats exceeds %d", total, len(realm.FactionIDs))
	}

	seed := p.Seed
	if seed == 0 {
		seed = entropy.FreshSeed()
	}
	chooser := bot.New(seed ^ botSeedMask)

	seats, err := buildSeats(p.Players, chooser.Names(p.Bots))
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	cfg := engine.Config{
		Threshold: p.Threshold,
		Seed:      seed,
	}
	for _, s := range seats {
		cfg.Spirits = append(cfg.Spirits, engine.SpiritSeat{ID: s.Spirit, Name: s.Name})
	}
	g, err := engine.NewGame(cfg)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	deadline := p.Deadline
	if deadline == 0 {
		deadline = m.deadline
	}
	r := &Room{
		ID:       uuid.NewString(),
		Created:  time.Now().UTC(),
		game:     g,
		cfg:      cfg,
		seats:    seats,
		byToken:  make(map[string]realm.SpiritID, len(seats)),
		botSeats: make(map[realm.SpiritID]bool),
		chooser:  chooser,
		deadline: deadline,
		subs:     make(map[uint64]chan []engine.Event),
		sink:     m.sink,
	}
	for _, s := range seats {
		r.byToken[s.Token] = s.Spirit
		if s.Bot {
			r.botSeats[s.Spirit] = true
		}
	}

	if m.sink != nil {
		if err := m.sink.SaveRoom(r.ID, cfg, seats); err != nil {
			return nil, fmt.Errorf("create room: archive: %w", err)
		}
	}

	// Creation already produced the opening events; bots owed input act
	// now so humans see a settled board.
	r.mu.Lock()
	adv := r.afterAdvanceLocked(0, append([]engine.Event(nil), r.game.EventLog()...))
	r.mu.Unlock()

	m.mu.Lock()
	m.rooms[r.ID] = r
	m.mu.Unlock()

	r.dispatch(adv)
	slog.Info("room created", "room", r.ID, "seats", len(seats), "bots", p.Bots, "seed", seed)
	return r, nil
}

// buildSeats assigns spirit ids and access tokens. Human ids come from the
// player names, bot ids from the sampled persona names under a bot- prefix;
// every id must be unique.
func buildSeats(players, botNames []string) ([]Seat, error) {
	var seats []Seat
	used := make(map[realm.SpiritID]bool)
	add := func(id realm.SpiritID, name string, isBot bool) error {
		if used[id] {
			return fmt.Errorf("duplicate seat id %q", id)
		}
		used[id] = true
		seats = append(seats, Seat{
			Spirit: id,
			Name:   name,
			Token:  uuid.NewString(),
			Bot:    isBot,
		})
		return nil
	}
	for _, name := range players {
		id, err := slugID(name)
		if err != nil {
			return nil, err
		}
		if err := add(id, strings.TrimSpace(name), false); err != nil {
			return nil, err
		}
	}
	for _, name := range botNames {
		id, err := slugID(name)
		if err != nil {
			return nil, err
		}
		if err := add("bot-"+id, name, true); err != nil {
			return nil, err
		}
	}
	return seats, nil
}

// slugID reduces a display name to a stable lowercase spirit id.
func slugID(name string) (realm.SpiritID, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	id := strings.Trim(b.String(), "-")
	if id == "" {
		return "", fmt.Errorf("player name %q yields no usable id", name)
	}
	return realm.SpiritID(id), nil
}

// Get returns the room with the given id.
func (m *Manager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// List summarizes every room, oldest first.
func (m *Manager) List() []Status {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]Status, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Status())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Shutdown closes every room: timers stop, subscribers drain, seats stay
// readable.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()
	for _, r := range rooms {
		r.close()
	}
}
