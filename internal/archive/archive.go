// Package archive provides SQLite-based room storage: creation parameters,
// the ordered action log, the event stream, and final results. A stored
// room replays bit-for-bit through the engine from its config and actions.
// See design doc Section 11.
package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/impetus/internal/engine"
	"github.com/talgya/impetus/internal/realm"
	"github.com/talgya/impetus/internal/rooms"
)

// Store wraps a SQLite connection for room archiving.
type Store struct {
	conn *sqlx.DB
}

var _ rooms.Sink = (*Store)(nil)

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	st := &Store{conn: conn}
	if err := st.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (st *Store) Close() error {
	return st.conn.Close()
}

func (st *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		threshold INTEGER NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS seats (
		room_id TEXT NOT NULL,
		seat INTEGER NOT NULL,
		spirit TEXT NOT NULL,
		name TEXT NOT NULL,
		bot INTEGER NOT NULL,
		PRIMARY KEY (room_id, seat)
	);

	CREATE TABLE IF NOT EXISTS actions (
		room_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		turn INTEGER NOT NULL,
		phase TEXT NOT NULL,
		spirit TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload_json TEXT,
		PRIMARY KEY (room_id, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		turn INTEGER NOT NULL,
		phase TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL,
		meta_json TEXT
	);

	CREATE TABLE IF NOT EXISTS results (
		room_id TEXT PRIMARY KEY,
		winners_json TEXT NOT NULL,
		digest TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_room_seq ON events(room_id, seq);
	`
	_, err := st.conn.Exec(schema)
	return err
}

// SaveRoom records a room's creation parameters and seats. The stored
// config carries the resolved seed; config plus actions replays the room.
func (st *Store) SaveRoom(id string, cfg engine.Config, seats []rooms.Seat) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tx, err := st.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO rooms (id, created_at, seed, threshold, config_json) VALUES (?, ?, ?, ?, ?)",
		id, time.Now().UTC().Format(time.RFC3339), cfg.Seed, cfg.Threshold, string(cfgJSON),
	)
	if err != nil {
		return fmt.Errorf("insert room %s: %w", id, err)
	}

	for i, s := range seats {
		bot := 0
		if s.Bot {
			bot = 1
		}
		_, err := tx.Exec(
			"INSERT INTO seats (room_id, seat, spirit, name, bot) VALUES (?, ?, ?, ?, ?)",
			id, i, s.Spirit, s.Name, bot,
		)
		if err != nil {
			return fmt.Errorf("insert seat %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// AppendActions appends accepted submissions to a room's action log.
func (st *Store) AppendActions(id string, recs []engine.ActionRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := st.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO actions
		(room_id, seq, turn, phase, spirit, kind, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		_, err := stmt.Exec(id, rec.Seq, rec.Turn, rec.Phase, rec.Spirit, rec.Kind, string(rec.Payload))
		if err != nil {
			return fmt.Errorf("insert action %d: %w", rec.Seq, err)
		}
	}

	return tx.Commit()
}

// AppendEvents appends resolution events to a room's event stream.
func (st *Store) AppendEvents(id string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := st.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(room_id, seq, turn, phase, type, description, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		metaJSON, _ := json.Marshal(e.Meta)
		_, err := stmt.Exec(id, e.Seq, e.Turn, e.Phase, e.Type, e.Description, string(metaJSON))
		if err != nil {
			return fmt.Errorf("insert event %d: %w", e.Seq, err)
		}
	}

	return tx.Commit()
}

// SaveResult records a finished room's winners and final state digest.
func (st *Store) SaveResult(id string, winners []realm.SpiritID, digest string) error {
	winnersJSON, _ := json.Marshal(winners)
	_, err := st.conn.Exec(
		"INSERT OR REPLACE INTO results (room_id, winners_json, digest, finished_at) VALUES (?, ?, ?, ?)",
		id, string(winnersJSON), digest, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// LoadRoom returns a stored room's creation config and ordered action log,
// ready for engine.Replay.
func (st *Store) LoadRoom(id string) (engine.Config, []engine.ActionRecord, error) {
	var cfgJSON string
	if err := st.conn.Get(&cfgJSON, "SELECT config_json FROM rooms WHERE id = ?", id); err != nil {
		return engine.Config{}, nil, fmt.Errorf("load room %s: %w", id, err)
	}
	var cfg engine.Config
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		return engine.Config{}, nil, fmt.Errorf("decode config for %s: %w", id, err)
	}

	type actionRow struct {
		Seq     int    `db:"seq"`
		Turn    int    `db:"turn"`
		Phase   string `db:"phase"`
		Spirit  string `db:"spirit"`
		Kind    string `db:"kind"`
		Payload string `db:"payload_json"`
	}
	var rows []actionRow
	err := st.conn.Select(&rows,
		"SELECT seq, turn, phase, spirit, kind, payload_json FROM actions WHERE room_id = ? ORDER BY seq",
		id,
	)
	if err != nil {
		return engine.Config{}, nil, fmt.Errorf("load actions for %s: %w", id, err)
	}

	recs := make([]engine.ActionRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, engine.ActionRecord{
			Seq:     r.Seq,
			Turn:    r.Turn,
			Phase:   engine.Phase(r.Phase),
			Spirit:  realm.SpiritID(r.Spirit),
			Kind:    engine.InputKind(r.Kind),
			Payload: json.RawMessage(r.Payload),
		})
	}
	return cfg, recs, nil
}

// Result is a stored final outcome.
type Result struct {
	RoomID     string           `json:"roomId"`
	Winners    []realm.SpiritID `json:"winners"`
	Digest     string           `json:"digest"`
	FinishedAt string           `json:"finishedAt"`
}

// LoadResult returns a finished room's stored outcome.
func (st *Store) LoadResult(id string) (Result, error) {
	var row struct {
		WinnersJSON string `db:"winners_json"`
		Digest      string `db:"digest"`
		FinishedAt  string `db:"finished_at"`
	}
	err := st.conn.Get(&row,
		"SELECT winners_json, digest, finished_at FROM results WHERE room_id = ?", id)
	if err != nil {
		return Result{}, fmt.Errorf("load result for %s: %w", id, err)
	}
	res := Result{RoomID: id, Digest: row.Digest, FinishedAt: row.FinishedAt}
	if err := json.Unmarshal([]byte(row.WinnersJSON), &res.Winners); err != nil {
		return Result{}, fmt.Errorf("decode winners for %s: %w", id, err)
	}
	return res, nil
}

// RoomIDs lists every stored room, oldest first.
func (st *Store) RoomIDs() ([]string, error) {
	var ids []string
	err := st.conn.Select(&ids, "SELECT id FROM rooms ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return ids, nil
}

// RecentEvents returns a room's most recent events, newest first.
func (st *Store) RecentEvents(id string, limit int) ([]engine.Event, error) {
	type eventRow struct {
		Seq         int    `db:"seq"`
		Turn        int    `db:"turn"`
		Phase       string `db:"phase"`
		Type        string `db:"type"`
		Description string `db:"description"`
		MetaJSON    string `db:"meta_json"`
	}
	var rows []eventRow
	err := st.conn.Select(&rows,
		"SELECT seq, turn, phase, type, description, meta_json FROM events WHERE room_id = ? ORDER BY seq DESC LIMIT ?",
		id, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent events for %s: %w", id, err)
	}

	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{
			Seq:         r.Seq,
			Turn:        r.Turn,
			Phase:       engine.Phase(r.Phase),
			Type:        r.Type,
			Description: r.Description,
		}
		if r.MetaJSON != "" && r.MetaJSON != "null" {
			if err := json.Unmarshal([]byte(r.MetaJSON), &e.Meta); err != nil {
				return nil, fmt.Errorf("decode event meta: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, nil
}
