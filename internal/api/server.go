// Package api provides the HTTP and WebSocket surface for rooms.
// Room state and event streams are public; pending options and submissions
// require the seat's bearer token. Room creation is rate limited per IP.
// See design doc Section 12.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/talgya/impetus/internal/engine"
	"github.com/talgya/impetus/internal/realm"
	"github.com/talgya/impetus/internal/rooms"
)

// createRoomLimit is the per-IP room creation budget per hour.
const createRoomLimit = 20

// Server serves rooms over HTTP.
type Server struct {
	Rooms *rooms.Manager
	Port  int

	started time.Time
}

// Handler builds the route table. Split from Start so tests can mount it on
// a test listener.
func (s *Server) Handler() http.Handler {
	s.started = time.Now().UTC()
	createLimiter := NewRateLimiter(createRoomLimit, time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/rooms", s.handleRooms(createLimiter))
	mux.HandleFunc("/api/v1/room/", s.handleRoomRoutes)

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	handler := s.Handler()
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list; localhost dev servers are always
// allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// seatToken extracts the bearer token identifying a seat.
func seatToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return tok
	}
	return ""
}

// writeSubmitError maps room and engine errors onto HTTP statuses. Invalid
// actions are the submitter's problem; invariant failures are ours.
func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rooms.ErrUnknownToken):
		http.Error(w, "unknown access token", http.StatusUnauthorized)
	case errors.Is(err, rooms.ErrRoomClosed):
		http.Error(w, "room closed", http.StatusGone)
	case errors.Is(err, engine.ErrInvalidAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrInvariant):
		slog.Error("room invariant failure surfaced", "error", err)
		http.Error(w, "room failed", http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"name":    "impetus",
		"started": s.started.Format(time.RFC3339),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"rooms":   len(s.Rooms.List()),
	})
}

// handleRooms dispatches the room collection: GET lists, POST creates.
func (s *Server) handleRooms(limiter *RateLimiter) http.HandlerFunc {
	create := RateLimitMiddleware(limiter, s.handleCreateRoom)
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, map[string]any{"rooms": s.Rooms.List()})
		case http.MethodPost:
			create(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Players   []string `json:"players"`
		Bots      int      `json:"bots,omitempty"`
		Threshold int      `json:"threshold,omitempty"`
		Seed      int64    `json:"seed,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	room, err := s.Rooms.CreateRoom(rooms.Params{
		Players:   req.Players,
		Bots:      req.Bots,
		Threshold: req.Threshold,
		Seed:      req.Seed,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Seat tokens appear in this response only; they are never readable
	// again.
	type seatGrant struct {
		Spirit realm.SpiritID `json:"spirit"`
		Name   string         `json:"name"`
		Bot    bool           `json:"bot"`
		Token  string         `json:"token,omitempty"`
	}
	grants := make([]seatGrant, 0, len(room.Seats()))
	for _, seat := range room.Seats() {
		g := seatGrant{Spirit: seat.Spirit, Name: seat.Name, Bot: seat.Bot}
		if !seat.Bot {
			g.Token = seat.Token
		}
		grants = append(grants, g)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{
		"id":    room.ID,
		"seed":  room.Seed(),
		"seats": grants,
	})
}

// handleRoomRoutes dispatches /api/v1/room/{id}[/sub] by sub-path.
func (s *Server) handleRoomRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/room/")
	id, sub, _ := strings.Cut(path, "/")
	if id == "" {
		http.Error(w, "room id required", http.StatusBadRequest)
		return
	}
	room, ok := s.Rooms.Get(id)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, room.State())
	case "pending":
		s.handlePending(w, r, room)
	case "events":
		s.handleEvents(w, r, room)
	case "stream":
		s.handleStream(w, r, room)
	case "vagrant", "agenda", "change", "ejection", "spoils", "spoils-change":
		s.handleSubmit(w, r, room, sub)
	default:
		http.Error(w, "unknown room endpoint", http.StatusNotFound)
	}
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request, room *rooms.Room) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := seatToken(r)
	if token == "" {
		http.Error(w, "bearer token required", http.StatusUnauthorized)
		return
	}
	pending, err := room.Pending(token)
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSON(w, map[string]any{"pending": pending})
}

// handleEvents returns the event backlog after ?since= (default all).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, room *rooms.Room) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	since := 0
	if raw := r.URL.Query().Get("since"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &since); err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, map[string]any{"events": room.EventsSince(since)})
}

// handleSubmit decodes and forwards one command submission.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, room *rooms.Room, sub string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := seatToken(r)
	if token == "" {
		http.Error(w, "bearer token required", http.StatusUnauthorized)
		return
	}

	var events []engine.Event
	var err error
	switch sub {
	case "vagrant":
		var act engine.VagrantAction
		if derr := json.NewDecoder(r.Body).Decode(&act); derr != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		events, err = room.SubmitVagrant(token, act)
	case "agenda", "change":
		var req struct {
			Index int `json:"index"`
		}
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if sub == "agenda" {
			events, err = room.SubmitAgenda(token, req.Index)
		} else {
			events, err = room.SubmitChange(token, req.Index)
		}
	case "ejection":
		var req struct {
			Remove realm.AgendaType `json:"remove"`
			Add    realm.AgendaType `json:"add"`
		}
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		events, err = room.SubmitEjection(token, req.Remove, req.Add)
	case "spoils", "spoils-change":
		var req struct {
			Indices []int `json:"indices"`
		}
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if sub == "spoils" {
			events, err = room.SubmitSpoils(token, req.Indices)
		} else {
			events, err = room.SubmitSpoilsChange(token, req.Indices)
		}
	}
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSON(w, map[string]any{"events": events})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
