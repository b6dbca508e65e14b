package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/impetus/internal/rooms"
)

const (
	streamWriteWait = 10 * time.Second
	streamPingEvery = 15 * time.Second
)

// upgrader accepts any origin: the stream carries public state only, and
// browser WebSocket clients cannot send custom headers for a stricter
// check.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStream upgrades to a WebSocket and forwards live event batches as
// JSON arrays. The since query parameter replays the backlog after that
// sequence number first.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, room *rooms.Room) {
	since := 0
	if raw := r.URL.Query().Get("since"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &since); err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "room", room.ID, "error", err)
		return
	}
	defer conn.Close()

	subID, ch, backlog, err := room.SubscribeSince(since)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "room closed")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
		return
	}
	defer room.Unsubscribe(subID)

	if len(backlog) > 0 {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(backlog); err != nil {
			return
		}
	}

	// The client never sends data, but reading surfaces closes and keeps
	// the pong handler running.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Info("stream client connected", "room", room.ID, "subscriber", subID)
	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		select {
		case batch, ok := <-ch:
			if !ok {
				// Dropped as a slow consumer, or the room closed.
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(batch); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			slog.Info("stream client disconnected", "room", room.ID, "subscriber", subID)
			return
		}
	}
}
