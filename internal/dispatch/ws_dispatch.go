package dispatch

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/meetpoint/internal/models"
)

// WSSession wraps a single subscriber connection. Writes are serialized
// because gorilla connections allow only one concurrent writer.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// RoomUpdate is the frame pushed to every subscriber of a room after a
// vote mutation or finalization.
type RoomUpdate struct {
	Event models.RoomEvent         `json:"event"`
	Votes map[string][]models.Vote `json:"votes"`
}

func (s *WSSession) send(u RoomUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(u)
}

// WSRegistry holds live subscriber sessions grouped by room code.
type WSRegistry struct {
	mu    sync.RWMutex
	rooms map[string][]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{rooms: make(map[string][]*WSSession)} }

// Subscribe registers a connection for a room and returns the session.
func (r *WSRegistry) Subscribe(code string, conn *websocket.Conn) *WSSession {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[code] = append(r.rooms[code], s)
	return s
}

// Unsubscribe drops the session; the caller owns closing the connection.
func (r *WSRegistry) Unsubscribe(code string, session *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := r.rooms[code]
	for i, s := range sessions {
		if s == session {
			r.rooms[code] = append(sessions[:i], sessions[i+1:]...)
			break
		}
	}
	if len(r.rooms[code]) == 0 {
		delete(r.rooms, code)
	}
}

// NotifyRoom fans the update out to every subscriber. Sessions whose
// write fails are pruned; their connections are closed here since the
// peer is gone.
func (r *WSRegistry) NotifyRoom(code string, event models.RoomEvent, votes map[string][]models.Vote) {
	r.mu.RLock()
	sessions := make([]*WSSession, len(r.rooms[code]))
	copy(sessions, r.rooms[code])
	r.mu.RUnlock()

	update := RoomUpdate{Event: event, Votes: votes}
	var dead []*WSSession
	for _, s := range sessions {
		if err := s.send(update); err != nil {
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		s.conn.Close()
		r.Unsubscribe(code, s)
	}
}

// Subscribers reports the live session count for a room.
func (r *WSRegistry) Subscribers(code string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[code])
}
