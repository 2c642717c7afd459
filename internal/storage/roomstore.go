package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/example/meetpoint/internal/models"
)

var (
	ErrNotFound    = errors.New("room not found")
	ErrPersistence = errors.New("room store unavailable")
)

// RoomStore persists rooms keyed by their public code. Implementations are
// synchronous and read-your-writes; the planner relies on that when it
// re-reads a room it just saved.
type RoomStore interface {
	LoadRoom(ctx context.Context, code string) (*models.Room, error)
	SaveRoom(ctx context.Context, room *models.Room) error
}

// MemoryStore is the zero-dependency fallback used for local runs and
// tests. Rooms are copied on the way in and out so callers never share
// mutable state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*models.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*models.Room)}
}

func (m *MemoryStore) LoadRoom(_ context.Context, code string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRoom(r), nil
}

func (m *MemoryStore) SaveRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.Code] = cloneRoom(room)
	return nil
}

func cloneRoom(r *models.Room) *models.Room {
	out := *r
	out.Participants = append([]models.Participant(nil), r.Participants...)
	out.Preferences = append([]string(nil), r.Preferences...)
	if r.Votes != nil {
		out.Votes = make(map[string][]models.Vote, len(r.Votes))
		for k, v := range r.Votes {
			out.Votes[k] = append([]models.Vote(nil), v...)
		}
	}
	if r.MeetingPoint != nil {
		mp := *r.MeetingPoint
		out.MeetingPoint = &mp
	}
	return &out
}
