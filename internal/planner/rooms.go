package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/meetpoint/internal/geo"
	"github.com/example/meetpoint/internal/models"
	"github.com/example/meetpoint/internal/storage"
)

// ErrParticipantExists rejects joining a room under a taken name.
var ErrParticipantExists = errors.New("participant already exists")

// ErrPreferenceNotFound rejects removing a preference the room never had.
var ErrPreferenceNotFound = errors.New("preference not found")

// CreateRoom opens a new active room with a fresh code, retrying on the
// unlikely code collision.
func (p *Planner) CreateRoom(ctx context.Context, name string, preferences []string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	for attempt := 0; attempt < 3; attempt++ {
		code := NewRoomCode()
		if _, err := p.Store.LoadRoom(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		room := &models.Room{
			Code:        code,
			Name:        name,
			Preferences: dedupePreferences(preferences),
			Votes:       map[string][]models.Vote{},
			Status:      models.RoomStatusActive,
			CreatedAt:   time.Now().UTC(),
		}
		if err := p.Store.SaveRoom(ctx, room); err != nil {
			return nil, err
		}
		return room, nil
	}
	return nil, fmt.Errorf("%w: could not allocate a room code", storage.ErrPersistence)
}

// GetRoom loads a room by code. Read-only, no room lock.
func (p *Planner) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	return p.Store.LoadRoom(ctx, normalizeCode(code))
}

// Join adds a participant to a room. Names are unique per room.
func (p *Planner) Join(ctx context.Context, code, name string, location models.Coord) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || !geo.Valid(location) {
		return nil, ErrInvalidInput
	}
	code = normalizeCode(code)
	unlock := p.lockRoom(code)
	defer unlock()

	room, err := p.Store.LoadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Status == models.RoomStatusCompleted {
		return nil, ErrRoomCompleted
	}
	for _, part := range room.Participants {
		if part.Name == name {
			return nil, ErrParticipantExists
		}
	}
	room.Participants = append(room.Participants, models.Participant{
		Name:     name,
		Location: location,
		JoinedAt: time.Now().UTC(),
	})
	if err := p.Store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// SetPreferences replaces the room's preference list, preserving the given
// order minus duplicates.
func (p *Planner) SetPreferences(ctx context.Context, code string, preferences []string) (*models.Room, error) {
	code = normalizeCode(code)
	unlock := p.lockRoom(code)
	defer unlock()

	room, err := p.Store.LoadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	room.Preferences = dedupePreferences(preferences)
	if err := p.Store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// RemovePreference deletes a single preference from the room.
func (p *Planner) RemovePreference(ctx context.Context, code, preference string) (*models.Room, error) {
	code = normalizeCode(code)
	unlock := p.lockRoom(code)
	defer unlock()

	room, err := p.Store.LoadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, pref := range room.Preferences {
		if pref == preference {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrPreferenceNotFound
	}
	room.Preferences = append(room.Preferences[:idx], room.Preferences[idx+1:]...)
	if err := p.Store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// dedupePreferences keeps first occurrences, trimmed, in order.
func dedupePreferences(prefs []string) []string {
	out := make([]string, 0, len(prefs))
	seen := make(map[string]bool, len(prefs))
	for _, pref := range prefs {
		pref = strings.TrimSpace(pref)
		key := strings.ToLower(pref)
		if pref == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, pref)
	}
	return out
}
