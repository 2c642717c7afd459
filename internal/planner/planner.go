package planner

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/meetpoint/internal/geo"
	"github.com/example/meetpoint/internal/models"
	"github.com/example/meetpoint/internal/observability"
	"github.com/example/meetpoint/internal/places"
	"github.com/example/meetpoint/internal/ranking"
	"github.com/example/meetpoint/internal/storage"
	"github.com/example/meetpoint/internal/travel"
	"github.com/example/meetpoint/internal/voting"
)

var (
	ErrInvalidInput = geo.ErrInvalidInput

	// ErrRoomCompleted rejects vote mutations against a finalized room.
	ErrRoomCompleted = errors.New("room already completed")

	// ErrTooFewParticipants gates room-scoped recommendations.
	ErrTooFewParticipants = errors.New("need at least 2 participants")
)

const DefaultTopN = 5

// EventPublisher receives room events after vote mutations and
// finalization. Optional; a nil publisher disables the event stream.
type EventPublisher interface {
	Publish(ctx context.Context, event models.RoomEvent) error
}

// Notifier pushes live updates to room subscribers. Optional.
type Notifier interface {
	NotifyRoom(code string, event models.RoomEvent, votes map[string][]models.Vote)
}

// Recommendation is one page of ranked meeting point candidates.
type Recommendation struct {
	Places        []models.RankedPlace
	NextPageToken string
}

// Planner composes search, travel estimation, ranking and the vote ledger
// into the public operations. Vote mutations for one room are linearized
// behind a per-room lock held across load-mutate-save.
type Planner struct {
	Store     storage.RoomStore
	Search    *places.Service
	Estimator *travel.Estimator
	Ranker    *ranking.Engine
	Events    EventPublisher
	Notifier  Notifier
	Logger    *slog.Logger

	// SearchRadiusMeters overrides the search default when positive.
	SearchRadiusMeters int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// lastCandidates remembers the most recent recommendation per room so
	// a majority vote can be finalized with full place details. This is a
	// best-effort lookup, not storage.
	candMu         sync.RWMutex
	lastCandidates map[string]map[string]models.Place
}

func New(store storage.RoomStore, search *places.Service, estimator *travel.Estimator, ranker *ranking.Engine, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		Store:          store,
		Search:         search,
		Estimator:      estimator,
		Ranker:         ranker,
		Logger:         logger,
		locks:          make(map[string]*sync.Mutex),
		lastCandidates: make(map[string]map[string]models.Place),
	}
}

// FindMeetingPoints runs the full recommendation pipeline for an ad-hoc
// participant set: centroid, candidate search, travel costing, ranking.
func (p *Planner) FindMeetingPoints(ctx context.Context, participants []models.Participant, preferences []string, pageToken string, topN int) (Recommendation, error) {
	start := time.Now()
	if err := validateParticipants(participants); err != nil {
		return Recommendation{}, err
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	locations := make([]models.Coord, len(participants))
	for i, part := range participants {
		locations[i] = part.Location
	}
	centroid, err := geo.Centroid(locations)
	if err != nil {
		return Recommendation{}, err
	}

	found, err := p.Search.Search(ctx, places.Params{
		Center:       centroid,
		Preferences:  preferences,
		RadiusMeters: p.SearchRadiusMeters,
		PageToken:    pageToken,
	})
	if err != nil {
		return Recommendation{}, fmt.Errorf("candidate search: %w", err)
	}

	costs, err := p.Estimator.Estimate(ctx, found.Places, participants)
	if err != nil {
		return Recommendation{}, fmt.Errorf("travel estimation: %w", err)
	}

	ranked := p.Ranker.Rank(found.Places, costs, centroid, topN)

	observability.RecommendationsTotal.Inc()
	observability.RecommendationLatency.Observe(time.Since(start).Seconds())
	p.Logger.Info("recommendation served",
		"participants", len(participants),
		"preferences", len(preferences),
		"candidates", len(found.Places),
		"ranked", len(ranked),
		"duration_ms", time.Since(start).Milliseconds())

	return Recommendation{Places: ranked, NextPageToken: found.NextPageToken}, nil
}

// FindMeetingPointsForRoom runs the pipeline over a room's participants and
// preferences, remembers the candidates for later finalization, and records
// the top real candidate as the room's provisional meeting point.
func (p *Planner) FindMeetingPointsForRoom(ctx context.Context, code, pageToken string, topN int) (Recommendation, error) {
	room, err := p.Store.LoadRoom(ctx, normalizeCode(code))
	if err != nil {
		return Recommendation{}, err
	}
	if len(room.Participants) < 2 {
		return Recommendation{}, ErrTooFewParticipants
	}

	rec, err := p.FindMeetingPoints(ctx, room.Participants, room.Preferences, pageToken, topN)
	if err != nil {
		return Recommendation{}, err
	}
	p.rememberCandidates(room.Code, rec.Places)

	if top := rec.Places[0]; top.Place.PlaceID != ranking.CenterPointID && room.Status == models.RoomStatusActive {
		room.MeetingPoint = &models.MeetingPoint{
			PlaceID:  top.Place.PlaceID,
			Name:     top.Place.Name,
			Address:  top.Place.Address,
			Location: top.Place.Location,
		}
		if err := p.Store.SaveRoom(ctx, room); err != nil {
			p.Logger.Warn("could not record provisional meeting point", "room", room.Code, "error", err)
		}
	}
	return rec, nil
}

// CastVote records a vote and returns the updated ledger. A strict
// majority finalizes the room with the voted candidate.
func (p *Planner) CastVote(ctx context.Context, code, placeID, participantName string, location models.Coord) (map[string][]models.Vote, error) {
	if placeID == "" || participantName == "" {
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

	tally, err := voting.Cast(room, placeID, participantName, location, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	eventType := models.EventVoteCast
	if voting.HasMajority(room, placeID) {
		voting.Finalize(room, p.meetingPointFor(room.Code, placeID))
		eventType = models.EventRoomFinalized
		observability.RoomsFinalized.Inc()
	}

	if err := p.Store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	observability.VotesCast.Inc()
	p.emit(ctx, room, models.RoomEvent{
		Type:        eventType,
		RoomCode:    room.Code,
		PlaceID:     placeID,
		Participant: participantName,
		Tally:       tally,
	})
	return room.Votes, nil
}

// RetractVote removes a vote and returns the updated ledger.
func (p *Planner) RetractVote(ctx context.Context, code, placeID, participantName string) (map[string][]models.Vote, error) {
	if placeID == "" || participantName == "" {
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

	tally, err := voting.Retract(room, placeID, participantName)
	if err != nil {
		return nil, err
	}
	if err := p.Store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	observability.VotesRetracted.Inc()
	p.emit(ctx, room, models.RoomEvent{
		Type:        models.EventVoteRetracted,
		RoomCode:    room.Code,
		PlaceID:     placeID,
		Participant: participantName,
		Tally:       tally,
	})
	return room.Votes, nil
}

// Finalize explicitly freezes the room on the given place.
func (p *Planner) Finalize(ctx context.Context, code string, point models.MeetingPoint) (*models.Room, error) {
	if point.PlaceID == "" {
		return nil, ErrInvalidInput
	}
	code = normalizeCode(code)
	unlock := p.lockRoom(code)
	defer unlock()

	room, err := p.Store.LoadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	voting.Finalize(room, point)
	if err := p.Store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	observability.RoomsFinalized.Inc()
	p.emit(ctx, room, models.RoomEvent{
		Type:     models.EventRoomFinalized,
		RoomCode: room.Code,
		PlaceID:  point.PlaceID,
		Tally:    voting.Tally(room, point.PlaceID),
	})
	return room, nil
}

func (p *Planner) emit(ctx context.Context, room *models.Room, event models.RoomEvent) {
	event.OccurredAt = time.Now().UTC()
	if p.Events != nil {
		if err := p.Events.Publish(ctx, event); err != nil {
			p.Logger.Warn("room event publish failed", "room", event.RoomCode, "type", event.Type, "error", err)
		}
	}
	if p.Notifier != nil {
		p.Notifier.NotifyRoom(event.RoomCode, event, room.Votes)
	}
}

func (p *Planner) lockRoom(code string) func() {
	p.locksMu.Lock()
	l, ok := p.locks[code]
	if !ok {
		l = &sync.Mutex{}
		p.locks[code] = l
	}
	p.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

func (p *Planner) rememberCandidates(code string, ranked []models.RankedPlace) {
	byID := make(map[string]models.Place, len(ranked))
	for _, r := range ranked {
		if r.Place.PlaceID == ranking.CenterPointID {
			continue
		}
		byID[r.Place.PlaceID] = r.Place
	}
	p.candMu.Lock()
	p.lastCandidates[code] = byID
	p.candMu.Unlock()
}

func (p *Planner) meetingPointFor(code, placeID string) models.MeetingPoint {
	p.candMu.RLock()
	place, ok := p.lastCandidates[code][placeID]
	p.candMu.RUnlock()
	if !ok {
		// Vote for a place we no longer hold details for; freeze what we
		// know.
		return models.MeetingPoint{PlaceID: placeID}
	}
	return models.MeetingPoint{
		PlaceID:  place.PlaceID,
		Name:     place.Name,
		Address:  place.Address,
		Location: place.Location,
	}
}

func validateParticipants(participants []models.Participant) error {
	if len(participants) == 0 {
		return ErrInvalidInput
	}
	seen := make(map[string]bool, len(participants))
	for _, part := range participants {
		name := strings.TrimSpace(part.Name)
		if name == "" || seen[name] || !geo.Valid(part.Location) {
			return ErrInvalidInput
		}
		seen[name] = true
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewRoomCode returns a 6-character room code, skipping easily confused
// characters.
func NewRoomCode() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
