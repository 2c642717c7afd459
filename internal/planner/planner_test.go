package planner

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/meetpoint/internal/maps"
	"github.com/example/meetpoint/internal/models"
	"github.com/example/meetpoint/internal/places"
	"github.com/example/meetpoint/internal/ranking"
	"github.com/example/meetpoint/internal/storage"
	"github.com/example/meetpoint/internal/travel"
	"github.com/example/meetpoint/internal/voting"
)

// fakeProvider serves both the place-search and matrix interfaces from
// canned data.
type fakeProvider struct {
	placesByQuery map[string][]models.Place
	durations     map[float64][]float64 // place lat key -> per-origin seconds
}

func (f *fakeProvider) TextSearch(ctx context.Context, query string, center models.Coord, radiusMeters int, pageToken string) (maps.PlacePage, error) {
	return maps.PlacePage{Results: f.placesByQuery[query]}, nil
}

func (f *fakeProvider) Matrix(ctx context.Context, origins []models.Coord, destination models.Coord) ([]maps.MatrixCell, error) {
	durations := f.durations[destination.Lat]
	cells := make([]maps.MatrixCell, len(origins))
	for i := range origins {
		if i < len(durations) {
			cells[i] = maps.MatrixCell{DistanceMeters: durations[i] * 8, DurationSeconds: durations[i], OK: true}
		}
	}
	return cells, nil
}

type capturedEvents struct {
	mu     sync.Mutex
	events []models.RoomEvent
}

func (c *capturedEvents) Publish(ctx context.Context, e models.RoomEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturedEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func goodPlace(id string, lat float64) models.Place {
	return models.Place{
		PlaceID:     id,
		Name:        "Cafe " + id,
		Address:     id + " Street",
		Location:    models.Coord{Lat: lat, Lng: lat},
		Types:       []string{"cafe"},
		Rating:      4.5,
		RatingCount: 40,
	}
}

func newTestPlanner(f *fakeProvider) (*Planner, *capturedEvents) {
	store := storage.NewMemoryStore()
	events := &capturedEvents{}
	p := New(store,
		places.NewService(f, nil),
		travel.NewEstimator(f, nil, nil),
		&ranking.Engine{Strategy: ranking.StrategyBalanced},
		nil)
	p.Events = events
	return p, events
}

func twoParticipants() []models.Participant {
	return []models.Participant{
		{Name: "asha", Location: models.Coord{Lat: 21.10, Lng: 79.05}},
		{Name: "ben", Location: models.Coord{Lat: 21.20, Lng: 79.15}},
	}
}

func TestFindMeetingPointsPipeline(t *testing.T) {
	f := &fakeProvider{
		placesByQuery: map[string][]models.Place{
			"cafe": {goodPlace("even", 50), goodPlace("uneven", 60)},
		},
		durations: map[float64][]float64{
			50: {600, 650},  // spread 50
			60: {100, 1000}, // spread 900
		},
	}
	p, _ := newTestPlanner(f)

	rec, err := p.FindMeetingPoints(context.Background(), twoParticipants(), []string{"cafe"}, "", 5)
	require.NoError(t, err)
	require.Len(t, rec.Places, 2)
	assert.Equal(t, "even", rec.Places[0].Place.PlaceID)
	assert.Equal(t, 625.0, rec.Places[0].MeanSeconds)
	assert.Equal(t, 50.0, rec.Places[0].SpreadSeconds)
}

func TestFindMeetingPointsValidation(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})

	_, err := p.FindMeetingPoints(context.Background(), nil, []string{"cafe"}, "", 5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := []models.Participant{{Name: "asha", Location: models.Coord{Lat: 200}}}
	_, err = p.FindMeetingPoints(context.Background(), bad, nil, "", 5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	dup := []models.Participant{
		{Name: "asha", Location: models.Coord{Lat: 1, Lng: 1}},
		{Name: "asha", Location: models.Coord{Lat: 2, Lng: 2}},
	}
	_, err = p.FindMeetingPoints(context.Background(), dup, nil, "", 5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFindMeetingPointsSentinelFallback(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})

	parts := twoParticipants()
	rec, err := p.FindMeetingPoints(context.Background(), parts, []string{"submarine base"}, "", 5)
	require.NoError(t, err)
	require.Len(t, rec.Places, 1)

	sentinel := rec.Places[0]
	assert.Equal(t, ranking.CenterPointID, sentinel.Place.PlaceID)
	assert.InDelta(t, 21.15, sentinel.Place.Location.Lat, 1e-9)
	assert.InDelta(t, 79.10, sentinel.Place.Location.Lng, 1e-9)
}

func makeRoom(t *testing.T, p *Planner, participantCount int) *models.Room {
	t.Helper()
	room, err := p.CreateRoom(context.Background(), "friday", []string{"cafe"})
	require.NoError(t, err)
	names := []string{"asha", "ben", "chitra", "dev", "esha"}
	for i := 0; i < participantCount; i++ {
		_, err := p.Join(context.Background(), room.Code, names[i],
			models.Coord{Lat: 21.1 + float64(i)/100, Lng: 79.0 + float64(i)/100})
		require.NoError(t, err)
	}
	return room
}

func TestCastVoteMajorityFinalizesWithCandidateDetails(t *testing.T) {
	f := &fakeProvider{
		placesByQuery: map[string][]models.Place{"cafe": {goodPlace("X", 50)}},
		durations:     map[float64][]float64{50: {300, 300, 300, 300}},
	}
	p, events := newTestPlanner(f)
	room := makeRoom(t, p, 4)

	// Room-scoped recommendation remembers candidate details for
	// finalization.
	_, err := p.FindMeetingPointsForRoom(context.Background(), room.Code, "", 5)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = p.CastVote(ctx, room.Code, "X", "asha", models.Coord{Lat: 21.1, Lng: 79.0})
	require.NoError(t, err)
	_, err = p.CastVote(ctx, room.Code, "X", "ben", models.Coord{Lat: 21.11, Lng: 79.01})
	require.NoError(t, err)

	got, err := p.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusActive, got.Status, "2 of 4 must not finalize")

	_, err = p.CastVote(ctx, room.Code, "X", "chitra", models.Coord{Lat: 21.12, Lng: 79.02})
	require.NoError(t, err)

	got, err = p.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusCompleted, got.Status)
	require.NotNil(t, got.MeetingPoint)
	assert.Equal(t, "X", got.MeetingPoint.PlaceID)
	assert.Equal(t, "Cafe X", got.MeetingPoint.Name)

	assert.Equal(t, []string{
		models.EventVoteCast, models.EventVoteCast, models.EventRoomFinalized,
	}, events.types())
}

func TestCastVoteDuplicateRejected(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})
	room := makeRoom(t, p, 3)
	ctx := context.Background()

	_, err := p.CastVote(ctx, room.Code, "X", "asha", models.Coord{})
	require.NoError(t, err)
	_, err = p.CastVote(ctx, room.Code, "X", "asha", models.Coord{})
	assert.ErrorIs(t, err, voting.ErrDuplicateVote)

	got, err := p.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Len(t, got.Votes["X"], 1)
}

func TestVoteMutationsRejectedOnCompletedRoom(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})
	room := makeRoom(t, p, 3)
	ctx := context.Background()

	_, err := p.Finalize(ctx, room.Code, models.MeetingPoint{PlaceID: "X", Name: "Cafe X"})
	require.NoError(t, err)

	_, err = p.CastVote(ctx, room.Code, "Y", "asha", models.Coord{})
	assert.ErrorIs(t, err, ErrRoomCompleted)
	_, err = p.RetractVote(ctx, room.Code, "X", "asha")
	assert.ErrorIs(t, err, ErrRoomCompleted)
}

func TestRetractVote(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})
	room := makeRoom(t, p, 3)
	ctx := context.Background()

	_, err := p.RetractVote(ctx, room.Code, "X", "asha")
	assert.ErrorIs(t, err, voting.ErrVoteNotFound)

	_, err = p.CastVote(ctx, room.Code, "X", "asha", models.Coord{})
	require.NoError(t, err)
	votes, err := p.RetractVote(ctx, room.Code, "X", "asha")
	require.NoError(t, err)
	assert.NotContains(t, votes, "X")
}

func TestRoomNotFound(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})
	_, err := p.GetRoom(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJoinRequiresUniqueName(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})
	room := makeRoom(t, p, 1)

	_, err := p.Join(context.Background(), room.Code, "asha", models.Coord{Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, ErrParticipantExists)
}

func TestFindMeetingPointsForRoomNeedsTwoParticipants(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})
	room := makeRoom(t, p, 1)

	_, err := p.FindMeetingPointsForRoom(context.Background(), room.Code, "", 5)
	assert.ErrorIs(t, err, ErrTooFewParticipants)
}

func TestPreferenceManagement(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})
	room := makeRoom(t, p, 1)
	ctx := context.Background()

	got, err := p.SetPreferences(ctx, room.Code, []string{"cafe", "Cafe", "park", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe", "park"}, got.Preferences)

	got, err = p.RemovePreference(ctx, room.Code, "park")
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe"}, got.Preferences)

	_, err = p.RemovePreference(ctx, room.Code, "zoo")
	assert.ErrorIs(t, err, ErrPreferenceNotFound)
}

func TestConcurrentVotesStayConsistent(t *testing.T) {
	p, _ := newTestPlanner(&fakeProvider{})
	room := makeRoom(t, p, 5)
	names := []string{"asha", "ben", "chitra", "dev", "esha"}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			_, _ = p.CastVote(context.Background(), room.Code, "X", n, models.Coord{})
		}(name)
	}
	wg.Wait()

	// The third vote reaches majority and freezes the room, so the two
	// stragglers are rejected regardless of arrival order.
	got, err := p.GetRoom(context.Background(), room.Code)
	require.NoError(t, err)
	assert.Len(t, got.Votes["X"], 3)
	assert.Equal(t, models.RoomStatusCompleted, got.Status)
}
