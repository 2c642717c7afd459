package models

import "time"

type Coord struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

type Participant struct {
	Name     string    `json:"name" bson:"name"`
	Location Coord     `json:"location" bson:"location"`
	JoinedAt time.Time `json:"joined_at,omitempty" bson:"joined_at,omitempty"`
}

// Place is one candidate returned by the place-search provider. It is
// transient: recomputed per recommendation request, persisted only when it
// becomes a room's finalized meeting point.
type Place struct {
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Location    Coord    `json:"location"`
	Types       []string `json:"types"`
	Rating      float64  `json:"rating"`
	RatingCount int      `json:"total_ratings"`
	Preference  string   `json:"preference,omitempty"`
}

// TravelCost is one participant's cost to reach one candidate, in raw
// provider units (meters, seconds). Display conversion happens at the HTTP
// boundary.
type TravelCost struct {
	Participant     string  `json:"participant"`
	PlaceID         string  `json:"place_id"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RankedPlace is a scored candidate in a recommendation result.
type RankedPlace struct {
	Place       Place        `json:"place"`
	Costs       []TravelCost `json:"costs"`
	MeanSeconds float64      `json:"average_time"`
	// SpreadSeconds is max-min travel time across participants, the
	// fairness metric.
	SpreadSeconds float64 `json:"max_time_difference"`
}

type Vote struct {
	ParticipantName     string    `json:"participant_name" bson:"participant_name"`
	ParticipantLocation Coord     `json:"participant_location" bson:"participant_location"`
	CastAt              time.Time `json:"timestamp" bson:"timestamp"`
}

// MeetingPoint is the frozen place a room settled on.
type MeetingPoint struct {
	PlaceID  string `json:"place_id" bson:"place_id"`
	Name     string `json:"name" bson:"name"`
	Address  string `json:"address" bson:"address"`
	Location Coord  `json:"location" bson:"location"`
}

const (
	RoomStatusActive    = "active"
	RoomStatusCompleted = "completed"
)

type Room struct {
	Code         string            `json:"code" bson:"code"`
	Name         string            `json:"name" bson:"name"`
	Participants []Participant     `json:"participants" bson:"participants"`
	Preferences  []string          `json:"preferences" bson:"preferences"`
	Votes        map[string][]Vote `json:"votes" bson:"votes"`
	Status       string            `json:"status" bson:"status"`
	MeetingPoint *MeetingPoint     `json:"meeting_point,omitempty" bson:"meeting_point,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
}

// RoomEvent is published to Kafka after every vote mutation and
// finalization.
type RoomEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	RoomCode    string    `json:"room_code"`
	PlaceID     string    `json:"place_id,omitempty"`
	Participant string    `json:"participant,omitempty"`
	Tally       int       `json:"tally"`
	OccurredAt  time.Time `json:"occurred_at"`
}

const (
	EventVoteCast      = "vote_cast"
	EventVoteRetracted = "vote_retracted"
	EventRoomFinalized = "room_finalized"
)
