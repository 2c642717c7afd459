package voting

import (
	"errors"
	"time"

	"github.com/example/meetpoint/internal/models"
)

var (
	// ErrDuplicateVote rejects a second vote by the same participant for
	// the same place. Votes for other places remain allowed.
	ErrDuplicateVote = errors.New("participant already voted for this place")

	// ErrVoteNotFound rejects retracting a vote that was never cast.
	ErrVoteNotFound = errors.New("vote not found")
)

// Cast appends a vote to the room's ledger and returns the new tally for
// the place. Callers serialize mutations per room; these functions assume
// exclusive access to the Room value.
func Cast(room *models.Room, placeID, participantName string, location models.Coord, now time.Time) (int, error) {
	if room.Votes == nil {
		room.Votes = make(map[string][]models.Vote)
	}
	for _, v := range room.Votes[placeID] {
		if v.ParticipantName == participantName {
			return len(room.Votes[placeID]), ErrDuplicateVote
		}
	}
	room.Votes[placeID] = append(room.Votes[placeID], models.Vote{
		ParticipantName:     participantName,
		ParticipantLocation: location,
		CastAt:              now,
	})
	return len(room.Votes[placeID]), nil
}

// Retract removes a participant's vote for a place. When the place's last
// vote goes, the place key is removed too, so iterating the ledger never
// yields empty entries.
func Retract(room *models.Room, placeID, participantName string) (int, error) {
	votes, ok := room.Votes[placeID]
	if !ok {
		return 0, ErrVoteNotFound
	}
	idx := -1
	for i, v := range votes {
		if v.ParticipantName == participantName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return len(votes), ErrVoteNotFound
	}

	votes = append(votes[:idx], votes[idx+1:]...)
	if len(votes) == 0 {
		delete(room.Votes, placeID)
		return 0, nil
	}
	room.Votes[placeID] = votes
	return len(votes), nil
}

// Tally is the derived vote count for a place.
func Tally(room *models.Room, placeID string) int {
	return len(room.Votes[placeID])
}

// Votes returns the ordered vote list for a place.
func Votes(room *models.Room, placeID string) []models.Vote {
	return room.Votes[placeID]
}

// VotersFor returns the set of participant names that voted for a place.
func VotersFor(room *models.Room, placeID string) map[string]bool {
	out := make(map[string]bool, len(room.Votes[placeID]))
	for _, v := range room.Votes[placeID] {
		out[v.ParticipantName] = true
	}
	return out
}

// HasMajority reports a strict majority: tally must exceed half the
// participant count, not merely reach it.
func HasMajority(room *models.Room, placeID string) bool {
	if len(room.Participants) == 0 {
		return false
	}
	return float64(Tally(room, placeID)) > float64(len(room.Participants))/2
}

// Finalize freezes the room on the given place. Finalizing an already
// completed room is a no-op.
func Finalize(room *models.Room, point models.MeetingPoint) {
	if room.Status == models.RoomStatusCompleted {
		return
	}
	room.MeetingPoint = &point
	room.Status = models.RoomStatusCompleted
}
