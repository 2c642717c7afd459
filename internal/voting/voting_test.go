package voting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/meetpoint/internal/models"
)

func room(participantCount int) *models.Room {
	r := &models.Room{Code: "ABC123", Status: models.RoomStatusActive}
	names := []string{"asha", "ben", "chitra", "dev", "esha"}
	for i := 0; i < participantCount; i++ {
		r.Participants = append(r.Participants, models.Participant{Name: names[i]})
	}
	return r
}

func TestCastAndTally(t *testing.T) {
	r := room(3)
	now := time.Now()

	tally, err := Cast(r, "X", "asha", models.Coord{Lat: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, tally)

	tally, err = Cast(r, "X", "ben", models.Coord{Lat: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, tally)
	assert.Equal(t, 2, Tally(r, "X"))

	votes := Votes(r, "X")
	require.Len(t, votes, 2)
	assert.Equal(t, "asha", votes[0].ParticipantName)
	assert.Equal(t, now, votes[0].CastAt)
}

func TestDuplicateVoteRejectedAndTallyUnchanged(t *testing.T) {
	r := room(3)
	_, err := Cast(r, "X", "asha", models.Coord{}, time.Now())
	require.NoError(t, err)

	_, err = Cast(r, "X", "asha", models.Coord{}, time.Now())
	assert.ErrorIs(t, err, ErrDuplicateVote)
	assert.Equal(t, 1, Tally(r, "X"))
}

func TestSameParticipantMayVoteForOtherPlaces(t *testing.T) {
	r := room(3)
	_, err := Cast(r, "X", "asha", models.Coord{}, time.Now())
	require.NoError(t, err)
	_, err = Cast(r, "Y", "asha", models.Coord{}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, Tally(r, "X"))
	assert.Equal(t, 1, Tally(r, "Y"))
}

func TestRetractRemovesEmptyEntry(t *testing.T) {
	r := room(3)
	_, err := Cast(r, "X", "asha", models.Coord{}, time.Now())
	require.NoError(t, err)

	tally, err := Retract(r, "X", "asha")
	require.NoError(t, err)
	assert.Zero(t, tally)
	assert.Zero(t, Tally(r, "X"))
	assert.NotContains(t, r.Votes, "X")
}

func TestRetractKeepsOtherVotes(t *testing.T) {
	r := room(3)
	_, _ = Cast(r, "X", "asha", models.Coord{}, time.Now())
	_, _ = Cast(r, "X", "ben", models.Coord{}, time.Now())

	tally, err := Retract(r, "X", "asha")
	require.NoError(t, err)
	assert.Equal(t, 1, tally)
	assert.Equal(t, "ben", Votes(r, "X")[0].ParticipantName)
}

func TestRetractMissingVote(t *testing.T) {
	r := room(3)
	_, err := Retract(r, "X", "asha")
	assert.ErrorIs(t, err, ErrVoteNotFound)

	_, _ = Cast(r, "X", "ben", models.Coord{}, time.Now())
	_, err = Retract(r, "X", "asha")
	assert.ErrorIs(t, err, ErrVoteNotFound)
}

func TestStrictMajority(t *testing.T) {
	r := room(4)
	_, _ = Cast(r, "X", "asha", models.Coord{}, time.Now())
	_, _ = Cast(r, "X", "ben", models.Coord{}, time.Now())
	assert.False(t, HasMajority(r, "X"), "2 of 4 is not a strict majority")

	_, _ = Cast(r, "X", "chitra", models.Coord{}, time.Now())
	assert.True(t, HasMajority(r, "X"), "3 of 4 is a strict majority")
}

func TestMajorityOddParticipants(t *testing.T) {
	r := room(3)
	_, _ = Cast(r, "X", "asha", models.Coord{}, time.Now())
	assert.False(t, HasMajority(r, "X"))
	_, _ = Cast(r, "X", "ben", models.Coord{}, time.Now())
	assert.True(t, HasMajority(r, "X"))
}

func TestVotersFor(t *testing.T) {
	r := room(3)
	_, _ = Cast(r, "X", "asha", models.Coord{}, time.Now())
	_, _ = Cast(r, "X", "ben", models.Coord{}, time.Now())

	voters := VotersFor(r, "X")
	assert.True(t, voters["asha"])
	assert.True(t, voters["ben"])
	assert.False(t, voters["chitra"])
}

func TestFinalizeIsTerminal(t *testing.T) {
	r := room(3)
	Finalize(r, models.MeetingPoint{PlaceID: "X", Name: "Cafe X"})
	assert.Equal(t, models.RoomStatusCompleted, r.Status)
	require.NotNil(t, r.MeetingPoint)
	assert.Equal(t, "X", r.MeetingPoint.PlaceID)

	Finalize(r, models.MeetingPoint{PlaceID: "Y"})
	assert.Equal(t, "X", r.MeetingPoint.PlaceID, "completed room must not be re-finalized")
}
