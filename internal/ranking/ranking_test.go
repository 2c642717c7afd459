package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/meetpoint/internal/models"
)

func costed(id string, durations ...float64) (models.Place, []models.TravelCost) {
	p := models.Place{PlaceID: id, Name: id}
	row := make([]models.TravelCost, 0, len(durations))
	for _, d := range durations {
		row = append(row, models.TravelCost{PlaceID: id, DurationSeconds: d})
	}
	return p, row
}

func TestBalancedPrefersLowerSpread(t *testing.T) {
	a, aCosts := costed("even", 600, 650, 700) // spread 100
	b, bCosts := costed("fast", 100, 200, 900) // spread 800, lower mean

	e := &Engine{Strategy: StrategyBalanced}
	out := e.Rank([]models.Place{a, b},
		map[string][]models.TravelCost{"even": aCosts, "fast": bCosts},
		models.Coord{}, 10)

	require.Len(t, out, 2)
	assert.Equal(t, "even", out[0].Place.PlaceID)
}

func TestBalancedMeanBreaksSpreadTies(t *testing.T) {
	a, aCosts := costed("slower", 450, 750) // spread 300, mean 600
	b, bCosts := costed("quicker", 350, 650) // spread 300, mean 500

	e := &Engine{Strategy: StrategyBalanced}
	out := e.Rank([]models.Place{a, b},
		map[string][]models.TravelCost{"slower": aCosts, "quicker": bCosts},
		models.Coord{}, 10)

	require.Len(t, out, 2)
	assert.Equal(t, "quicker", out[0].Place.PlaceID)
	assert.Equal(t, 500.0, out[0].MeanSeconds)
	assert.Equal(t, 300.0, out[0].SpreadSeconds)
}

func TestRatedWeighsRatingAgainstTime(t *testing.T) {
	near, nearCosts := costed("near", 300, 300)
	far, farCosts := costed("far", 500, 500)
	near.Rating = 4.0
	far.Rating = 5.0 // 300s of credit over near, beating the 200s penalty

	e := &Engine{Strategy: StrategyRated}
	out := e.Rank([]models.Place{near, far},
		map[string][]models.TravelCost{"near": nearCosts, "far": farCosts},
		models.Coord{}, 10)

	require.Len(t, out, 2)
	assert.Equal(t, "far", out[0].Place.PlaceID)
}

func TestRankTruncatesToTopN(t *testing.T) {
	places := make([]models.Place, 0, 8)
	costs := make(map[string][]models.TravelCost, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		p, row := costed(id, 600)
		places = append(places, p)
		costs[id] = row
	}

	e := &Engine{}
	out := e.Rank(places, costs, models.Coord{}, 5)
	assert.Len(t, out, 5)
}

func TestRankDeterministicOnFullTies(t *testing.T) {
	a, aCosts := costed("zeta", 600, 700)
	b, bCosts := costed("alpha", 600, 700)

	e := &Engine{}
	out := e.Rank([]models.Place{a, b},
		map[string][]models.TravelCost{"zeta": aCosts, "alpha": bCosts},
		models.Coord{}, 10)

	require.Len(t, out, 2)
	assert.Equal(t, "alpha", out[0].Place.PlaceID)
}

func TestRankSkipsUncostedCandidates(t *testing.T) {
	a, aCosts := costed("costed", 600)
	b := models.Place{PlaceID: "uncosted"}

	e := &Engine{}
	out := e.Rank([]models.Place{a, b},
		map[string][]models.TravelCost{"costed": aCosts},
		models.Coord{}, 10)

	require.Len(t, out, 1)
	assert.Equal(t, "costed", out[0].Place.PlaceID)
}

func TestRankEmptyFallsBackToCenterPoint(t *testing.T) {
	e := &Engine{}
	centroid := models.Coord{Lat: 21.15, Lng: 79.09}

	out := e.Rank(nil, nil, centroid, 5)
	require.Len(t, out, 1)
	assert.Equal(t, CenterPointID, out[0].Place.PlaceID)
	assert.Equal(t, centroid, out[0].Place.Location)
	assert.Zero(t, out[0].MeanSeconds)
	assert.Zero(t, out[0].SpreadSeconds)
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, StrategyBalanced, ParseStrategy(""))
	assert.Equal(t, StrategyBalanced, ParseStrategy("nonsense"))
	assert.Equal(t, StrategyRated, ParseStrategy("rated"))
}
