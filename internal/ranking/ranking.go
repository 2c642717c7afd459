package ranking

import (
	"sort"

	"github.com/example/meetpoint/internal/models"
)

// Strategy selects the comparator used to order candidates. Exactly one
// strategy is active per deployment; they are never mixed.
type Strategy string

const (
	// StrategyBalanced minimizes the travel-time spread across
	// participants first, mean travel time second. This is the default:
	// fairness before speed.
	StrategyBalanced Strategy = "balanced"

	// StrategyRated blends mean travel time with the provider rating,
	// valuing one rating point at ratingWeightSeconds.
	StrategyRated Strategy = "rated"
)

const ratingWeightSeconds = 300.0

// CenterPointID is the reserved place ID of the synthetic fallback
// candidate returned when no real candidate survived costing. Callers must
// not present it as a real venue.
const CenterPointID = "center_point"

// ParseStrategy maps a config string onto a strategy, defaulting to
// balanced.
func ParseStrategy(s string) Strategy {
	if Strategy(s) == StrategyRated {
		return StrategyRated
	}
	return StrategyBalanced
}

// Engine scores and orders costed candidates.
type Engine struct {
	Strategy Strategy
}

// Rank builds RankedPlaces from candidates and their travel costs, orders
// them by the engine's strategy, and truncates to topN. Candidates missing
// from costs are ignored. With nothing to rank, a single center-point
// sentinel at the given centroid is returned instead of an empty list.
//
// Ordering is deterministic for identical inputs: ties after the strategy
// comparator fall back to place ID.
func (e *Engine) Rank(candidates []models.Place, costs map[string][]models.TravelCost, centroid models.Coord, topN int) []models.RankedPlace {
	ranked := make([]models.RankedPlace, 0, len(candidates))
	for _, c := range candidates {
		row, ok := costs[c.PlaceID]
		if !ok || len(row) == 0 {
			continue
		}
		ranked = append(ranked, score(c, row))
	}

	if len(ranked) == 0 {
		return []models.RankedPlace{sentinel(centroid)}
	}

	less := e.less()
	sort.Slice(ranked, func(i, j int) bool {
		if less(ranked[i], ranked[j]) {
			return true
		}
		if less(ranked[j], ranked[i]) {
			return false
		}
		return ranked[i].Place.PlaceID < ranked[j].Place.PlaceID
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func (e *Engine) less() func(a, b models.RankedPlace) bool {
	if e.Strategy == StrategyRated {
		return func(a, b models.RankedPlace) bool {
			return ratedScore(a) < ratedScore(b)
		}
	}
	return func(a, b models.RankedPlace) bool {
		if a.SpreadSeconds != b.SpreadSeconds {
			return a.SpreadSeconds < b.SpreadSeconds
		}
		return a.MeanSeconds < b.MeanSeconds
	}
}

// ratedScore values a rating point at ratingWeightSeconds of mean travel
// time, so a 4.5-star place beats a 4.0-star place up to 150 seconds
// further away.
func ratedScore(r models.RankedPlace) float64 {
	return r.MeanSeconds + ratingWeightSeconds*(5.0-r.Place.Rating)
}

func score(place models.Place, row []models.TravelCost) models.RankedPlace {
	var sum float64
	min, max := row[0].DurationSeconds, row[0].DurationSeconds
	for _, c := range row {
		sum += c.DurationSeconds
		if c.DurationSeconds < min {
			min = c.DurationSeconds
		}
		if c.DurationSeconds > max {
			max = c.DurationSeconds
		}
	}
	return models.RankedPlace{
		Place:         place,
		Costs:         row,
		MeanSeconds:   sum / float64(len(row)),
		SpreadSeconds: max - min,
	}
}

func sentinel(centroid models.Coord) models.RankedPlace {
	return models.RankedPlace{
		Place: models.Place{
			PlaceID:  CenterPointID,
			Name:     "Center Point",
			Address:  "Approximate center of all locations",
			Location: centroid,
			Types:    []string{"meeting_point"},
		},
	}
}
