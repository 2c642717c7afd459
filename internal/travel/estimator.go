package travel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/meetpoint/internal/maps"
	"github.com/example/meetpoint/internal/models"
	"github.com/example/meetpoint/internal/observability"
)

const defaultWorkers = 4

// Estimator resolves per-participant travel costs for candidate places.
// One matrix call per candidate covers all origins, bounding provider
// request volume at O(candidates) instead of O(candidates x participants).
type Estimator struct {
	Provider maps.MatrixProvider
	Cache    CostCache // optional
	Workers  int
	Logger   *slog.Logger
}

func NewEstimator(provider maps.MatrixProvider, cache CostCache, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{Provider: provider, Cache: cache, Workers: defaultWorkers, Logger: logger}
}

// Estimate returns costs keyed by place ID. A candidate appears in the
// result only when every origin produced a finite cost; unreachable origins
// or provider failures drop the candidate silently. The call errors with
// maps.ErrProvider only when every candidate's matrix call failed outright.
//
// Candidates are fetched with a bounded fan-out. A caller deadline stops
// the remaining fetches and whatever completed is returned as a partial,
// non-error result.
func (e *Estimator) Estimate(ctx context.Context, candidates []models.Place, origins []models.Participant) (map[string][]models.TravelCost, error) {
	if len(candidates) == 0 || len(origins) == 0 {
		return map[string][]models.TravelCost{}, nil
	}

	workers := e.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	costs := make([][]models.TravelCost, len(candidates))
	providerFailures := make([]bool, len(candidates))

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				costs[i], providerFailures[i] = e.estimateOne(ctx, candidates[i], origins)
			}
		}()
	}

dispatch:
	for i := range candidates {
		select {
		case <-ctx.Done():
			// Deadline: keep what finished, skip the rest.
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	out := make(map[string][]models.TravelCost, len(candidates))
	failed := 0
	for i, c := range costs {
		if providerFailures[i] {
			failed++
		}
		if c != nil {
			out[candidates[i].PlaceID] = c
		}
	}
	if len(out) == 0 && failed == len(candidates) {
		return nil, fmt.Errorf("travel estimation failed for all %d candidates: %w", len(candidates), maps.ErrProvider)
	}
	return out, nil
}

// estimateOne returns the full cost row for one candidate, or nil when the
// candidate must be dropped. The second result reports a provider failure
// (as opposed to an unreachable-origin drop).
func (e *Estimator) estimateOne(ctx context.Context, candidate models.Place, origins []models.Participant) ([]models.TravelCost, bool) {
	cells, cached := e.lookupCached(ctx, candidate, origins)
	if !cached {
		observability.TravelCacheMisses.Inc()
		var err error
		cells, err = e.Provider.Matrix(ctx, originCoords(origins), candidate.Location)
		if err != nil {
			observability.ProviderErrors.WithLabelValues("distancematrix").Inc()
			e.Logger.Warn("matrix call failed", "place_id", candidate.PlaceID, "error", err)
			return nil, true
		}
		if e.Cache != nil {
			for i, origin := range origins {
				e.Cache.Set(ctx, origin.Location, candidate.Location, cells[i])
			}
		}
	} else {
		observability.TravelCacheHits.Inc()
	}

	row := make([]models.TravelCost, 0, len(origins))
	for i, origin := range origins {
		if !cells[i].OK {
			observability.CandidatesDropped.Inc()
			e.Logger.Debug("dropping candidate, origin unreachable",
				"place_id", candidate.PlaceID, "participant", origin.Name)
			return nil, false
		}
		row = append(row, models.TravelCost{
			Participant:     origin.Name,
			PlaceID:         candidate.PlaceID,
			DistanceMeters:  cells[i].DistanceMeters,
			DurationSeconds: cells[i].DurationSeconds,
		})
	}
	return row, false
}

func (e *Estimator) lookupCached(ctx context.Context, candidate models.Place, origins []models.Participant) ([]maps.MatrixCell, bool) {
	if e.Cache == nil {
		return nil, false
	}
	cells := make([]maps.MatrixCell, len(origins))
	for i, origin := range origins {
		cell, ok := e.Cache.Get(ctx, origin.Location, candidate.Location)
		if !ok {
			return nil, false
		}
		cells[i] = cell
	}
	return cells, true
}

func originCoords(origins []models.Participant) []models.Coord {
	coords := make([]models.Coord, len(origins))
	for i, o := range origins {
		coords[i] = o.Location
	}
	return coords
}

// KmFromMeters and MinutesFromSeconds convert raw provider units for
// display at the API boundary.
func KmFromMeters(m float64) float64       { return m / 1000.0 }
func MinutesFromSeconds(s float64) float64 { return s / 60.0 }
