package maps

import (
	"context"
	"errors"

	"github.com/example/meetpoint/internal/models"
)

// ErrProvider marks a non-recoverable provider response. Callers decide
// whether a single failed query is fatal; the recommendation pipeline
// absorbs per-query failures and only escalates when every attempt failed.
var ErrProvider = errors.New("maps provider error")

// PlacePage is one page of text-search results together with the opaque
// continuation token, passed through unmodified.
type PlacePage struct {
	Results       []models.Place
	NextPageToken string
}

// PlaceSearcher is the narrow place-search capability the candidate search
// consumes. A zero-result page is a valid, non-error outcome.
type PlaceSearcher interface {
	TextSearch(ctx context.Context, query string, center models.Coord, radiusMeters int, pageToken string) (PlacePage, error)
}

// MatrixCell is one origin->destination result. OK is false when the
// provider could not route that pair.
type MatrixCell struct {
	DistanceMeters  float64
	DurationSeconds float64
	OK              bool
}

// MatrixProvider answers one distance-matrix query: every origin against a
// single destination, driving mode.
type MatrixProvider interface {
	Matrix(ctx context.Context, origins []models.Coord, destination models.Coord) ([]MatrixCell, error)
}

// Geocoder resolves a free-text address to a coordinate. A not-found
// address returns ok=false with a nil error.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coord, string, bool, error)
}
