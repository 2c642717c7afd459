package places

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/meetpoint/internal/maps"
	"github.com/example/meetpoint/internal/models"
	"github.com/example/meetpoint/internal/observability"
)

// qualifiers are tried in order, per preference, when the plain term does
// not fill the per-preference quota.
var qualifiers = []string{"best", "popular", "new", "trendy", "cool"}

const (
	// DefaultRadiusMeters bounds the search around the centroid. The planar
	// centroid approximation in internal/geo relies on radii of this scale.
	DefaultRadiusMeters = 5000

	// perPreference caps retained candidates collected for one preference
	// term, a cost control on provider queries.
	perPreference = 5
)

type Params struct {
	Center       models.Coord
	Preferences  []string
	RadiusMeters int
	// PageToken continues a prior search. It is opaque provider state and
	// is forwarded unmodified.
	PageToken string
}

type Result struct {
	Places        []models.Place
	NextPageToken string
}

// Service collects candidate places for a set of preference terms,
// deduplicating by place ID and keeping only candidates that pass the
// quality gate.
type Service struct {
	Provider maps.PlaceSearcher
	Logger   *slog.Logger
}

func NewService(provider maps.PlaceSearcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Provider: provider, Logger: logger}
}

// Retained is the quality gate: young-but-liked places or established
// well-rated ones. Everything else is dropped, trading recall for quality.
func Retained(p models.Place) bool {
	newPlace := p.RatingCount >= 5 && p.Rating >= 3.8
	establishedPlace := p.Rating >= 4.0 && p.RatingCount >= 10
	return newPlace || establishedPlace
}

// matchesTerm keeps a result only when it plausibly answers the preference:
// the term appears in the place name or one of its category tags.
func matchesTerm(p models.Place, term string) bool {
	if strings.Contains(strings.ToLower(p.Name), term) {
		return true
	}
	for _, t := range p.Types {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

// Search runs one candidate collection round. Per-preference provider
// failures are logged and skipped; the call fails with maps.ErrProvider only
// when every attempted query failed. Zero retained candidates with at least
// one successful query is a valid empty result.
func (s *Service) Search(ctx context.Context, p Params) (Result, error) {
	if p.RadiusMeters <= 0 {
		p.RadiusMeters = DefaultRadiusMeters
	}
	if p.PageToken != "" {
		return s.continuePage(ctx, p)
	}

	seen := make(map[string]bool)
	var out Result
	attempted, failed := 0, 0

	for _, pref := range p.Preferences {
		term := TermFor(pref)
		if term.Term == "" {
			continue
		}
		retained := 0

		queries := make([]string, 0, len(qualifiers)+1)
		queries = append(queries, term.Term)
		for _, q := range qualifiers {
			queries = append(queries, q+" "+term.Term)
		}

		for i, query := range queries {
			if retained >= perPreference {
				break
			}
			attempted++
			page, err := s.Provider.TextSearch(ctx, query, p.Center, p.RadiusMeters, "")
			if err != nil {
				failed++
				observability.ProviderErrors.WithLabelValues("textsearch").Inc()
				s.Logger.Warn("place search query failed", "query", query, "error", err)
				continue
			}
			if i == 0 && out.NextPageToken == "" {
				out.NextPageToken = page.NextPageToken
			}
			retained += s.collect(page.Results, term.Term, pref, seen, perPreference-retained, &out.Places)
		}

		// One wider pass when the preference produced nothing at all.
		if retained == 0 {
			attempted++
			page, err := s.Provider.TextSearch(ctx, term.Term, p.Center, p.RadiusMeters*2, "")
			if err != nil {
				failed++
				observability.ProviderErrors.WithLabelValues("textsearch").Inc()
				s.Logger.Warn("wider place search failed", "term", term.Term, "error", err)
				continue
			}
			s.collect(page.Results, term.Term, pref, seen, perPreference, &out.Places)
		}
	}

	if attempted > 0 && failed == attempted {
		return Result{}, fmt.Errorf("place search failed for all %d queries: %w", attempted, maps.ErrProvider)
	}
	observability.CandidatesRetained.Add(float64(len(out.Places)))
	return out, nil
}

// continuePage follows a provider continuation token with a single joined
// query. Candidates from earlier pages are not re-checked here, so a place
// can repeat across pages; callers concatenate pages as-is.
func (s *Service) continuePage(ctx context.Context, p Params) (Result, error) {
	query := strings.ToLower(strings.Join(p.Preferences, " "))
	page, err := s.Provider.TextSearch(ctx, query, p.Center, p.RadiusMeters, p.PageToken)
	if err != nil {
		observability.ProviderErrors.WithLabelValues("textsearch").Inc()
		return Result{}, fmt.Errorf("continue page: %w", err)
	}

	seen := make(map[string]bool)
	out := Result{NextPageToken: page.NextPageToken}
	for _, place := range page.Results {
		if place.PlaceID == "" || seen[place.PlaceID] || !Retained(place) {
			continue
		}
		seen[place.PlaceID] = true
		out.Places = append(out.Places, place)
	}
	observability.CandidatesRetained.Add(float64(len(out.Places)))
	return out, nil
}

func (s *Service) collect(results []models.Place, term, pref string, seen map[string]bool, limit int, out *[]models.Place) int {
	added := 0
	for _, place := range results {
		if added >= limit {
			break
		}
		if place.PlaceID == "" || seen[place.PlaceID] {
			continue
		}
		if !matchesTerm(place, term) || !Retained(place) {
			continue
		}
		seen[place.PlaceID] = true
		place.Preference = pref
		*out = append(*out, place)
		added++
	}
	return added
}
