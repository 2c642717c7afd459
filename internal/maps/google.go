package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/meetpoint/internal/models"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// GoogleClient talks to the Google Maps web service endpoints (Places text
// search, Distance Matrix, Geocoding) over plain HTTP. It is stateless apart
// from the API key and can be shared across goroutines.
type GoogleClient struct {
	BaseURL string
	Key     string
	Client  *http.Client
}

func NewGoogleClient(key string) *GoogleClient {
	return &GoogleClient{
		BaseURL: defaultBaseURL,
		Key:     key,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type googlePlace struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string   `json:"formatted_address"`
	Vicinity         string   `json:"vicinity"`
	Types            []string `json:"types"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
}

func (p googlePlace) toModel() models.Place {
	addr := p.FormattedAddress
	if addr == "" {
		addr = p.Vicinity
	}
	return models.Place{
		PlaceID:     p.PlaceID,
		Name:        p.Name,
		Address:     addr,
		Location:    models.Coord{Lat: p.Geometry.Location.Lat, Lng: p.Geometry.Location.Lng},
		Types:       p.Types,
		Rating:      p.Rating,
		RatingCount: p.UserRatingsTotal,
	}
}

// TextSearch queries /place/textsearch/json. ZERO_RESULTS yields an empty
// page; every other non-OK status is an ErrProvider.
func (g *GoogleClient) TextSearch(ctx context.Context, query string, center models.Coord, radiusMeters int, pageToken string) (PlacePage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("location", formatCoord(center))
	params.Set("radius", strconv.Itoa(radiusMeters))
	params.Set("key", g.Key)
	if pageToken != "" {
		params.Set("pagetoken", pageToken)
	}

	var out struct {
		Results       []googlePlace `json:"results"`
		NextPageToken string        `json:"next_page_token"`
		Status        string        `json:"status"`
	}
	if err := g.get(ctx, "/place/textsearch/json", params, &out); err != nil {
		return PlacePage{}, err
	}
	if out.Status == "ZERO_RESULTS" {
		return PlacePage{}, nil
	}
	if out.Status != "OK" {
		return PlacePage{}, fmt.Errorf("%w: textsearch status %s", ErrProvider, out.Status)
	}

	page := PlacePage{NextPageToken: out.NextPageToken}
	page.Results = make([]models.Place, 0, len(out.Results))
	for _, p := range out.Results {
		page.Results = append(page.Results, p.toModel())
	}
	return page, nil
}

// Matrix queries /distancematrix/json with all origins against one
// destination in a single call. Per-cell failures come back as OK=false,
// never as an error.
func (g *GoogleClient) Matrix(ctx context.Context, origins []models.Coord, destination models.Coord) ([]MatrixCell, error) {
	params := url.Values{}
	params.Set("origins", joinCoords(origins))
	params.Set("destinations", formatCoord(destination))
	params.Set("mode", "driving")
	params.Set("key", g.Key)

	var out struct {
		Rows []struct {
			Elements []struct {
				Status   string `json:"status"`
				Distance struct {
					Value float64 `json:"value"`
				} `json:"distance"`
				Duration struct {
					Value float64 `json:"value"`
				} `json:"duration"`
			} `json:"elements"`
		} `json:"rows"`
		Status string `json:"status"`
	}
	if err := g.get(ctx, "/distancematrix/json", params, &out); err != nil {
		return nil, err
	}
	if out.Status != "OK" {
		return nil, fmt.Errorf("%w: distancematrix status %s", ErrProvider, out.Status)
	}
	if len(out.Rows) != len(origins) {
		return nil, fmt.Errorf("%w: distancematrix returned %d rows for %d origins", ErrProvider, len(out.Rows), len(origins))
	}

	cells := make([]MatrixCell, len(origins))
	for i, row := range out.Rows {
		if len(row.Elements) == 0 || row.Elements[0].Status != "OK" {
			continue
		}
		cells[i] = MatrixCell{
			DistanceMeters:  row.Elements[0].Distance.Value,
			DurationSeconds: row.Elements[0].Duration.Value,
			OK:              true,
		}
	}
	return cells, nil
}

// Geocode resolves an address via /geocode/json. ZERO_RESULTS reports
// ok=false without an error.
func (g *GoogleClient) Geocode(ctx context.Context, address string) (models.Coord, string, bool, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.Key)

	var out struct {
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := g.get(ctx, "/geocode/json", params, &out); err != nil {
		return models.Coord{}, "", false, err
	}
	if out.Status == "ZERO_RESULTS" || len(out.Results) == 0 {
		return models.Coord{}, "", false, nil
	}
	if out.Status != "OK" {
		return models.Coord{}, "", false, fmt.Errorf("%w: geocode status %s", ErrProvider, out.Status)
	}
	first := out.Results[0]
	loc := models.Coord{Lat: first.Geometry.Location.Lat, Lng: first.Geometry.Location.Lng}
	return loc, first.FormattedAddress, true, nil
}

func (g *GoogleClient) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: http %d from %s", ErrProvider, resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrProvider, path, err)
	}
	return nil
}

func formatCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

func joinCoords(coords []models.Coord) string {
	s := ""
	for i, c := range coords {
		if i > 0 {
			s += "|"
		}
		s += formatCoord(c)
	}
	return s
}
