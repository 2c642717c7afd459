package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/meetpoint/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GoogleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewGoogleClient("test-key")
	c.BaseURL = srv.URL
	return c
}

func TestTextSearchParsesPlaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/place/textsearch/json", r.URL.Path)
		assert.Equal(t, "cafe", r.URL.Query().Get("query"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{
			"status": "OK",
			"next_page_token": "tok-2",
			"results": [{
				"place_id": "p1",
				"name": "Cafe Uno",
				"formatted_address": "1 Main St",
				"geometry": {"location": {"lat": 21.1, "lng": 79.1}},
				"types": ["cafe", "food"],
				"rating": 4.2,
				"user_ratings_total": 120
			}]
		}`))
	})

	page, err := c.TextSearch(context.Background(), "cafe", models.Coord{Lat: 21, Lng: 79}, 5000, "")
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "p1", page.Results[0].PlaceID)
	assert.Equal(t, "1 Main St", page.Results[0].Address)
	assert.Equal(t, 4.2, page.Results[0].Rating)
	assert.Equal(t, 120, page.Results[0].RatingCount)
	assert.Equal(t, "tok-2", page.NextPageToken)
}

func TestTextSearchZeroResultsIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	})

	page, err := c.TextSearch(context.Background(), "xyzzy", models.Coord{}, 5000, "")
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Empty(t, page.NextPageToken)
}

func TestTextSearchNonOKStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OVER_QUERY_LIMIT"}`))
	})

	_, err := c.TextSearch(context.Background(), "cafe", models.Coord{}, 5000, "")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestTextSearchForwardsPageToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("pagetoken"))
		w.Write([]byte(`{"status": "OK", "results": []}`))
	})

	_, err := c.TextSearch(context.Background(), "cafe", models.Coord{}, 5000, "tok-1")
	require.NoError(t, err)
}

func TestMatrixMarksFailedCells(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/distancematrix/json", r.URL.Path)
		assert.Equal(t, "driving", r.URL.Query().Get("mode"))
		w.Write([]byte(`{
			"status": "OK",
			"rows": [
				{"elements": [{"status": "OK", "distance": {"value": 1200}, "duration": {"value": 300}}]},
				{"elements": [{"status": "ZERO_RESULTS"}]}
			]
		}`))
	})

	cells, err := c.Matrix(context.Background(),
		[]models.Coord{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}},
		models.Coord{Lat: 3, Lng: 3})
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.True(t, cells[0].OK)
	assert.Equal(t, 1200.0, cells[0].DistanceMeters)
	assert.Equal(t, 300.0, cells[0].DurationSeconds)
	assert.False(t, cells[1].OK)
}

func TestMatrixTopLevelFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "REQUEST_DENIED", "rows": []}`))
	})

	_, err := c.Matrix(context.Background(), []models.Coord{{Lat: 1, Lng: 1}}, models.Coord{})
	assert.ErrorIs(t, err, ErrProvider)
}

func TestGeocode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == "nowhere" {
			w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
			return
		}
		w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "Nagpur, Maharashtra, India",
				"geometry": {"location": {"lat": 21.1458, "lng": 79.0882}}
			}]
		}`))
	})

	loc, addr, ok, err := c.Geocode(context.Background(), "Nagpur")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 21.1458, loc.Lat, 1e-9)
	assert.Equal(t, "Nagpur, Maharashtra, India", addr)

	_, _, ok, err = c.Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, ok)
}
