package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/meetpoint/internal/dispatch"
	"github.com/example/meetpoint/internal/maps"
	"github.com/example/meetpoint/internal/models"
	"github.com/example/meetpoint/internal/planner"
	"github.com/example/meetpoint/internal/storage"
	"github.com/example/meetpoint/internal/travel"
	"github.com/example/meetpoint/internal/voting"
)

type Server struct {
	Planner  *planner.Planner
	Geocoder maps.Geocoder
	WSReg    *dispatch.WSRegistry
	TopN     int

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(p *planner.Planner, geocoder maps.Geocoder, wsreg *dispatch.WSRegistry, topN int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if topN <= 0 {
		topN = planner.DefaultTopN
	}
	s := &Server{Planner: p, Geocoder: geocoder, WSReg: wsreg, TopN: topN, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/meeting-points", s.handleMeetingPoints).Methods("POST")
	s.mux.HandleFunc("/api/geocode", s.handleGeocode).Methods("GET")

	s.mux.HandleFunc("/api/rooms", s.handleCreateRoom).Methods("POST")
	s.mux.HandleFunc("/api/rooms/{code}", s.handleGetRoom).Methods("GET")
	s.mux.HandleFunc("/api/rooms/{code}/participants", s.handleJoin).Methods("POST")
	s.mux.HandleFunc("/api/rooms/{code}/preferences", s.handleSetPreferences).Methods("PUT")
	s.mux.HandleFunc("/api/rooms/{code}/preferences/{preference}", s.handleRemovePreference).Methods("DELETE")
	s.mux.HandleFunc("/api/rooms/{code}/meeting-points", s.handleRoomMeetingPoints).Methods("POST")
	s.mux.HandleFunc("/api/rooms/{code}/votes", s.handleCastVote).Methods("POST")
	s.mux.HandleFunc("/api/rooms/{code}/votes", s.handleRetractVote).Methods("DELETE")
	s.mux.HandleFunc("/api/rooms/{code}/votes", s.handleGetVotes).Methods("GET")
	s.mux.HandleFunc("/api/rooms/{code}/final-place", s.handleFinalize).Methods("PUT")

	s.mux.HandleFunc("/ws/{code}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type meetingPointsRequest struct {
	Participants []models.Participant `json:"participants"`
	Preferences  []string             `json:"preferences"`
	PageToken    string               `json:"page_token"`
}

func (s *Server) handleMeetingPoints(w http.ResponseWriter, r *http.Request) {
	var req meetingPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := s.Planner.FindMeetingPoints(r.Context(), req.Participants, req.Preferences, req.PageToken, s.TopN)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationResponse(rec))
}

func (s *Server) handleRoomMeetingPoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageToken string `json:"page_token"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	rec, err := s.Planner.FindMeetingPointsForRoom(r.Context(), mux.Vars(r)["code"], req.PageToken, s.TopN)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationResponse(rec))
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeError(w, http.StatusBadRequest, "address query parameter is required")
		return
	}
	coord, formatted, found, err := s.Geocoder.Geocode(r.Context(), address)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "address not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location":          coord,
		"formatted_address": formatted,
	})
}

type createRoomRequest struct {
	Name        string   `json:"name"`
	Preferences []string `json:"preferences"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room, err := s.Planner.CreateRoom(r.Context(), req.Name, req.Preferences)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.Planner.GetRoom(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

type joinRequest struct {
	Name     string       `json:"name"`
	Location models.Coord `json:"location"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room, err := s.Planner.Join(r.Context(), mux.Vars(r)["code"], req.Name, req.Location)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preferences []string `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room, err := s.Planner.SetPreferences(r.Context(), mux.Vars(r)["code"], req.Preferences)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleRemovePreference(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	room, err := s.Planner.RemovePreference(r.Context(), vars["code"], vars["preference"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

type voteRequest struct {
	PlaceID             string       `json:"place_id"`
	ParticipantName     string       `json:"participant_name"`
	ParticipantLocation models.Coord `json:"participant_location"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	votes, err := s.Planner.CastVote(r.Context(), mux.Vars(r)["code"], req.PlaceID, req.ParticipantName, req.ParticipantLocation)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes})
}

func (s *Server) handleRetractVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	votes, err := s.Planner.RetractVote(r.Context(), mux.Vars(r)["code"], req.PlaceID, req.ParticipantName)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes})
}

func (s *Server) handleGetVotes(w http.ResponseWriter, r *http.Request) {
	room, err := s.Planner.GetRoom(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": room.Votes, "status": room.Status})
}

type finalizeRequest struct {
	PlaceID  string       `json:"place_id"`
	Name     string       `json:"name"`
	Address  string       `json:"address"`
	Location models.Coord `json:"location"`
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room, err := s.Planner.Finalize(r.Context(), mux.Vars(r)["code"], models.MeetingPoint{
		PlaceID:  req.PlaceID,
		Name:     req.Name,
		Address:  req.Address,
		Location: req.Location,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if _, err := s.Planner.GetRoom(r.Context(), code); err != nil {
		s.writeDomainError(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	session := s.WSReg.Subscribe(code, conn)
	// Drain the connection until the peer goes away; subscribers never
	// send application frames.
	go func() {
		defer func() {
			s.WSReg.Unsubscribe(code, session)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// costJSON converts provider units to the display units the API exposes.
type costJSON struct {
	Participant     string  `json:"participant"`
	DistanceKM      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

type rankedPlaceJSON struct {
	models.Place
	TravelCosts       []costJSON `json:"travel_costs"`
	AverageTime       float64    `json:"average_time"`
	MaxTimeDifference float64    `json:"max_time_difference"`
}

func recommendationResponse(rec planner.Recommendation) map[string]any {
	out := make([]rankedPlaceJSON, 0, len(rec.Places))
	for _, rp := range rec.Places {
		costs := make([]costJSON, 0, len(rp.Costs))
		for _, c := range rp.Costs {
			costs = append(costs, costJSON{
				Participant:     c.Participant,
				DistanceKM:      round1(travel.KmFromMeters(c.DistanceMeters)),
				DurationMinutes: round1(travel.MinutesFromSeconds(c.DurationSeconds)),
			})
		}
		out = append(out, rankedPlaceJSON{
			Place:             rp.Place,
			TravelCosts:       costs,
			AverageTime:       round1(travel.MinutesFromSeconds(rp.MeanSeconds)),
			MaxTimeDifference: round1(travel.MinutesFromSeconds(rp.SpreadSeconds)),
		})
	}
	resp := map[string]any{"places": out}
	if rec.NextPageToken != "" {
		resp["next_page_token"] = rec.NextPageToken
	}
	return resp
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, planner.ErrInvalidInput),
		errors.Is(err, planner.ErrTooFewParticipants):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, voting.ErrVoteNotFound),
		errors.Is(err, planner.ErrPreferenceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, voting.ErrDuplicateVote),
		errors.Is(err, planner.ErrRoomCompleted),
		errors.Is(err, planner.ErrParticipantExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, maps.ErrProvider):
		writeError(w, http.StatusBadGateway, "upstream provider unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
