package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/technoelf/stomata/internal/notifier"
	"github.com/technoelf/stomata/internal/station"
)

type createStationRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type createStationResponse struct {
	Token string `json:"token"`
}

type stationResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type renameStationRequest struct {
	Name string `json:"name"`
}

type stateBody struct {
	State string `json:"state"`
}

type configBody struct {
	Config string `json:"conf"`
}

type presenceResponse struct {
	Connected bool `json:"connected"`
}

// empty is the {} body returned by successful updates.
type empty struct{}

// handleCreateStation provisions a station and returns its token. The token
// is not stored; only its argon2id hash is.
func (s *Server) handleCreateStation(w http.ResponseWriter, r *http.Request) {
	var req createStationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	token := s.generateToken()
	hash, err := s.hashToken(req.ID, token)
	if err != nil {
		s.logger.Error("hashing station token", "station_id", req.ID, "error", err)
		writeInternalError(w, "failed to create station")
		return
	}

	st := &station.Station{ID: req.ID, Name: req.Name, TokenHash: hash}
	if err := s.stations.Create(r.Context(), st); err != nil {
		if s.writeStationError(w, err) {
			return
		}
		s.logger.Error("creating station", "station_id", req.ID, "error", err)
		writeInternalError(w, "failed to create station")
		return
	}

	s.logger.Info("station provisioned", "station_id", st.ID)
	writeJSON(w, http.StatusCreated, createStationResponse{Token: token})
}

func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadStation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stationResponse{ID: st.ID, Name: st.Name})
}

func (s *Server) handleRenameStation(w http.ResponseWriter, r *http.Request) {
	var req renameStationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	id := stationIDFromContext(r.Context())
	if err := s.stations.UpdateName(r.Context(), id, req.Name); err != nil {
		s.failUpdate(w, id, "name", err)
		return
	}
	writeJSON(w, http.StatusOK, empty{})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadStation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateBody{State: st.State})
}

// handleSetState stores the new state and pushes it to the station.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	var req stateBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	id := stationIDFromContext(r.Context())
	if err := s.stations.UpdateState(r.Context(), id, req.State); err != nil {
		s.failUpdate(w, id, "state", err)
		return
	}
	s.push(w, notifier.UpdateState{ID: id, State: req.State})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadStation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, configBody{Config: st.Config})
}

// handleSetConfig stores the configuration blob and pushes it to the station.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req configBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	id := stationIDFromContext(r.Context())
	if err := s.stations.UpdateConfig(r.Context(), id, req.Config); err != nil {
		s.failUpdate(w, id, "config", err)
		return
	}
	s.push(w, notifier.UpdateConfig{ID: id, Config: req.Config})
}

// handleGetPresence answers from the notifier's last published snapshot.
func (s *Server) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	id := stationIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, presenceResponse{Connected: s.notifier.Connected(id)})
}

// push enqueues p after the value has been stored. A full queue is reported
// as 503; the stored value stays and is returned by the GET endpoints.
func (s *Server) push(w http.ResponseWriter, p notifier.Push) {
	if err := s.notifier.Enqueue(p); err != nil {
		s.logger.Warn("push not queued", "station_id", p.StationID(), "kind", p.Kind(), "error", err)
		if errors.Is(err, notifier.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeQueueFull, "saved, but the station could not be notified")
			return
		}
		writeInternalError(w, "failed to queue push")
		return
	}
	writeJSON(w, http.StatusOK, empty{})
}

func (s *Server) loadStation(w http.ResponseWriter, r *http.Request) (*station.Station, bool) {
	id := stationIDFromContext(r.Context())
	st, err := s.stations.GetByID(r.Context(), id)
	if err != nil {
		if !s.writeStationError(w, err) {
			s.logger.Error("loading station", "station_id", id, "error", err)
			writeInternalError(w, "failed to load station")
		}
		return nil, false
	}
	return st, true
}

func (s *Server) failUpdate(w http.ResponseWriter, id int64, field string, err error) {
	if s.writeStationError(w, err) {
		return
	}
	s.logger.Error("updating station", "station_id", id, "field", field, "error", err)
	writeInternalError(w, "failed to update station")
}

// writeStationError maps station sentinel errors to responses. It returns
// false when err is not one of them.
func (s *Server) writeStationError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, station.ErrStationNotFound):
		writeNotFound(w, "station not found")
	case errors.Is(err, station.ErrStationExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "station already exists")
	case errors.Is(err, station.ErrInvalidID),
		errors.Is(err, station.ErrInvalidName),
		errors.Is(err, station.ErrInvalidState),
		errors.Is(err, station.ErrInvalidConfig):
		writeValidationError(w, err.Error())
	default:
		return false
	}
	return true
}
