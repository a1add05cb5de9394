package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/fare"
	"github.com/example/ride-dispatch/internal/maps"
	"github.com/example/ride-dispatch/internal/models"
)

// The auth gateway terminates credentials and forwards the verified
// caller identity in these headers.
const (
	headerPartyID   = "X-Party-ID"
	headerPartyRole = "X-Party-Role"

	roleRider    = "rider"
	roleOperator = "operator"
)

func identity(r *http.Request) (id, role string) {
	return r.Header.Get(headerPartyID), r.Header.Get(headerPartyRole)
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	callerID, role := identity(r)
	if callerID == "" || role != roleRider {
		http.Error(w, "rider identity required", http.StatusForbidden)
		return
	}
	var req models.RideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ride, err := s.orch.CreateRide(r.Context(), callerID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleQuoteFare(w http.ResponseWriter, r *http.Request) {
	if callerID, role := identity(r); callerID == "" || role != roleRider {
		http.Error(w, "rider identity required", http.StatusForbidden)
		return
	}
	q := r.URL.Query()
	quote, err := s.orch.QuoteFare(r.Context(), q.Get("pickup"), q.Get("destination"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type rideActionRequest struct {
	RideID string `json:"ride_id"`
	Code   string `json:"code,omitempty"`
}

func (s *Server) operatorAction(w http.ResponseWriter, r *http.Request) (operatorID string, req rideActionRequest, ok bool) {
	callerID, role := identity(r)
	if callerID == "" || role != roleOperator {
		http.Error(w, "operator identity required", http.StatusForbidden)
		return "", req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", req, false
	}
	return callerID, req, true
}

func (s *Server) handleConfirmRide(w http.ResponseWriter, r *http.Request) {
	operatorID, req, ok := s.operatorAction(w, r)
	if !ok {
		return
	}
	ride, err := s.orch.AcceptRide(r.Context(), operatorID, req.RideID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleStartRide(w http.ResponseWriter, r *http.Request) {
	operatorID, req, ok := s.operatorAction(w, r)
	if !ok {
		return
	}
	ride, err := s.orch.StartRide(r.Context(), operatorID, req.RideID, req.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleEndRide(w http.ResponseWriter, r *http.Request) {
	operatorID, req, ok := s.operatorAction(w, r)
	if !ok {
		return
	}
	ride, err := s.orch.EndRide(r.Context(), operatorID, req.RideID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

// handleOperatorLocation takes position reports from the operator app
// backend. The report goes to Kafka for the shared index; when Kafka
// is not configured the local index is updated directly.
func (s *Server) handleOperatorLocation(w http.ResponseWriter, r *http.Request) {
	var op models.Operator
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if op.ID == "" {
		http.Error(w, "operator id required", http.StatusBadRequest)
		return
	}
	s.ingestPosition(r.Context(), op)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dispatch.ErrInvalidRideRequest):
		status = http.StatusBadRequest
	case errors.Is(err, dispatch.ErrRideNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dispatch.ErrInvalidCode), errors.Is(err, fare.ErrInvalidQuoteInput):
		status = http.StatusBadRequest
	case errors.Is(err, dispatch.ErrRideNotAccepted), errors.Is(err, dispatch.ErrRideNotOngoing):
		status = http.StatusConflict
	case errors.Is(err, maps.ErrUnavailable), errors.Is(err, maps.ErrNoRoute):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"message": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
