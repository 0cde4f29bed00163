package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/nightwatch/internal/daycycle"
	"github.com/nerrad567/nightwatch/internal/journal"
)

// maxAbortReasonLength caps the operator-supplied reason.
const maxAbortReasonLength = 200

// abortRequest is the optional body of POST /cycle/abort.
type abortRequest struct {
	Reason string `json:"reason"`
}

// abortResponse is returned when an abort was accepted.
type abortResponse struct {
	Status  string         `json:"status"`
	CycleID string         `json:"cycle_id"`
	State   daycycle.State `json:"state"`
}

// handleCycleStatus returns the controller's current status.
func (s *Server) handleCycleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cycle.Status())
}

// handleAbortCycle cancels the running cycle. The cycle still runs its
// shutdown sequence; the response only confirms the request was accepted.
func (s *Server) handleAbortCycle(w http.ResponseWriter, r *http.Request) {
	var req abortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Reason) > maxAbortReasonLength {
		writeBadRequest(w, "reason too long")
		return
	}

	reason := req.Reason
	if claims := claimsFromContext(r.Context()); claims != nil {
		if reason == "" {
			reason = "requested via API"
		}
		reason += " (by " + claims.Subject + ")"
	}

	status := s.cycle.Status()
	if err := s.cycle.Abort(reason); err != nil {
		if errors.Is(err, daycycle.ErrNotRunning) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "no cycle is running")
			return
		}
		s.logger.Error("abort failed", "error", err)
		writeInternalError(w, "abort failed")
		return
	}

	s.logger.Warn("cycle abort accepted", "cycle_id", status.CycleID, "state", status.State, "reason", reason)
	writeJSON(w, http.StatusAccepted, abortResponse{
		Status:  "aborting",
		CycleID: status.CycleID,
		State:   status.State,
	})
}

// handleListCycles returns a page of journaled cycles.
func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal not configured")
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	res, err := s.journal.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("listing cycles failed", "error", err)
		writeInternalError(w, "failed to list cycles")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetCycle returns one journaled cycle with its transitions and entries.
func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal not configured")
		return
	}

	c, err := s.journal.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, journal.ErrCycleNotFound) {
		writeNotFound(w, "cycle not found")
		return
	}
	if err != nil {
		s.logger.Error("loading cycle failed", "error", err)
		writeInternalError(w, "failed to load cycle")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
