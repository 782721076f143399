package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// approveRequest is the body of POST /v1/threads/{thread_id}/approve
// (spec.md §6: "resume an awaiting_human interrupt with
// {approved: bool, note?}").
type approveRequest struct {
	Approved bool   `json:"approved"`
	Note     string `json:"note,omitempty"`
}

// handleApprove resumes a turn parked on awaiting_human. turn_id is read
// from a query parameter since spec.md's route names only thread_id; a
// thread can have at most one turn awaiting approval at a time, but the
// caller still identifies it explicitly to avoid resuming the wrong one
// under concurrent turns.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")
	turnID := r.URL.Query().Get("turn_id")
	if turnID == "" {
		writeBadRequest(w, "turn_id query parameter is required")
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	events, err := s.sessions.Approve(r.Context(), threadID, turnID, req.Approved)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.writeBufferedCompletion(w, threadID, turnID, events)
}

// handleGetThread serves GET /v1/threads/{thread_id} (spec.md §6: "read
// thread status and last-N turns"). An optional ?last_n= query parameter
// bounds how many turns are returned; 0 (the default) returns all of them.
func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")

	lastN := 0
	if raw := r.URL.Query().Get("last_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "last_n must be a non-negative integer")
			return
		}
		lastN = n
	}

	view, err := s.sessions.GetThread(r.Context(), threadID, lastN)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ratingRequest is the body of the supplemented
// POST /v1/threads/{thread_id}/turns/{turn_id}/rating endpoint
// (SPEC_FULL.md §6.1).
type ratingRequest struct {
	Rating model.Rating `json:"rating"`
}

func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")
	turnID := chi.URLParam(r, "turn_id")

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Rating != model.RatingGood && req.Rating != model.RatingBad {
		writeBadRequest(w, `rating must be "good" or "bad"`)
		return
	}

	if err := s.sessions.Rate(r.Context(), threadID, turnID, req.Rating); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
