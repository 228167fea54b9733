package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alphabot-ai/gripeboard/internal/moderation"
	"github.com/alphabot-ai/gripeboard/internal/store"
)

type VoteRequest struct {
	SubmissionID string `json:"submissionId"`
}

type FlagRequest struct {
	SubmissionID string           `json:"submissionId"`
	Reason       store.FlagReason `json:"reason"`
}

type MeTooRequest struct {
	SubmissionID string  `json:"submissionId"`
	TimeWasted   minutes `json:"timeWasted"`
	SubmittedBy  string  `json:"submittedBy"`
}

type MeTooResponse struct {
	Message string                 `json:"message"`
	Stats   *moderation.MeTooStats `json:"stats"`
}

// Upvote handles POST /api/upvote
func (h *Handler) Upvote(w http.ResponseWriter, r *http.Request) {
	allowed, retryAfter := h.checkRateLimit(w, r, "vote", h.cfg.VoteRateLimit)
	if !allowed {
		writeRateLimited(w, retryAfter)
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.gate.Upvote(r.Context(), req.SubmissionID, GetIdentityFromContext(r.Context()))
	if err != nil {
		writeActionError(w, err, "upvote")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Downvote handles POST /api/downvote
func (h *Handler) Downvote(w http.ResponseWriter, r *http.Request) {
	allowed, retryAfter := h.checkRateLimit(w, r, "vote", h.cfg.VoteRateLimit)
	if !allowed {
		writeRateLimited(w, retryAfter)
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.gate.Downvote(r.Context(), req.SubmissionID, GetIdentityFromContext(r.Context()))
	if err != nil {
		writeActionError(w, err, "downvote")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Flag handles POST /api/flag
func (h *Handler) Flag(w http.ResponseWriter, r *http.Request) {
	allowed, retryAfter := h.checkRateLimit(w, r, "flag", h.cfg.FlagRateLimit)
	if !allowed {
		writeRateLimited(w, retryAfter)
		return
	}

	var req FlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.gate.Flag(r.Context(), req.SubmissionID, GetIdentityFromContext(r.Context()), req.Reason)
	if err != nil {
		writeActionError(w, err, "flag")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// MeToo handles POST /api/metoo. Anyone may add a me-too.
func (h *Handler) MeToo(w http.ResponseWriter, r *http.Request) {
	allowed, retryAfter := h.checkRateLimit(w, r, "metoo", h.cfg.MeTooRateLimit)
	if !allowed {
		writeRateLimited(w, retryAfter)
		return
	}

	var req MeTooRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	stats, err := h.gate.MeToo(r.Context(), req.SubmissionID, int(req.TimeWasted), req.SubmittedBy)
	switch {
	case errors.Is(err, moderation.ErrNotFound):
		// Me-too only reports bad input, never a missing resource.
		writeError(w, http.StatusBadRequest, "Submission not found")
		return
	case err != nil:
		writeActionError(w, err, "add Me Too")
		return
	}

	writeJSON(w, http.StatusOK, MeTooResponse{
		Message: "Me Too added successfully!",
		Stats:   stats,
	})
}
