package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

type ApproveRequest struct {
	SubmissionID string `json:"submissionId"`
	Approved     *bool  `json:"approved"`
}

type RescoreRequest struct {
	SubmissionID string `json:"submissionId,omitempty"`
}

// Approve handles POST /api/admin/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		writeError(w, http.StatusUnauthorized, "admin authentication required")
		return
	}

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SubmissionID == "" {
		writeError(w, http.StatusBadRequest, "submissionId is required")
		return
	}
	approved := true
	if req.Approved != nil {
		approved = *req.Approved
	}

	sub, err := h.store.GetSubmission(r.Context(), req.SubmissionID)
	if err != nil {
		h.logger.Error("get submission", zap.String("submission_id", req.SubmissionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "Submission not found")
		return
	}

	if err := h.store.SetApproved(r.Context(), req.SubmissionID, approved); err != nil {
		h.logger.Error("set approved", zap.String("submission_id", req.SubmissionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update submission")
		return
	}

	h.logger.Info("submission moderated",
		zap.String("submission_id", req.SubmissionID),
		zap.Bool("approved", approved))
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// Rescore handles POST /api/admin/rescore. With a submissionId it rescores
// one submission, otherwise all of them.
func (h *Handler) Rescore(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		writeError(w, http.StatusUnauthorized, "admin authentication required")
		return
	}

	var req RescoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.SubmissionID != "" {
		res, err := h.gate.Rescore(r.Context(), req.SubmissionID)
		if err != nil {
			writeActionError(w, err, "rescore")
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	report, err := h.rescorer.Run(r.Context())
	if err != nil {
		h.logger.Error("rescore all", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to rescore. Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
