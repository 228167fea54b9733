package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alphabot-ai/gripeboard/internal/auth"
	"go.uber.org/zap"
)

type CreateSessionResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	ExpiresAt string `json:"expiresAt"`
}

// CreateSession handles POST /api/auth/sessions. The sign-in provider's
// callback calls it with the admin secret after verifying the user.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		writeError(w, http.StatusUnauthorized, "admin authentication required")
		return
	}

	var req auth.Profile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess, user, err := h.auth.SignIn(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrMissingEmail) {
			writeError(w, http.StatusBadRequest, "email is required")
			return
		}
		h.logger.Error("sign in", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, CreateSessionResponse{
		Token:     sess.Token,
		UserID:    user.ID,
		ExpiresAt: sess.ExpiresAt.Format("2006-01-02T15:04:05Z"),
	})
}

// DeleteSession handles DELETE /api/auth/sessions
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	token := h.getToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.auth.SignOut(r.Context(), token); err != nil {
		h.logger.Error("sign out", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}
