package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alphabot-ai/gripeboard/internal/auth"
	"go.uber.org/zap"
)

type contextKey string

const ContextKeyIdentity contextKey = "identity"

// RequireAuth resolves the bearer token to a caller identity or rejects the
// request.
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.auth.Resolve(r.Context(), h.getToken(r))
		switch {
		case errors.Is(err, auth.ErrSessionNotFound):
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		case errors.Is(err, auth.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
			return
		case err != nil:
			h.logger.Error("resolve caller", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyIdentity, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// OptionalAuth adds the caller identity to context if present, but doesn't require it
func (h *Handler) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if token := h.getToken(r); token != "" {
			if user, err := h.auth.Resolve(ctx, token); err == nil {
				ctx = context.WithValue(ctx, ContextKeyIdentity, user.ID)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetIdentityFromContext returns the caller identity, or "" for anonymous callers.
func GetIdentityFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyIdentity).(string); ok {
		return v
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LogRequests returns middleware that logs all incoming requests
func LogRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
